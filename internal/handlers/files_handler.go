package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"catalog-service/internal/importer"
	"catalog-service/internal/media"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// FileStore keeps uploaded images and import documents.
type FileStore interface {
	Save(name string, t media.MediaType, r io.Reader) (string, error)
	Delete(name string, t media.MediaType) error
	PublicURL(localPath string) (string, error)
}

// UploadedFile describes a stored upload.
type UploadedFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url,omitempty"`
}

type FilesHandler struct {
	files  FileStore
	logger *logrus.Entry
}

func NewFilesHandler(files FileStore, logger *logrus.Entry) *FilesHandler {
	return &FilesHandler{
		files:  files,
		logger: logger.WithField("component", "files_handler"),
	}
}

// UploadImage stores an image under its original file name
// @Tags Files
// @Accept multipart/form-data
// @Param image formData file true "Image"
// @Security BearerAuth
// @Router /files/images [post]
func (h *FilesHandler) UploadImage(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		respondValidation(c, "FILE_REQUIRED", "Please upload an image", "image")
		return
	}
	defer file.Close()

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		respondValidation(c, "INVALID_FILE_TYPE", "Only image files are accepted", "image")
		return
	}

	name := filepath.Base(header.Filename)
	localPath, err := h.files.Save(name, media.MediaTypeImage, file)
	if err != nil {
		respondError(c, err)
		return
	}
	url, err := h.files.PublicURL(localPath)
	if err != nil {
		respondError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{"name": name, "size": header.Size}).Info("Image uploaded")
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    UploadedFile{Name: name, Size: header.Size, URL: url},
	})
}

// UploadDocument stores a CSV or XLSX file for a later import
// @Tags Files
// @Accept multipart/form-data
// @Param document formData file true "CSV or XLSX document"
// @Security BearerAuth
// @Router /files/documents [post]
func (h *FilesHandler) UploadDocument(c *gin.Context) {
	file, header, err := c.Request.FormFile("document")
	if err != nil {
		respondValidation(c, "FILE_REQUIRED", "Please upload a CSV or Excel file", "document")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if _, err := importer.FormatOf(name); err != nil {
		respondError(c, err)
		return
	}
	if _, err := h.files.Save(name, media.MediaTypeDocument, file); err != nil {
		respondError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{"name": name, "size": header.Size}).Info("Document uploaded")
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    UploadedFile{Name: name, Size: header.Size},
	})
}

// DeleteImage removes an uploaded or cached image
// @Tags Files
// @Security BearerAuth
// @Router /files/images/{name} [delete]
func (h *FilesHandler) DeleteImage(c *gin.Context) {
	h.delete(c, media.MediaTypeImage)
}

// DeleteDocument removes an uploaded document
// @Tags Files
// @Security BearerAuth
// @Router /files/documents/{name} [delete]
func (h *FilesHandler) DeleteDocument(c *gin.Context) {
	h.delete(c, media.MediaTypeDocument)
}

func (h *FilesHandler) delete(c *gin.Context, t media.MediaType) {
	if err := h.files.Delete(c.Param("name"), t); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "File has been successfully deleted",
	})
}
