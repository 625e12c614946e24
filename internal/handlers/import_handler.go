package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"catalog-service/internal/importer"
	"catalog-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// ProductImporter runs a file import.
type ProductImporter interface {
	ImportFromFile(ctx context.Context, ref importer.FileRef, categoryID uuid.UUID, tmpl models.ImportTemplate) ([]models.Product, error)
}

type ImportHandler struct {
	importer ProductImporter
	logger   *logrus.Entry
}

func NewImportHandler(importer ProductImporter, logger *logrus.Entry) *ImportHandler {
	return &ImportHandler{
		importer: importer,
		logger:   logger.WithField("component", "import_handler"),
	}
}

// GetImportTemplate returns the import template definition or file
// @Summary Import template
// @Tags Import
// @Param format query string false "json, csv or xlsx" default(json)
// @Router /products/import/template [get]
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	document := models.ProductImportTemplate()

	switch format {
	case "csv":
		h.generateCSVTemplate(c, document)
	case "xlsx":
		h.generateXLSXTemplate(c, document)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": document,
		})
	}
}

// generateCSVTemplate writes the header row and one example row
func (h *ImportHandler) generateCSVTemplate(c *gin.Context, document models.ImportTemplateDocument) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.csv")

	headers := make([]string, len(document.Columns))
	example := make([]string, len(document.Columns))
	for i, col := range document.Columns {
		headers[i] = col.Name
		example[i] = col.Example
	}

	writer := csv.NewWriter(c.Writer)
	writer.Write(headers)
	writer.Write(example)
	writer.Flush()
	if err := writer.Error(); err != nil {
		h.logger.WithError(err).Error("Failed to write CSV template")
	}
}

// generateXLSXTemplate builds a Products sheet with the headers and an
// Instructions sheet describing every column
func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, document models.ImportTemplateDocument) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Products"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	// Required columns carry a " *" marker that the parser strips again.
	for i, col := range document.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		style := headerStyle
		headerText := col.Name
		if col.Required {
			headerText += " *"
			style = requiredStyle
		}
		f.SetCellValue(sheetName, cell, headerText)
		f.SetCellStyle(sheetName, cell, cell, style)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 20)
	}

	f.NewSheet("Instructions")
	f.SetCellValue("Instructions", "A1", "Product Import Instructions")
	f.SetCellValue("Instructions", "A3", "Rows that share a product name become variants of one product.")
	f.SetCellValue("Instructions", "A4", "Params are read from the first row of each product; attributes from every row.")
	f.SetCellValue("Instructions", "A5", "Upload the file under /files/documents, then import it by file name.")

	f.SetCellValue("Instructions", "A7", "Column")
	f.SetCellValue("Instructions", "B7", "Description")
	f.SetCellValue("Instructions", "C7", "Required")
	f.SetCellValue("Instructions", "D7", "Type")
	f.SetCellValue("Instructions", "E7", "Example")

	for i, col := range document.Columns {
		row := i + 8
		required := "Optional"
		if col.Required {
			required = "Required"
		}
		f.SetCellValue("Instructions", fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue("Instructions", fmt.Sprintf("B%d", row), col.Description)
		f.SetCellValue("Instructions", fmt.Sprintf("C%d", row), required)
		f.SetCellValue("Instructions", fmt.Sprintf("D%d", row), col.Type)
		f.SetCellValue("Instructions", fmt.Sprintf("E%d", row), col.Example)
	}

	f.SetColWidth("Instructions", "A", "A", 20)
	f.SetColWidth("Instructions", "B", "B", 70)
	f.SetColWidth("Instructions", "C", "D", 12)
	f.SetColWidth("Instructions", "E", "E", 40)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.xlsx")

	if err := f.Write(c.Writer); err != nil {
		h.logger.WithError(err).Error("Failed to write XLSX template")
	}
}

// ImportProducts imports an uploaded document into a category
// @Summary Import products
// @Description Creates one product per distinct name with one variant per row.
// @Tags Import
// @Accept json
// @Produce json
// @Param request body models.ImportProductsRequest true "Import request"
// @Success 201 {object} models.ImportResult
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /products/import [post]
func (h *ImportHandler) ImportProducts(c *gin.Context) {
	startTime := time.Now()

	var req models.ImportProductsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "VALIDATION_ERROR", err.Error(), "")
		return
	}

	log := h.logger.WithFields(logrus.Fields{
		"file":        req.FileName,
		"category_id": req.CategoryID,
		"user_id":     c.GetString("user_id"),
	})
	log.Info("Product import start")

	products, err := h.importer.ImportFromFile(c.Request.Context(), importer.FileRef{Name: req.FileName}, req.CategoryID, req.Template)
	if err != nil {
		log.WithError(err).Warn("Product import failed")
		respondError(c, err)
		return
	}

	result := models.ImportResult{
		Success:      true,
		ProductCount: len(products),
		Data:         products,
		ProcessingMs: time.Since(startTime).Milliseconds(),
	}
	for _, p := range products {
		result.VariantCount += len(p.Variants)
	}
	result.TotalRows = result.VariantCount

	log.WithField("products", result.ProductCount).Info("Product import end")
	c.JSON(http.StatusCreated, result)
}
