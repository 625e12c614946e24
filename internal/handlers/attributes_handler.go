package handlers

import (
	"net/http"

	"catalog-service/internal/models"

	"github.com/gin-gonic/gin"
)

type AttributesHandler struct {
	attributes AttributeLookup
}

func NewAttributesHandler(attributes AttributeLookup) *AttributesHandler {
	return &AttributesHandler{attributes: attributes}
}

// GetAttributes lists every attribute pair
// @Tags Attributes
// @Produce json
// @Success 200 {object} models.AttributeListResponse
// @Router /attributes [get]
func (h *AttributesHandler) GetAttributes(c *gin.Context) {
	attrs, err := h.attributes.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.AttributeListResponse{Success: true, Data: attrs})
}

// GetAttribute returns one attribute pair
// @Tags Attributes
// @Router /attributes/{id} [get]
func (h *AttributesHandler) GetAttribute(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	attr, err := h.attributes.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.AttributeResponse{Success: true, Data: attr})
}
