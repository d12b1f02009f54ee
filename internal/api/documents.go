package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/farosearch/faro/internal/domain"
)

// DocumentsHandler lists the registered document definitions.
type DocumentsHandler struct {
	docs []domain.Document
}

// NewDocumentsHandler creates a DocumentsHandler over the loaded meta file.
func NewDocumentsHandler(docs []domain.Document) *DocumentsHandler {
	return &DocumentsHandler{docs: docs}
}

// List handles GET /api/documents.
func (h *DocumentsHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.docs)
}

// resolveDoc maps the :doc path parameter to a registered document,
// responding with the missing-document error when it is unknown.
func resolveDoc(c *gin.Context, docs []domain.Document) (*domain.Document, bool) {
	doc, err := domain.Find(docs, c.Param("doc"))
	if err != nil {
		respondError(c, err)

		return nil, false
	}

	return doc, true
}
