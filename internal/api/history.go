package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/farosearch/faro/internal/domain"
	"github.com/farosearch/faro/internal/store"
)

// HistoryHandler serves the per-document search history endpoints.
type HistoryHandler struct {
	repo *store.HistoryStore
	docs []domain.Document
	log  *logrus.Logger
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(repo *store.HistoryStore, docs []domain.Document, log *logrus.Logger) *HistoryHandler {
	return &HistoryHandler{repo: repo, docs: docs, log: log}
}

// Summary handles GET /api/:doc/history.
func (h *HistoryHandler) Summary(c *gin.Context) {
	doc, ok := resolveDoc(c, h.docs)
	if !ok {
		return
	}

	entries, err := h.repo.Summary(c.Request.Context(), doc.Name)
	if err != nil {
		h.log.WithError(err).Error("history summary")
		respondError(c, err)

		return
	}

	c.JSON(http.StatusOK, entries)
}

// Detailed handles GET /api/:doc/history-full.
func (h *HistoryHandler) Detailed(c *gin.Context) {
	doc, ok := resolveDoc(c, h.docs)
	if !ok {
		return
	}

	entries, err := h.repo.Detailed(c.Request.Context(), doc.Name)
	if err != nil {
		h.log.WithError(err).Error("history detail")
		respondError(c, err)

		return
	}

	c.JSON(http.StatusOK, entries)
}

// Delete handles DELETE /api/:doc/history?query=….
func (h *HistoryHandler) Delete(c *gin.Context) {
	doc, ok := resolveDoc(c, h.docs)
	if !ok {
		return
	}

	searchStr, present := c.GetQuery("query")
	if !present {
		respondError(c, &badParamError{param: "query", reason: "is required"})

		return
	}

	if err := h.repo.Delete(c.Request.Context(), doc.Name, searchStr); err != nil {
		h.log.WithError(err).Error("history delete")
		respondError(c, err)

		return
	}

	c.Status(http.StatusOK)
}
