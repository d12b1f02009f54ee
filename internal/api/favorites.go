package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/farosearch/faro/internal/domain"
	"github.com/farosearch/faro/internal/store"
)

// FavoritesHandler serves the per-document saved-search endpoints.
type FavoritesHandler struct {
	repo *store.FavoritesStore
	docs []domain.Document
	log  *logrus.Logger
}

// NewFavoritesHandler creates a FavoritesHandler.
func NewFavoritesHandler(repo *store.FavoritesStore, docs []domain.Document, log *logrus.Logger) *FavoritesHandler {
	return &FavoritesHandler{repo: repo, docs: docs, log: log}
}

// List handles GET /api/:doc/favorites.
func (h *FavoritesHandler) List(c *gin.Context) {
	doc, ok := resolveDoc(c, h.docs)
	if !ok {
		return
	}

	favorites, err := h.repo.List(c.Request.Context(), doc.Name)
	if err != nil {
		h.log.WithError(err).Error("favorites list")
		respondError(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"favoritos": favorites})
}

type favoritePayload struct {
	Nombre    string              `json:"nombre"`
	Data      []string            `json:"data"`
	Busquedas []store.SavedSearch `json:"busquedas"`
}

// Create handles POST /api/:doc/favorites.
func (h *FavoritesHandler) Create(c *gin.Context) {
	doc, ok := resolveDoc(c, h.docs)
	if !ok {
		return
	}

	var payload favoritePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, &badParamError{param: "body", reason: err.Error()})

		return
	}

	if payload.Nombre == "" {
		respondError(c, &badParamError{param: "nombre", reason: "is required"})

		return
	}

	if err := h.repo.Add(c.Request.Context(), doc.Name, payload.Nombre, payload.Data, payload.Busquedas); err != nil {
		h.log.WithError(err).Error("favorites create")
		respondError(c, err)

		return
	}

	c.String(http.StatusOK, "favorite saved")
}

// Delete handles DELETE /api/:doc/favorites?nombre=….
func (h *FavoritesHandler) Delete(c *gin.Context) {
	doc, ok := resolveDoc(c, h.docs)
	if !ok {
		return
	}

	nombre, present := c.GetQuery("nombre")
	if !present {
		respondError(c, &badParamError{param: "nombre", reason: "is required"})

		return
	}

	if err := h.repo.Delete(c.Request.Context(), doc.Name, nombre); err != nil {
		h.log.WithError(err).Error("favorites delete")
		respondError(c, err)

		return
	}

	c.Status(http.StatusOK)
}
