package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/farosearch/faro/internal/metrics"
	"github.com/farosearch/faro/internal/search"
)

// maxSearchQueryLen caps the length of search query strings.
const maxSearchQueryLen = 2000

// Searcher evaluates a search request. Satisfied by *search.Engine.
type Searcher interface {
	Search(ctx context.Context, p search.Params) (*search.Table, error)
}

// SearchHandler serves the search endpoint.
type SearchHandler struct {
	engine Searcher
	log    *logrus.Logger
}

// NewSearchHandler creates a SearchHandler.
func NewSearchHandler(engine Searcher, log *logrus.Logger) *SearchHandler {
	return &SearchHandler{engine: engine, log: log}
}

// Search handles GET /api/search.
func (h *SearchHandler) Search(c *gin.Context) {
	params, err := parseSearchParams(c)
	if err != nil {
		respondError(c, err)

		return
	}

	metrics.SearchesTotal.WithLabelValues(params.Strategy.String()).Inc()

	table, err := h.engine.Search(c.Request.Context(), *params)
	if err != nil {
		h.log.WithError(err).Error("search failed")
		respondError(c, err)

		return
	}

	c.JSON(http.StatusOK, table)
}

func parseSearchParams(c *gin.Context) (*search.Params, error) {
	searchStr := c.Query("query")
	if len(searchStr) > maxSearchQueryLen {
		return nil, &badParamError{param: "query", reason: "exceeds maximum length"}
	}

	strategy, err := search.ParseStrategy(c.DefaultQuery("strategy", "fts"))
	if err != nil {
		return nil, &badParamError{param: "strategy", reason: err.Error()}
	}

	pesoFTS, err := parseFloatParam(c, "peso_fts", 50)
	if err != nil {
		return nil, err
	}

	pesoSemantic, err := parseFloatParam(c, "peso_semantic", 50)
	if err != nil {
		return nil, err
	}

	k, err := parseIntParam(c, "k", 10)
	if err != nil {
		return nil, err
	}

	return &search.Params{
		SearchStr:    searchStr,
		Document:     c.Query("document"),
		Strategy:     strategy,
		PesoFTS:      pesoFTS,
		PesoSemantic: pesoSemantic,
		KNeighbors:   k,
	}, nil
}

// badParamError is a query-string level validation failure; respondError
// maps it to a 400 carrying the message and the date.
type badParamError struct {
	param  string
	reason string
}

func (e *badParamError) Error() string {
	return "parameter " + e.param + ": " + e.reason
}

func parseFloatParam(c *gin.Context, name string, fallback float64) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &badParamError{param: name, reason: "must be a number"}
	}

	return v, nil
}

func parseIntParam(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, &badParamError{param: name, reason: "must be a positive integer"}
	}

	return v, nil
}
