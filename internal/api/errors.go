// Package api provides the HTTP handlers of the search service.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/farosearch/faro/internal/domain"
	"github.com/farosearch/faro/internal/metrics"
	"github.com/farosearch/faro/internal/query"
	"github.com/farosearch/faro/internal/search"
)

// authError marks an authentication failure so it maps to a 400 with a
// distinct body instead of an internal error.
type authError struct {
	msg string
	err error
}

func (e *authError) Error() string { return e.msg + ": " + e.err.Error() }

func (e *authError) Unwrap() error { return e.err }

// respondError converts the error taxonomy into its HTTP shape. Every body
// carries an ISO-8601 date.
func respondError(c *gin.Context, err error) {
	date := time.Now().Format(time.RFC3339)

	var (
		badFields *search.BadFieldsError
		parseErr  *query.ParseError
		authErr   *authError
		badParam  *badParamError
	)

	switch {
	case errors.As(err, &badParam):
		metrics.ErrorsTotal.WithLabelValues("bad_parameter").Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"err":  badParam.Error(),
			"date": date,
		})
	case errors.Is(err, domain.ErrUnknownDocument):
		metrics.ErrorsTotal.WithLabelValues("missing_document").Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"msg":  err.Error(),
			"date": date,
		})
	case errors.As(err, &badFields):
		metrics.ErrorsTotal.WithLabelValues("invalid_fields").Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"err":            badFields.Error(),
			"type":           "invalid_fields",
			"valid_fields":   badFields.ValidFields,
			"invalid_fields": badFields.InvalidFields,
			"date":           date,
		})
	case errors.As(err, &parseErr):
		respondParseError(c, parseErr, date)
	case errors.As(err, &authErr):
		metrics.ErrorsTotal.WithLabelValues("auth").Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"msg":  authErr.msg,
			"err":  authErr.err.Error(),
			"date": date,
		})
	default:
		metrics.ErrorsTotal.WithLabelValues("internal").Inc()
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"err":  err.Error(),
			"date": date,
		})
	}
}

func respondParseError(c *gin.Context, parseErr *query.ParseError, date string) {
	metrics.ErrorsTotal.WithLabelValues("parsing").Inc()

	body := gin.H{
		"err":  parseErr.Error(),
		"date": date,
	}

	switch parseErr.Kind {
	case query.ErrInvalidToken:
		body["type"] = "invalid_token"
	case query.ErrMissingValue, query.ErrMissingKey:
		body["type"] = "parsing_error"
		body["token"] = string(parseErr.Op)
	default:
		body["type"] = "parsing_error"
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, body)
}
