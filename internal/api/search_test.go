package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/farosearch/faro/internal/api"
	"github.com/farosearch/faro/internal/domain"
	"github.com/farosearch/faro/internal/query"
	"github.com/farosearch/faro/internal/search"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return log
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	return gin.New()
}

func doRequest(r *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	r.ServeHTTP(w, req)

	return w
}

// mockSearcher implements api.Searcher.
type mockSearcher struct {
	searchFn func(ctx context.Context, p search.Params) (*search.Table, error)
	lastReq  *search.Params
}

func (m *mockSearcher) Search(ctx context.Context, p search.Params) (*search.Table, error) {
	m.lastReq = &p

	return m.searchFn(ctx, p)
}

func TestSearchOK(t *testing.T) {
	t.Parallel()

	searcher := &mockSearcher{
		searchFn: func(_ context.Context, p search.Params) (*search.Table, error) {
			return &search.Table{
				Msg:     "Hay un total de 1 resultados.",
				Columns: []string{"score", "match_type"},
				Rows:    [][]string{{"-1.000", "fts"}},
			}, nil
		},
	}

	r := newTestRouter()
	h := api.NewSearchHandler(searcher, testLogger())
	r.GET("/api/search", h.Search)

	w := doRequest(r, http.MethodGet,
		"/api/search?query=ana&document=personas&strategy=rrf&peso_fts=60&peso_semantic=40&k=5")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body search.Table
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if len(body.Rows) != 1 || body.Columns[1] != "match_type" {
		t.Errorf("unexpected body: %+v", body)
	}

	p := searcher.lastReq
	if p.Strategy != search.StrategyRRF || p.PesoFTS != 60 || p.PesoSemantic != 40 || p.KNeighbors != 5 {
		t.Errorf("parameters not forwarded: %+v", p)
	}
}

func TestSearchDefaults(t *testing.T) {
	t.Parallel()

	searcher := &mockSearcher{
		searchFn: func(_ context.Context, p search.Params) (*search.Table, error) {
			return &search.Table{}, nil
		},
	}

	r := newTestRouter()
	h := api.NewSearchHandler(searcher, testLogger())
	r.GET("/api/search", h.Search)

	if w := doRequest(r, http.MethodGet, "/api/search?query=ana&document=personas"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	p := searcher.lastReq
	if p.Strategy != search.StrategyFts || p.PesoFTS != 50 || p.PesoSemantic != 50 || p.KNeighbors != 10 {
		t.Errorf("unexpected defaults: %+v", p)
	}
}

func TestSearchBadStrategy(t *testing.T) {
	t.Parallel()

	r := newTestRouter()
	h := api.NewSearchHandler(&mockSearcher{}, testLogger())
	r.GET("/api/search", h.Search)

	w := doRequest(r, http.MethodGet, "/api/search?query=ana&document=personas&strategy=hkf")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSearchErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedType string
	}{
		{
			"missing document",
			domain.ErrUnknownDocument,
			http.StatusBadRequest,
			"",
		},
		{
			"bad fields",
			&search.BadFieldsError{ValidFields: []string{"ciudad"}, InvalidFields: []string{"foo"}},
			http.StatusBadRequest,
			"invalid_fields",
		},
		{
			"invalid token",
			&query.ParseError{Kind: query.ErrInvalidToken, Token: "x; y"},
			http.StatusBadRequest,
			"invalid_token",
		},
		{
			"missing value",
			&query.ParseError{Kind: query.ErrMissingValue, Op: ':'},
			http.StatusBadRequest,
			"parsing_error",
		},
		{
			"internal",
			context.DeadlineExceeded,
			http.StatusInternalServerError,
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			searcher := &mockSearcher{
				searchFn: func(context.Context, search.Params) (*search.Table, error) {
					return nil, tt.err
				},
			}

			r := newTestRouter()
			h := api.NewSearchHandler(searcher, testLogger())
			r.GET("/api/search", h.Search)

			w := doRequest(r, http.MethodGet, "/api/search?query=ana&document=personas")
			if w.Code != tt.expectedCode {
				t.Fatalf("expected %d, got %d: %s", tt.expectedCode, w.Code, w.Body.String())
			}

			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}

			if _, ok := body["date"]; !ok {
				t.Error("error body must carry a date")
			}

			if tt.expectedType != "" && body["type"] != tt.expectedType {
				t.Errorf("expected type %q, got %v", tt.expectedType, body["type"])
			}

			if tt.expectedType == "invalid_fields" {
				if _, ok := body["valid_fields"]; !ok {
					t.Error("invalid_fields body must list valid fields")
				}
			}
		})
	}
}
