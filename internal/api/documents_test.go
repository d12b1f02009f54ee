package api_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/farosearch/faro/internal/api"
	"github.com/farosearch/faro/internal/domain"
)

func TestDocumentsList(t *testing.T) {
	t.Parallel()

	docs := []domain.Document{
		{
			Name: "personas",
			Fields: []domain.Field{
				{Name: "nombre", VecInput: true},
				{Name: "ciudad"},
			},
		},
	}

	r := newTestRouter()
	h := api.NewDocumentsHandler(docs)
	r.GET("/api/documents", h.List)

	w := doRequest(r, http.MethodGet, "/api/documents")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body []domain.Document
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if len(body) != 1 || body[0].Name != "personas" || len(body[0].Fields) != 2 {
		t.Errorf("unexpected body: %+v", body)
	}

	if !body[0].Fields[0].VecInput {
		t.Error("vec_input flag lost in serialization")
	}
}
