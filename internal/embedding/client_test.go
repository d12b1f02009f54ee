package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return log
}

// fakeProvider serves a minimal embeddings endpoint.
func fakeProvider(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return srv
}

func embeddingsBody(t *testing.T, vectors [][]float32) []byte {
	t.Helper()

	type obj struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}

	data := make([]obj, len(vectors))
	for i, v := range vectors {
		data[i] = obj{Index: i, Embedding: v}
	}

	body, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		t.Fatalf("encoding fake response: %v", err)
	}

	return body
}

func TestEmbedBatchPairsPositionally(t *testing.T) {
	t.Parallel()

	var gotAuth atomic.Value

	srv := fakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))

		var req struct {
			Input      []string `json:"input"`
			Model      string   `json:"model"`
			Dimensions int      `json:"dimensions"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}

		if req.Model != Model || req.Dimensions != Dimensions {
			t.Errorf("unexpected wire contract: %+v", req)
		}

		vectors := make([][]float32, len(req.Input))
		for i := range req.Input {
			vectors[i] = []float32{float32(i), 1}
		}

		w.Write(embeddingsBody(t, vectors)) //nolint:errcheck // test server.
	})

	client := NewClient(srv.URL, "secret-token", testLogger())

	pairs, err := client.EmbedBatch(context.Background(), []int64{10, 20, 30}, []string{"a", "b", "c"}, 0, nil)
	if err != nil {
		t.Fatalf("embed batch: %v", err)
	}

	if gotAuth.Load() != "Bearer secret-token" {
		t.Errorf("expected bearer auth, got %v", gotAuth.Load())
	}

	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(pairs))
	}

	for i, id := range []int64{10, 20, 30} {
		if pairs[i].ID != id {
			t.Errorf("pair %d: expected id %d, got %d", i, id, pairs[i].ID)
		}

		if pairs[i].Vector[0] != float32(i) {
			t.Errorf("pair %d: vectors not positional: %v", i, pairs[i].Vector)
		}
	}
}

func TestEmbedBatchRetryBound(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	srv := fakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	client := NewClient(srv.URL, "tok", testLogger())

	// backoffBase 0 keeps the retry sleeps at zero.
	_, err := client.EmbedBatch(context.Background(), []int64{1}, []string{"a"}, 0, nil)
	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Fatalf("expected ErrMaxRetriesExceeded, got %v", err)
	}

	if got := requests.Load(); got != MaxAttempts+1 {
		t.Errorf("expected %d requests, got %d", MaxAttempts+1, got)
	}
}

func TestEmbedBatchNonRetriableStatus(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	srv := fakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad input")) //nolint:errcheck // test server.
	})

	client := NewClient(srv.URL, "tok", testLogger())

	_, err := client.EmbedBatch(context.Background(), []int64{1}, []string{"a"}, 0, nil)

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %v", err)
	}

	if reqErr.Status != http.StatusBadRequest || reqErr.Body != "bad input" {
		t.Errorf("unexpected request error: %+v", reqErr)
	}

	if requests.Load() != 1 {
		t.Errorf("non-retriable status should not retry, got %d requests", requests.Load())
	}
}

func TestEmbedBatchProgressLifecycle(t *testing.T) {
	t.Parallel()

	srv := fakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(embeddingsBody(t, [][]float32{{1}})) //nolint:errcheck // test server.
	})

	client := NewClient(srv.URL, "tok", testLogger())

	progress := make(chan Progress, 32)

	if _, err := client.EmbedBatch(context.Background(), []int64{1}, []string{"a"}, 0, progress); err != nil {
		t.Fatalf("embed batch: %v", err)
	}

	close(progress)

	seen := make(map[ProgressKind]bool)
	for msg := range progress {
		seen[msg.Kind] = true
	}

	for _, kind := range []ProgressKind{
		ProgressPreparing, ProgressSendingRequest, ProgressRequestSuccessful,
		ProgressParsingResponse, ProgressParsingComplete,
		ProgressProcessingEmbeddings, ProgressComplete,
	} {
		if !seen[kind] {
			t.Errorf("missing progress message kind %d", kind)
		}
	}
}

func TestEmbedSingle(t *testing.T) {
	t.Parallel()

	srv := fakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(embeddingsBody(t, [][]float32{{0.25, 0.5}})) //nolint:errcheck // test server.
	})

	client := NewClient(srv.URL, "tok", testLogger())

	v, err := client.EmbedSingle(context.Background(), "hola")
	if err != nil {
		t.Fatalf("embed single: %v", err)
	}

	if len(v) != 2 || v[0] != 0.25 {
		t.Errorf("unexpected vector: %v", v)
	}
}

func TestEmbedBatchLengthMismatch(t *testing.T) {
	t.Parallel()

	client := NewClient("http://127.0.0.1:0", "tok", testLogger())

	if _, err := client.EmbedBatch(context.Background(), []int64{1, 2}, []string{"a"}, 0, nil); err == nil {
		t.Fatal("expected error for mismatched ids/texts")
	}
}
