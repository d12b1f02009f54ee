// Package embedding talks to the external embedding provider and caches
// query-time vectors in process.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

// Wire contract with the provider.
const (
	// Model is the embedding model requested on every call.
	Model = "text-embedding-3-small"
	// Dimensions is the fixed width of every produced vector.
	Dimensions = 1536
	// MaxAttempts bounds rate-limit retries: at most MaxAttempts+1 requests
	// are issued per batch.
	MaxAttempts = 3

	requestTimeout  = 30 * time.Second
	maxResponseSize = 64 << 20 // 64 MB
)

// ErrMaxRetriesExceeded is returned after exhausting every rate-limit retry.
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// errRateLimit marks a 429 internally so the retry loop can distinguish it
// from terminal request failures.
var errRateLimit = errors.New("rate limited")

// RequestError is a non-retriable provider failure.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("embedding request failed with status %d: %s", e.Status, e.Body)
}

// Pair couples a caller-supplied row id with its embedding vector.
type Pair struct {
	ID     int64
	Vector []float32
}

// Client calls the embedding provider over HTTPS with retry and backoff.
type Client struct {
	endpoint string
	token    string
	httpc    *http.Client
	log      *logrus.Logger
	breaker  *gobreaker.CircuitBreaker[[]float32]
}

// NewClient creates a Client for the given endpoint. The single-query path
// runs behind a circuit breaker so a dead provider fails fast instead of
// stalling every search.
func NewClient(endpoint, token string, log *logrus.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker[[]float32](gobreaker.Settings{
		Name:    "embedding-provider",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		endpoint: endpoint,
		token:    token,
		httpc:    &http.Client{Timeout: requestTimeout},
		log:      log,
		breaker:  breaker,
	}
}

type embedRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format"`
	Dimensions     int      `json:"dimensions"`
}

type embedResponse struct {
	Data []embedObject `json:"data"`
}

type embedObject struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// EmbedBatch embeds texts and pairs the resulting vectors positionally with
// ids. On 429 it retries up to MaxAttempts times, sleeping
// 1000ms * backoffBase^attempt before each retry. Progress messages are sent
// on progress when non-nil, without blocking: a message that finds the
// channel full is dropped. The channel is never closed by the client.
func (c *Client) EmbedBatch(ctx context.Context, ids []int64, texts []string, backoffBase uint, progress chan<- Progress) ([]Pair, error) {
	if len(ids) != len(texts) {
		return nil, fmt.Errorf("ids/texts length mismatch: %d vs %d", len(ids), len(texts))
	}

	start := time.Now()
	emit(progress, Progress{Kind: ProgressPreparing, Count: len(texts)})

	resp, err := c.requestWithRetry(ctx, texts, backoffBase, progress)
	if err != nil {
		if errors.Is(err, ErrMaxRetriesExceeded) {
			emit(progress, Progress{Kind: ProgressMaxRetriesExceeded})
		} else {
			emit(progress, Progress{Kind: ProgressError, Message: err.Error()})
		}

		return nil, err
	}

	emit(progress, Progress{Kind: ProgressParsingResponse})

	parseStart := time.Now()

	vectors, err := decodeResponse(resp)
	if err != nil {
		emit(progress, Progress{Kind: ProgressError, Message: err.Error()})

		return nil, err
	}

	emit(progress, Progress{Kind: ProgressParsingComplete, ElapsedMS: time.Since(parseStart).Milliseconds()})
	emit(progress, Progress{Kind: ProgressProcessingEmbeddings})

	if len(vectors) != len(ids) {
		err := fmt.Errorf("provider returned %d embeddings for %d inputs", len(vectors), len(ids))
		emit(progress, Progress{Kind: ProgressError, Message: err.Error()})

		return nil, err
	}

	pairs := make([]Pair, len(ids))
	for i, id := range ids {
		pairs[i] = Pair{ID: id, Vector: vectors[i]}
	}

	emit(progress, Progress{Kind: ProgressComplete, ElapsedMS: time.Since(start).Milliseconds()})

	return pairs, nil
}

// EmbedSingle embeds one query-time text. Same request semantics as
// EmbedBatch with batch size 1, no progress channel, behind the breaker.
func (c *Client) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return c.breaker.Execute(func() ([]float32, error) {
		resp, err := c.requestWithRetry(ctx, []string{text}, 1, nil)
		if err != nil {
			return nil, err
		}

		vectors, err := decodeResponse(resp)
		if err != nil {
			return nil, err
		}

		if len(vectors) == 0 {
			return nil, fmt.Errorf("provider returned no embedding")
		}

		return vectors[0], nil
	})
}

// requestWithRetry issues the POST, retrying only on rate limits. The caller
// owns the returned body.
func (c *Client) requestWithRetry(ctx context.Context, texts []string, backoffBase uint, progress chan<- Progress) ([]byte, error) {
	body, err := json.Marshal(embedRequest{
		Input:          texts,
		Model:          Model,
		EncodingFormat: "float",
		Dimensions:     Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding embedding request: %w", err)
	}

	for attempt := 0; attempt <= MaxAttempts; attempt++ {
		if attempt > 0 {
			emit(progress, Progress{Kind: ProgressRateLimit, Attempt: attempt, MaxAttempts: MaxAttempts})

			delay := time.Duration(1000*pow(backoffBase, attempt)) * time.Millisecond

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		emit(progress, Progress{Kind: ProgressSendingRequest, Attempt: attempt, MaxAttempts: MaxAttempts})

		reqStart := time.Now()

		resp, err := c.doRequest(ctx, body)
		if err == nil {
			emit(progress, Progress{Kind: ProgressRequestSuccessful, ElapsedMS: time.Since(reqStart).Milliseconds()})

			return resp, nil
		}

		if !errors.Is(err, errRateLimit) {
			return nil, err
		}

		c.log.WithField("attempt", attempt).Warn("embedding provider rate limit hit")
	}

	return nil, ErrMaxRetriesExceeded
}

// doRequest performs one HTTP round trip. 2xx returns the body, 429 returns
// errRateLimit, anything else a *RequestError.
func (c *Client) doRequest(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embedding request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling embedding provider: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return payload, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errRateLimit
	default:
		return nil, &RequestError{Status: resp.StatusCode, Body: string(payload)}
	}
}

// decodeResponse extracts the vectors in input order. The provider documents
// positional correspondence; the index field is honored anyway.
func decodeResponse(payload []byte) ([][]float32, error) {
	var resp embedResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}

	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	vectors := make([][]float32, len(resp.Data))
	for i, obj := range resp.Data {
		vectors[i] = obj.Embedding
	}

	return vectors, nil
}

func emit(ch chan<- Progress, p Progress) {
	if ch == nil {
		return
	}

	select {
	case ch <- p:
	default:
	}
}

func pow(base uint, exp int) uint64 {
	result := uint64(1)
	for i := 0; i < exp; i++ {
		result *= uint64(base)
	}

	return result
}
