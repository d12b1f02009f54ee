package embedding

import "fmt"

// ProgressKind identifies a lifecycle stage of a batch embedding call.
type ProgressKind int

// Batch lifecycle stages, in rough emission order.
const (
	ProgressPreparing ProgressKind = iota
	ProgressSendingRequest
	ProgressRequestSuccessful
	ProgressRateLimit
	ProgressError
	ProgressMaxRetriesExceeded
	ProgressParsingResponse
	ProgressParsingComplete
	ProgressProcessingEmbeddings
	ProgressComplete
)

// Progress is a lifecycle message emitted during EmbedBatch so callers can
// render per-chunk progress.
type Progress struct {
	Kind        ProgressKind
	Count       int
	Attempt     int
	MaxAttempts int
	ElapsedMS   int64
	Message     string
}

func (p Progress) String() string {
	switch p.Kind {
	case ProgressPreparing:
		return fmt.Sprintf("preparing embeddings for %d entries", p.Count)
	case ProgressSendingRequest:
		return fmt.Sprintf("sending request (attempt %d/%d)", p.Attempt, p.MaxAttempts)
	case ProgressRequestSuccessful:
		return fmt.Sprintf("request successful in %d ms", p.ElapsedMS)
	case ProgressRateLimit:
		return fmt.Sprintf("rate limit hit, trying again (%d/%d)", p.Attempt, p.MaxAttempts)
	case ProgressError:
		return "error: " + p.Message
	case ProgressMaxRetriesExceeded:
		return "max retries exceeded"
	case ProgressParsingResponse:
		return "parsing response"
	case ProgressParsingComplete:
		return fmt.Sprintf("response parsed in %d ms", p.ElapsedMS)
	case ProgressProcessingEmbeddings:
		return "processing embeddings"
	case ProgressComplete:
		return fmt.Sprintf("embeddings done in %d ms", p.ElapsedMS)
	}

	return "unknown progress message"
}
