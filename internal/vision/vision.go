package vision

import (
	"context"
	"errors"
	"fmt"

	"github.com/vbonduro/plantdoc/internal/domain"
)

// Gateway is the call interface to the external multimodal model service.
// The role selects a fixed system instruction; callers never supply one.
type Gateway interface {
	// Generate returns the complete reply text.
	Generate(ctx context.Context, role RoleName, req Request) (string, error)
	// Stream sends reply fragments on the returned channel; their concatenation
	// is the full reply. The channel is closed when the reply ends, fails, or
	// ctx is cancelled. A mid-stream failure is delivered as a Chunk with Err
	// set and is always the last value sent. Callers that stop reading early
	// must cancel ctx so the producer exits.
	Stream(ctx context.Context, role RoleName, req Request) (<-chan Chunk, error)
	// Name identifies the backend in logs and errors.
	Name() string
}

// Part is one element of a prompt: text or an image, never both.
type Part struct {
	Text  string
	Image *domain.Image
}

func TextPart(text string) Part { return Part{Text: text} }

func ImagePart(img *domain.Image) Part { return Part{Image: img} }

func (p Part) IsImage() bool { return p.Image != nil }

// Request is the content of one model call. History is replayed ahead of
// Parts as prior conversation turns; only the follow-up role uses it.
type Request struct {
	Parts   []Part
	History []domain.Message
}

// Chunk is one streamed text increment or a terminal error.
type Chunk struct {
	Text string
	Err  error
}

// HistoryBefore returns transcript without a trailing user message whose
// content equals inFlight, so the message being answered is not echoed twice.
func HistoryBefore(transcript []domain.Message, inFlight string) []domain.Message {
	n := len(transcript)
	if n > 0 && transcript[n-1].Role == domain.RoleUser && transcript[n-1].Content == inFlight {
		return transcript[:n-1]
	}
	return transcript
}

type ErrorKind string

const (
	KindNetwork          ErrorKind = "network"
	KindAuth             ErrorKind = "auth"
	KindRateLimit        ErrorKind = "rate_limit"
	KindMalformedRequest ErrorKind = "malformed_request"
	KindSafety           ErrorKind = "safety"
	KindCancelled        ErrorKind = "cancelled"
	KindUnknown          ErrorKind = "unknown"
)

// ServiceError reports a failed gateway call. It is never retried by the
// gateway itself.
type ServiceError struct {
	Kind    ErrorKind
	Backend string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// NewServiceError wraps err, deriving the kind from context errors when the
// backend could not classify it.
func NewServiceError(backend string, kind ErrorKind, err error) *ServiceError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = KindCancelled
	}
	return &ServiceError{Kind: kind, Backend: backend, Err: err}
}

// KindForStatus maps an HTTP status code returned by a model service.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 429:
		return KindRateLimit
	case status == 400 || status == 404 || status == 413 || status == 422:
		return KindMalformedRequest
	case status >= 500:
		return KindNetwork
	default:
		return KindUnknown
	}
}
