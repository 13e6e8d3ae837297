package vision

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vbonduro/plantdoc/internal/domain"
)

func TestHistoryBefore(t *testing.T) {
	transcript := []domain.Message{
		domain.NewMessage(domain.RoleAssistant, "Is this a Tomato?"),
		domain.NewMessage(domain.RoleUser, "yes"),
		domain.NewMessage(domain.RoleUser, "why are the leaves yellow?"),
	}

	assert.Len(t, HistoryBefore(transcript, "why are the leaves yellow?"), 2)
	assert.Len(t, HistoryBefore(transcript, "something else"), 3)
	assert.Len(t, HistoryBefore(transcript[:1], "Is this a Tomato?"), 1, "assistant messages are never dropped")
	assert.Empty(t, HistoryBefore(nil, "x"))
}

func TestServiceErrorKinds(t *testing.T) {
	err := NewServiceError("gemini", KindNetwork, fmt.Errorf("stream: %w", context.Canceled))
	assert.Equal(t, KindCancelled, err.Kind)
	assert.True(t, errors.Is(err, context.Canceled))

	var se *ServiceError
	wrapped := fmt.Errorf("turn failed: %w", NewServiceError("claude", KindRateLimit, errors.New("slow down")))
	assert.True(t, errors.As(wrapped, &se))
	assert.Equal(t, KindRateLimit, se.Kind)
	assert.Contains(t, se.Error(), "claude")
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindAuth, KindForStatus(401))
	assert.Equal(t, KindAuth, KindForStatus(403))
	assert.Equal(t, KindRateLimit, KindForStatus(429))
	assert.Equal(t, KindMalformedRequest, KindForStatus(400))
	assert.Equal(t, KindNetwork, KindForStatus(503))
	assert.Equal(t, KindUnknown, KindForStatus(302))
}
