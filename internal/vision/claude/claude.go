package claude

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/vbonduro/plantdoc/internal/domain"
	"github.com/vbonduro/plantdoc/internal/vision"
)

const backendName = "claude"

// uploadPlaceholder opens the conversation when history starts with an
// assistant turn; the Messages API requires the first message to be a user's.
const uploadPlaceholder = "(photo uploaded)"

type ClaudeGateway struct {
	client *anthropic.Client
	model  string
	roles  vision.Roles
}

func NewClaudeGateway(apiKey, model string, roles vision.Roles, opts ...anthropic.ClientOption) *ClaudeGateway {
	return &ClaudeGateway{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
		roles:  roles,
	}
}

func (g *ClaudeGateway) Name() string { return backendName }

func (g *ClaudeGateway) buildRequest(role vision.RoleName, req vision.Request) (anthropic.MessagesRequest, error) {
	r, ok := g.roles.Get(role)
	if !ok {
		return anthropic.MessagesRequest{}, fmt.Errorf("unknown role %q", role)
	}

	temperature := r.Temperature
	topP := r.TopP
	topK := r.TopK
	return anthropic.MessagesRequest{
		Model:       anthropic.Model(g.roles.ModelFor(role, g.model)),
		System:      r.Instruction,
		Messages:    buildMessages(req),
		MaxTokens:   r.MaxOutputTokens,
		Temperature: &temperature,
		TopP:        &topP,
		TopK:        &topK,
	}, nil
}

// buildMessages converts history and parts into an alternating user/assistant
// sequence, merging adjacent turns from the same role.
func buildMessages(req vision.Request) []anthropic.Message {
	var messages []anthropic.Message
	add := func(role anthropic.ChatRole, content ...anthropic.MessageContent) {
		if n := len(messages); n > 0 && messages[n-1].Role == role {
			messages[n-1].Content = append(messages[n-1].Content, content...)
			return
		}
		messages = append(messages, anthropic.Message{Role: role, Content: content})
	}

	for i, m := range req.History {
		if i == 0 && m.Role == domain.RoleAssistant {
			add(anthropic.RoleUser, anthropic.NewTextMessageContent(uploadPlaceholder))
		}
		role := anthropic.RoleUser
		if m.Role == domain.RoleAssistant {
			role = anthropic.RoleAssistant
		}
		add(role, anthropic.NewTextMessageContent(m.Content))
	}

	content := make([]anthropic.MessageContent, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.IsImage() {
			content = append(content, anthropic.NewImageMessageContent(
				anthropic.NewMessageContentSource(
					anthropic.MessagesContentSourceTypeBase64,
					normaliseMIME(p.Image.MimeType),
					base64.StdEncoding.EncodeToString(p.Image.Data),
				),
			))
			continue
		}
		content = append(content, anthropic.NewTextMessageContent(p.Text))
	}
	if len(content) > 0 {
		add(anthropic.RoleUser, content...)
	}
	return messages
}

func (g *ClaudeGateway) Generate(ctx context.Context, role vision.RoleName, req vision.Request) (string, error) {
	body, err := g.buildRequest(role, req)
	if err != nil {
		return "", vision.NewServiceError(backendName, vision.KindMalformedRequest, err)
	}

	resp, err := g.client.CreateMessages(ctx, body)
	if err != nil {
		return "", vision.NewServiceError(backendName, classify(err), fmt.Errorf("failed to call claude: %w", err))
	}

	for _, blk := range resp.Content {
		if blk.Text != nil {
			return *blk.Text, nil
		}
	}
	return "", nil
}

// Stream runs the streaming Messages call in a goroutine, forwarding each
// text delta as a chunk.
func (g *ClaudeGateway) Stream(ctx context.Context, role vision.RoleName, req vision.Request) (<-chan vision.Chunk, error) {
	body, err := g.buildRequest(role, req)
	if err != nil {
		return nil, vision.NewServiceError(backendName, vision.KindMalformedRequest, err)
	}

	ch := make(chan vision.Chunk, 16)
	go func() {
		defer close(ch)

		send := func(c vision.Chunk) bool {
			select {
			case ch <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		_, err := g.client.CreateMessagesStream(ctx, anthropic.MessagesStreamRequest{
			MessagesRequest: body,
			OnContentBlockDelta: func(data anthropic.MessagesEventContentBlockDeltaData) {
				if data.Delta.Text == nil || *data.Delta.Text == "" {
					return
				}
				send(vision.Chunk{Text: *data.Delta.Text})
			},
		})
		if err != nil && ctx.Err() == nil {
			slog.Debug("claude stream failed", "error", err)
			send(vision.Chunk{Err: vision.NewServiceError(backendName, classify(err), fmt.Errorf("read claude stream: %w", err))})
		}
	}()

	return ch, nil
}

func classify(err error) vision.ErrorKind {
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		return vision.KindForStatus(reqErr.StatusCode)
	}

	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		switch string(apiErr.Type) {
		case "authentication_error", "permission_error":
			return vision.KindAuth
		case "rate_limit_error", "overloaded_error":
			return vision.KindRateLimit
		case "invalid_request_error", "request_too_large", "not_found_error":
			return vision.KindMalformedRequest
		case "api_error":
			return vision.KindNetwork
		}
	}
	return vision.KindUnknown
}

// normaliseMIME maps MIME types to the values the Anthropic API accepts.
// Unknown types are coerced to jpeg, the format uploads are normalized to.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
