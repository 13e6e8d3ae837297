package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"google.golang.org/genai"

	"github.com/vbonduro/plantdoc/internal/domain"
	"github.com/vbonduro/plantdoc/internal/vision"
)

const backendName = "gemini"

// models is the subset of *genai.Models the gateway calls.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

type GeminiGateway struct {
	models models
	model  string
	roles  vision.Roles
}

func NewGeminiGateway(ctx context.Context, apiKey, model string, roles vision.Roles) (*GeminiGateway, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiGateway{models: client.Models, model: model, roles: roles}, nil
}

func (g *GeminiGateway) Name() string { return backendName }

func (g *GeminiGateway) buildRequest(role vision.RoleName, req vision.Request) (string, []*genai.Content, *genai.GenerateContentConfig, error) {
	r, ok := g.roles.Get(role)
	if !ok {
		return "", nil, nil, fmt.Errorf("unknown role %q", role)
	}

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		contents = append(contents, genai.NewContentFromText(m.Content, toGenaiRole(m.Role)))
	}

	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.IsImage() {
			parts = append(parts, genai.NewPartFromBytes(p.Image.Data, p.Image.MimeType))
			continue
		}
		parts = append(parts, genai.NewPartFromText(p.Text))
	}
	if len(parts) > 0 {
		contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(r.Instruction, genai.RoleUser),
		Temperature:       genai.Ptr(r.Temperature),
		TopP:              genai.Ptr(r.TopP),
		TopK:              genai.Ptr(float32(r.TopK)),
		MaxOutputTokens:   int32(r.MaxOutputTokens),
	}
	return g.roles.ModelFor(role, g.model), contents, config, nil
}

func toGenaiRole(r domain.Role) genai.Role {
	if r == domain.RoleAssistant {
		return genai.RoleModel
	}
	return genai.RoleUser
}

func (g *GeminiGateway) Generate(ctx context.Context, role vision.RoleName, req vision.Request) (string, error) {
	model, contents, config, err := g.buildRequest(role, req)
	if err != nil {
		return "", vision.NewServiceError(backendName, vision.KindMalformedRequest, err)
	}

	resp, err := g.models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", vision.NewServiceError(backendName, classify(err), fmt.Errorf("failed to call gemini: %w", err))
	}
	if reason := blocked(resp); reason != "" {
		return "", vision.NewServiceError(backendName, vision.KindSafety, fmt.Errorf("response blocked: %s", reason))
	}
	return resp.Text(), nil
}

// Stream drains the genai response iterator in a goroutine, forwarding each
// response's text as a chunk.
func (g *GeminiGateway) Stream(ctx context.Context, role vision.RoleName, req vision.Request) (<-chan vision.Chunk, error) {
	model, contents, config, err := g.buildRequest(role, req)
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

		for resp, err := range g.models.GenerateContentStream(ctx, model, contents, config) {
			if err != nil {
				send(vision.Chunk{Err: vision.NewServiceError(backendName, classify(err), fmt.Errorf("read gemini stream: %w", err))})
				return
			}
			if reason := blocked(resp); reason != "" {
				send(vision.Chunk{Err: vision.NewServiceError(backendName, vision.KindSafety, fmt.Errorf("response blocked: %s", reason))})
				return
			}
			if text := resp.Text(); text != "" && !send(vision.Chunk{Text: text}) {
				return
			}
		}
	}()

	return ch, nil
}

// blocked returns the safety reason a response was withheld, if any.
func blocked(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return string(resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return string(genai.FinishReasonSafety)
	}
	return ""
}

func classify(err error) vision.ErrorKind {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return vision.KindForStatus(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return vision.KindForStatus(apiErrPtr.Code)
	}
	return vision.KindNetwork
}
