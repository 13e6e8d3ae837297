package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vbonduro/plantdoc/internal/domain"
	"github.com/vbonduro/plantdoc/internal/vision"
)

const backendName = "ollama"

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type options struct {
	Temperature float32 `json:"temperature,omitempty"`
	TopP        float32 `json:"top_p,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  options       `json:"options"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

type OllamaGateway struct {
	host   string
	model  string
	roles  vision.Roles
	client *http.Client
}

func NewOllamaGateway(host, model string, roles vision.Roles) *OllamaGateway {
	return &OllamaGateway{
		host:   strings.TrimRight(host, "/"),
		model:  model,
		roles:  roles,
		client: &http.Client{},
	}
}

func (g *OllamaGateway) Name() string { return backendName }

func (g *OllamaGateway) buildRequest(role vision.RoleName, req vision.Request, stream bool) (chatRequest, error) {
	r, ok := g.roles.Get(role)
	if !ok {
		return chatRequest{}, fmt.Errorf("unknown role %q", role)
	}

	messages := make([]chatMessage, 0, len(req.History)+2)
	messages = append(messages, chatMessage{Role: "system", Content: r.Instruction})
	for _, m := range req.History {
		messages = append(messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	var texts []string
	var images []string
	for _, p := range req.Parts {
		if p.IsImage() {
			images = append(images, base64.StdEncoding.EncodeToString(p.Image.Data))
			continue
		}
		texts = append(texts, p.Text)
	}
	messages = append(messages, chatMessage{
		Role:    string(domain.RoleUser),
		Content: strings.Join(texts, "\n\n"),
		Images:  images,
	})

	return chatRequest{
		Model:    g.roles.ModelFor(role, g.model),
		Messages: messages,
		Stream:   stream,
		Options: options{
			Temperature: r.Temperature,
			TopP:        r.TopP,
			TopK:        r.TopK,
			NumPredict:  r.MaxOutputTokens,
		},
	}, nil
}

func (g *OllamaGateway) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, vision.NewServiceError(backendName, vision.KindMalformedRequest, fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.host+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, vision.NewServiceError(backendName, vision.KindMalformedRequest, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, vision.NewServiceError(backendName, vision.KindNetwork, fmt.Errorf("failed to call ollama: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, vision.NewServiceError(backendName, vision.KindForStatus(resp.StatusCode),
			fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody))))
	}
	return resp, nil
}

func (g *OllamaGateway) Generate(ctx context.Context, role vision.RoleName, req vision.Request) (string, error) {
	body, err := g.buildRequest(role, req, false)
	if err != nil {
		return "", vision.NewServiceError(backendName, vision.KindMalformedRequest, err)
	}

	resp, err := g.post(ctx, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var respBody chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return "", vision.NewServiceError(backendName, vision.KindUnknown, fmt.Errorf("failed to decode response: %w", err))
	}
	if respBody.Error != "" {
		return "", vision.NewServiceError(backendName, vision.KindUnknown, fmt.Errorf("ollama error: %s", respBody.Error))
	}
	return respBody.Message.Content, nil
}

// Stream reads Ollama's newline-delimited JSON stream, forwarding each
// message delta as a chunk.
func (g *OllamaGateway) Stream(ctx context.Context, role vision.RoleName, req vision.Request) (<-chan vision.Chunk, error) {
	body, err := g.buildRequest(role, req, true)
	if err != nil {
		return nil, vision.NewServiceError(backendName, vision.KindMalformedRequest, err)
	}

	resp, err := g.post(ctx, body)
	if err != nil {
		return nil, err
	}

	ch := make(chan vision.Chunk, 16)
	go func() {
		defer close(ch)
		defer func() {
			if err := resp.Body.Close(); err != nil {
				slog.Error("failed to close ollama stream body", "error", err)
			}
		}()

		send := func(c vision.Chunk) bool {
			select {
			case ch <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var event chatResponse
			if err := json.Unmarshal(line, &event); err != nil {
				send(vision.Chunk{Err: vision.NewServiceError(backendName, vision.KindUnknown, fmt.Errorf("failed to decode stream line: %w", err))})
				return
			}
			if event.Error != "" {
				send(vision.Chunk{Err: vision.NewServiceError(backendName, vision.KindUnknown, fmt.Errorf("ollama error: %s", event.Error))})
				return
			}
			if event.Message.Content != "" && !send(vision.Chunk{Text: event.Message.Content}) {
				return
			}
			if event.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			send(vision.Chunk{Err: vision.NewServiceError(backendName, vision.KindNetwork, fmt.Errorf("read ollama stream: %w", err))})
			return
		}
		if ctx.Err() == nil {
			send(vision.Chunk{Err: vision.NewServiceError(backendName, vision.KindNetwork, io.ErrUnexpectedEOF)})
		}
	}()

	return ch, nil
}
