package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vbonduro/plantdoc/internal/domain"
	"github.com/vbonduro/plantdoc/internal/vision"
)

type EventKind int

const (
	EventImageUploaded EventKind = iota
	EventUserText
	EventNewConversation
)

func (k EventKind) String() string {
	switch k {
	case EventImageUploaded:
		return "image_uploaded"
	case EventUserText:
		return "user_text"
	case EventNewConversation:
		return "new_conversation"
	default:
		return "unknown"
	}
}

// Event is one user action.
type Event struct {
	Kind         EventKind
	Image        []byte
	DeclaredMIME string
	Text         string
}

func ImageEvent(data []byte, declaredMIME string) Event {
	return Event{Kind: EventImageUploaded, Image: data, DeclaredMIME: declaredMIME}
}

func TextEvent(text string) Event { return Event{Kind: EventUserText, Text: text} }

func NewConversationEvent() Event { return Event{Kind: EventNewConversation} }

// Outcome describes what a turn produced besides the next session.
type Outcome struct {
	// Messages are the assistant and user messages produced by the turn, in
	// order. When Reset is set they were shown but not kept.
	Messages []domain.Message
	// Err is set when the turn failed. Transient errors leave the stage as it
	// was; ErrUnrecognizedSubject comes with Reset.
	Err error
	// Reset is set when the turn ended with a full session reset.
	Reset bool
	// Completed is set on the turn that produced the final report.
	Completed bool
}

// ChunkFunc receives streamed reply fragments for display. It never affects
// what the machine commits.
type ChunkFunc func(text string)

// Machine sequences model calls through the diagnosis stages. It holds no
// session state: Step maps (session, event) to (next session, outcome).
type Machine struct {
	gateway vision.Gateway
	policy  ConfirmPolicy
	logger  *slog.Logger
}

func NewMachine(gateway vision.Gateway, policy ConfirmPolicy, logger *slog.Logger) *Machine {
	return &Machine{gateway: gateway, policy: policy, logger: logger}
}

// Step applies ev to s. The input session is never modified; on failure the
// returned session equals s unless the outcome reports a reset. onChunk may
// be nil.
func (m *Machine) Step(ctx context.Context, s domain.Session, ev Event, onChunk ChunkFunc) (domain.Session, Outcome) {
	if onChunk == nil {
		onChunk = func(string) {}
	}
	s = s.Clone()

	switch ev.Kind {
	case EventNewConversation:
		return domain.NewSession(), Outcome{Reset: true}
	case EventImageUploaded:
		return m.identify(ctx, s, ev)
	case EventUserText:
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return s, Outcome{Err: errEmptyText}
		}
		switch s.Stage {
		case domain.StageAwaitingConfirmation:
			return m.confirm(ctx, s, text)
		case domain.StageAwaitingEnvironmentalInfo:
			return m.report(ctx, s, text, onChunk)
		case domain.StageFollowUpChat:
			return m.followUp(ctx, s, text, onChunk)
		default:
			return s, Outcome{Err: fmt.Errorf("%w: no image uploaded", ErrInvalidTurn)}
		}
	default:
		return s, Outcome{Err: fmt.Errorf("%w: unknown event %d", ErrInvalidTurn, ev.Kind)}
	}
}

// identify replaces whatever session exists with one bound to the new image.
func (m *Machine) identify(ctx context.Context, s domain.Session, ev Event) (domain.Session, Outcome) {
	img, err := vision.NormalizeImage(ev.Image, ev.DeclaredMIME)
	if err != nil {
		m.logger.Warn("image rejected", "declared_mime", ev.DeclaredMIME, "bytes", len(ev.Image), "error", err)
		return s, Outcome{Err: fmt.Errorf("%w: %w", ErrInvalidImage, err)}
	}

	replaced := s.Stage != domain.StageInitial
	fresh := domain.NewSession()

	raw, err := m.generate(ctx, vision.RoleIdentification, vision.Request{
		Parts: []vision.Part{vision.ImagePart(img)},
	})
	if err != nil {
		return fresh, Outcome{Err: err, Reset: replaced}
	}

	id := Classify(raw)
	if !id.Recognized {
		m.logger.Info("identification rejected", "raw", raw)
		return fresh, Outcome{
			Err:      ErrUnrecognizedSubject,
			Reset:    true,
			Messages: []domain.Message{domain.NewMessage(domain.RoleAssistant, msgUnrecognized)},
		}
	}

	reply := domain.NewMessage(domain.RoleAssistant, confirmationMessage(id.Name))
	fresh.Stage = domain.StageAwaitingConfirmation
	fresh.Image = img
	fresh.PlantName = id.Name
	fresh.Transcript = append(fresh.Transcript, reply)

	m.logger.Info("plant identified", "plant", id.Name)
	return fresh, Outcome{Messages: []domain.Message{reply}, Reset: replaced}
}

func (m *Machine) confirm(ctx context.Context, s domain.Session, text string) (domain.Session, Outcome) {
	user := domain.NewMessage(domain.RoleUser, text)

	switch classifyConfirmation(text, m.policy) {
	case confirmDeny:
		m.logger.Info("identification denied", "plant", s.PlantName)
		return domain.NewSession(), Outcome{
			Reset:    true,
			Messages: []domain.Message{user, domain.NewMessage(domain.RoleAssistant, msgRejected)},
		}
	case confirmUnclear:
		reply := domain.NewMessage(domain.RoleAssistant, clarifyMessage(s.PlantName))
		s.Transcript = append(s.Transcript, user, reply)
		return s, Outcome{Messages: []domain.Message{user, reply}}
	}

	raw, err := m.generate(ctx, vision.RoleTriage, vision.Request{
		Parts: []vision.Part{vision.ImagePart(s.Image), vision.TextPart(triagePrompt(s.PlantName))},
	})
	if err != nil {
		return s, Outcome{Err: err}
	}

	tagged, err := vision.ParseTaggedReply(raw)
	if err != nil {
		m.logger.Warn("triage reply malformed", "plant", s.PlantName, "error", err)
		return s, Outcome{Err: fmt.Errorf("%w: %w", ErrParseFailure, err)}
	}

	reply := domain.NewMessage(domain.RoleAssistant, questionsMessage(tagged.Analysis, tagged.Questions))
	s.Stage = domain.StageAwaitingEnvironmentalInfo
	s.PreliminaryFindings = tagged.Analysis
	s.PendingQuestions = tagged.Questions
	s.Transcript = append(s.Transcript, user, reply)
	return s, Outcome{Messages: []domain.Message{user, reply}}
}

func (m *Machine) report(ctx context.Context, s domain.Session, text string, onChunk ChunkFunc) (domain.Session, Outcome) {
	prompt := reportPrompt(s.PlantName, s.PreliminaryFindings, s.PendingQuestions, text)
	reportText, err := m.stream(ctx, vision.RoleFinalReport, vision.Request{
		Parts: []vision.Part{vision.ImagePart(s.Image), vision.TextPart(prompt)},
	}, onChunk)
	if err != nil {
		return s, Outcome{Err: err}
	}

	user := domain.NewMessage(domain.RoleUser, text)
	reply := domain.NewMessage(domain.RoleAssistant, reportText)
	s.Stage = domain.StageFollowUpChat
	s.PendingQuestions = nil
	s.FinalReport = reportText
	s.Transcript = append(s.Transcript, user, reply)
	return s, Outcome{Messages: []domain.Message{user, reply}, Completed: true}
}

func (m *Machine) followUp(ctx context.Context, s domain.Session, text string, onChunk ChunkFunc) (domain.Session, Outcome) {
	answer, err := m.stream(ctx, vision.RoleFollowUp, vision.Request{
		Parts:   []vision.Part{vision.ImagePart(s.Image), vision.TextPart(text)},
		History: vision.HistoryBefore(s.Transcript, text),
	}, onChunk)
	if err != nil {
		return s, Outcome{Err: err}
	}

	user := domain.NewMessage(domain.RoleUser, text)
	reply := domain.NewMessage(domain.RoleAssistant, answer)
	s.Transcript = append(s.Transcript, user, reply)
	return s, Outcome{Messages: []domain.Message{user, reply}}
}

func (m *Machine) generate(ctx context.Context, role vision.RoleName, req vision.Request) (string, error) {
	start := time.Now()
	text, err := m.gateway.Generate(ctx, role, req)
	if err != nil {
		m.logger.Error("model call failed", "role", role, "backend", m.gateway.Name(), "duration", time.Since(start), "error", err)
		return "", asServiceError(m.gateway.Name(), err)
	}
	m.logger.Debug("model call complete", "role", role, "backend", m.gateway.Name(), "duration", time.Since(start), "chars", len(text))
	return text, nil
}

// stream drains the gateway stream, forwarding each fragment to onChunk, and
// returns the full text only when the stream ended cleanly.
func (m *Machine) stream(ctx context.Context, role vision.RoleName, req vision.Request, onChunk ChunkFunc) (string, error) {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := m.gateway.Stream(ctx, role, req)
	if err != nil {
		m.logger.Error("model stream failed to start", "role", role, "backend", m.gateway.Name(), "error", err)
		return "", asServiceError(m.gateway.Name(), err)
	}

	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			m.logger.Warn("model stream interrupted", "role", role, "received", sb.Len())
			return "", vision.NewServiceError(m.gateway.Name(), vision.KindCancelled, ctx.Err())
		case c, ok := <-ch:
			if !ok {
				if err := ctx.Err(); err != nil {
					m.logger.Warn("model stream interrupted", "role", role, "received", sb.Len())
					return "", vision.NewServiceError(m.gateway.Name(), vision.KindCancelled, err)
				}
				if sb.Len() == 0 {
					return "", vision.NewServiceError(m.gateway.Name(), vision.KindUnknown, ErrEmptyReply)
				}
				m.logger.Debug("model stream complete", "role", role, "backend", m.gateway.Name(), "duration", time.Since(start), "chars", sb.Len())
				return sb.String(), nil
			}
			if c.Err != nil {
				m.logger.Error("model stream failed", "role", role, "backend", m.gateway.Name(), "received", sb.Len(), "error", c.Err)
				return "", asServiceError(m.gateway.Name(), c.Err)
			}
			sb.WriteString(c.Text)
			onChunk(c.Text)
		}
	}
}

func asServiceError(backend string, err error) error {
	var se *vision.ServiceError
	if errors.As(err, &se) {
		return err
	}
	return vision.NewServiceError(backend, vision.KindUnknown, err)
}
