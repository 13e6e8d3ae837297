package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vbonduro/plantdoc/internal/diagnosis"
	"github.com/vbonduro/plantdoc/internal/domain"
	"github.com/vbonduro/plantdoc/internal/photostore"
	"github.com/vbonduro/plantdoc/internal/session"
)

var (
	// ErrBusy rejects a turn while another turn for the same slot is running.
	ErrBusy = errors.New("a request is already in progress for this conversation")
	// ErrArchiveDisabled is returned by report queries when no archive is configured.
	ErrArchiveDisabled = errors.New("diagnosis archive is not configured")
)

// ResetAfter is how long adapters show a reset outcome before clearing the view.
const ResetAfter = 3 * time.Second

const photoPrefix = "report"

// reportRepository is the subset of store.ReportStore that ConversationService requires.
type reportRepository interface {
	Create(ctx context.Context, r *domain.Report) (*domain.Report, error)
	GetByID(ctx context.Context, id int64) (*domain.Report, error)
	List(ctx context.Context, limit int) ([]*domain.Report, error)
}

// Turn is the result of one user action as seen by an adapter.
type Turn struct {
	Stage     domain.Stage
	PlantName string
	// Messages were produced by the turn. After a reset they are shown once
	// and are no longer part of the session.
	Messages []domain.Message
	Err      error
	// Notice is the plain-language rendering of Err.
	Notice     string
	Reset      bool
	ResetAfter time.Duration
	Completed  bool
	// ReportID is set when a completed report was archived.
	ReportID int64
}

type ConversationService struct {
	machine  *diagnosis.Machine
	reports  reportRepository
	photoStg photostore.PhotoStore
	logger   *slog.Logger
}

// NewConversationService wires the state machine to the optional archive.
// reports and photoStg may both be nil to run without one.
func NewConversationService(
	machine *diagnosis.Machine,
	reports reportRepository,
	photoStg photostore.PhotoStore,
	logger *slog.Logger,
) *ConversationService {
	return &ConversationService{
		machine:  machine,
		reports:  reports,
		photoStg: photoStg,
		logger:   logger,
	}
}

// UploadImage starts a new diagnosis for the photo, replacing any conversation
// already in the slot.
func (s *ConversationService) UploadImage(ctx context.Context, slot *session.Slot, data []byte, mimeType string) (*Turn, error) {
	return s.handle(ctx, slot, diagnosis.ImageEvent(data, mimeType))
}

func (s *ConversationService) SendMessage(ctx context.Context, slot *session.Slot, text string) (*Turn, error) {
	return s.handle(ctx, slot, diagnosis.TextEvent(text))
}

// NewConversation clears the slot.
func (s *ConversationService) NewConversation(ctx context.Context, slot *session.Slot) (*Turn, error) {
	return s.handle(ctx, slot, diagnosis.NewConversationEvent())
}

// Snapshot returns a copy of the slot's current session.
func (s *ConversationService) Snapshot(slot *session.Slot) domain.Session {
	return slot.Store.Get()
}

func (s *ConversationService) handle(ctx context.Context, slot *session.Slot, ev diagnosis.Event) (*Turn, error) {
	if !slot.TryBegin() {
		s.logger.Warn("turn rejected while busy", "client_id", slot.ID, "event", ev.Kind.String())
		return nil, ErrBusy
	}
	defer slot.End()

	start := time.Now()
	current := slot.Store.Get()
	s.logger.Info("turn started", "client_id", slot.ID, "event", ev.Kind.String(), "stage", current.Stage)

	next, out := s.machine.Step(ctx, current, ev, func(text string) {
		slot.Hub.Publish(session.Event{Type: session.EventChunk, Stage: current.Stage, Text: text})
	})

	if err := diagnosis.CheckInvariants(next); err != nil {
		// Keep the previous session rather than store an inconsistent one.
		s.logger.Error("session invariant violated", "client_id", slot.ID, "error", err)
		next = current
		out = diagnosis.Outcome{Err: fmt.Errorf("failed to apply turn: %w", err)}
	}
	slot.Store.Set(next)

	turn := &Turn{
		Stage:     next.Stage,
		PlantName: next.PlantName,
		Messages:  out.Messages,
		Err:       out.Err,
		Notice:    diagnosis.UserMessage(out.Err),
		Reset:     out.Reset,
		Completed: out.Completed,
	}
	if out.Reset && len(out.Messages) > 0 {
		turn.ResetAfter = ResetAfter
	}

	// Messages are published only once the turn produced them; streamed chunks
	// before them are provisional.
	for i := range out.Messages {
		typ := session.EventAssistantMessage
		if out.Messages[i].Role == domain.RoleUser {
			typ = session.EventUserMessage
		}
		slot.Hub.Publish(session.Event{Type: typ, Stage: next.Stage, Message: &out.Messages[i]})
	}
	if out.Err != nil && !shown(out.Messages, turn.Notice) {
		slot.Hub.Publish(session.Event{Type: session.EventError, Stage: next.Stage, Text: turn.Notice})
	}
	if out.Reset {
		slot.Hub.Publish(session.Event{Type: session.EventReset, Stage: next.Stage})
	}

	if out.Completed {
		turn.ReportID = s.archive(ctx, slot.ID, current, next, out)
	}

	attrs := []any{
		"client_id", slot.ID,
		"event", ev.Kind.String(),
		"from", current.Stage,
		"to", next.Stage,
		"reset", out.Reset,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if out.Err != nil {
		s.logger.Warn("turn failed", append(attrs, "error", out.Err)...)
	} else {
		s.logger.Info("turn complete", attrs...)
	}
	return turn, nil
}

// shown reports whether an assistant message already carries text.
func shown(messages []domain.Message, text string) bool {
	for _, m := range messages {
		if m.Role == domain.RoleAssistant && m.Content == text {
			return true
		}
	}
	return false
}

// archive records a completed diagnosis. Failures are logged and never fail
// the turn.
func (s *ConversationService) archive(ctx context.Context, clientID string, before, after domain.Session, out diagnosis.Outcome) int64 {
	if s.reports == nil {
		return 0
	}
	// The archive write should finish even if the client went away.
	ctx = context.WithoutCancel(ctx)

	var answers string
	for _, m := range out.Messages {
		if m.Role == domain.RoleUser {
			answers = m.Content
			break
		}
	}

	report := &domain.Report{
		ClientID:  clientID,
		PlantName: after.PlantName,
		Findings:  after.PreliminaryFindings,
		Questions: before.PendingQuestions,
		Answers:   answers,
		Report:    after.FinalReport,
	}

	if s.photoStg != nil && after.Image != nil {
		key, err := s.photoStg.Save(ctx, photoPrefix, after.Image.MimeType, bytes.NewReader(after.Image.Data))
		if err != nil {
			s.logger.Error("failed to archive photo", "client_id", clientID, "error", err)
		} else {
			report.PhotoKey = key
			report.MimeType = after.Image.MimeType
		}
	}

	saved, err := s.reports.Create(ctx, report)
	if err != nil {
		s.logger.Error("failed to archive report", "client_id", clientID, "plant", report.PlantName, "error", err)
		if report.PhotoKey != "" {
			if derr := s.photoStg.Delete(ctx, report.PhotoKey); derr != nil {
				s.logger.Error("failed to remove orphaned photo", "storage_key", report.PhotoKey, "error", derr)
			}
		}
		return 0
	}
	s.logger.Info("report archived", "client_id", clientID, "report_id", saved.ID, "plant", saved.PlantName)
	return saved.ID
}

func (s *ConversationService) ListReports(ctx context.Context, limit int) ([]*domain.Report, error) {
	if s.reports == nil {
		return nil, ErrArchiveDisabled
	}
	return s.reports.List(ctx, limit)
}

// GetReport returns nil when no report has the id.
func (s *ConversationService) GetReport(ctx context.Context, id int64) (*domain.Report, error) {
	if s.reports == nil {
		return nil, ErrArchiveDisabled
	}
	return s.reports.GetByID(ctx, id)
}

// ReportPhoto opens the archived photo of a report.
func (s *ConversationService) ReportPhoto(ctx context.Context, id int64) (io.ReadCloser, string, error) {
	if s.reports == nil || s.photoStg == nil {
		return nil, "", ErrArchiveDisabled
	}
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get report: %w", err)
	}
	if r == nil || r.PhotoKey == "" {
		return nil, "", photostore.ErrNotFound
	}
	return s.photoStg.Get(ctx, r.PhotoKey)
}
