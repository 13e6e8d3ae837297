package web

import (
	"errors"
	"time"

	"github.com/vbonduro/plantdoc/internal/diagnosis"
	"github.com/vbonduro/plantdoc/internal/domain"
	"github.com/vbonduro/plantdoc/internal/service"
	"github.com/vbonduro/plantdoc/internal/session"
	"github.com/vbonduro/plantdoc/internal/vision"
)

type messageView struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func newMessageView(m domain.Message) messageView {
	return messageView{ID: m.ID, Role: string(m.Role), Content: m.Content, CreatedAt: m.CreatedAt}
}

func newMessageViews(ms []domain.Message) []messageView {
	views := make([]messageView, 0, len(ms))
	for _, m := range ms {
		views = append(views, newMessageView(m))
	}
	return views
}

type turnView struct {
	Stage        string        `json:"stage"`
	PlantName    string        `json:"plant_name,omitempty"`
	Messages     []messageView `json:"messages"`
	Error        string        `json:"error,omitempty"`
	Notice       string        `json:"notice,omitempty"`
	Reset        bool          `json:"reset"`
	ResetAfterMS int64         `json:"reset_after_ms,omitempty"`
	Completed    bool          `json:"completed"`
	ReportID     int64         `json:"report_id,omitempty"`
}

func newTurnView(t *service.Turn) turnView {
	return turnView{
		Stage:        string(t.Stage),
		PlantName:    t.PlantName,
		Messages:     newMessageViews(t.Messages),
		Error:        errorCode(t.Err),
		Notice:       t.Notice,
		Reset:        t.Reset,
		ResetAfterMS: t.ResetAfter.Milliseconds(),
		Completed:    t.Completed,
		ReportID:     t.ReportID,
	}
}

type sessionView struct {
	Stage               string        `json:"stage"`
	HasImage            bool          `json:"has_image"`
	PlantName           string        `json:"plant_name,omitempty"`
	PreliminaryFindings string        `json:"preliminary_findings,omitempty"`
	PendingQuestions    []string      `json:"pending_questions"`
	FinalReport         string        `json:"final_report,omitempty"`
	Transcript          []messageView `json:"transcript"`
}

func newSessionView(s domain.Session) sessionView {
	questions := s.PendingQuestions
	if questions == nil {
		questions = []string{}
	}
	return sessionView{
		Stage:               string(s.Stage),
		HasImage:            s.Image != nil,
		PlantName:           s.PlantName,
		PreliminaryFindings: s.PreliminaryFindings,
		PendingQuestions:    questions,
		FinalReport:         s.FinalReport,
		Transcript:          newMessageViews(s.Transcript),
	}
}

type reportView struct {
	ID          int64     `json:"id"`
	PlantName   string    `json:"plant_name"`
	Findings    string    `json:"findings"`
	Questions   []string  `json:"questions"`
	Answers     string    `json:"answers"`
	Report      string    `json:"report"`
	HasPhoto    bool      `json:"has_photo"`
	CompletedAt time.Time `json:"completed_at"`
}

func newReportView(r *domain.Report) reportView {
	return reportView{
		ID:          r.ID,
		PlantName:   r.PlantName,
		Findings:    r.Findings,
		Questions:   r.Questions,
		Answers:     r.Answers,
		Report:      r.Report,
		HasPhoto:    r.PhotoKey != "",
		CompletedAt: r.CompletedAt,
	}
}

type watchEvent struct {
	Type    string       `json:"type"`
	Stage   string       `json:"stage,omitempty"`
	Text    string       `json:"text,omitempty"`
	Message *messageView `json:"message,omitempty"`
}

func newWatchEvent(ev session.Event) watchEvent {
	out := watchEvent{Type: string(ev.Type), Stage: string(ev.Stage), Text: ev.Text}
	if ev.Message != nil {
		m := newMessageView(*ev.Message)
		out.Message = &m
	}
	return out
}

// errorCode names the failure class of a turn for programmatic clients.
func errorCode(err error) string {
	var se *vision.ServiceError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, diagnosis.ErrInvalidImage):
		return "invalid_image"
	case errors.Is(err, diagnosis.ErrInvalidTurn):
		return "invalid_turn"
	case errors.Is(err, diagnosis.ErrParseFailure):
		return "parse_failure"
	case errors.Is(err, diagnosis.ErrUnrecognizedSubject):
		return "unrecognized_subject"
	case errors.As(err, &se):
		return "service_" + string(se.Kind)
	default:
		return "internal"
	}
}
