package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stage is the current phase of a diagnosis conversation.
type Stage string

const (
	StageInitial                   Stage = "initial"
	StageAwaitingConfirmation      Stage = "awaiting_confirmation"
	StageAwaitingEnvironmentalInfo Stage = "awaiting_environmental_info"
	StageFollowUpChat              Stage = "follow_up_chat"
)

// Rank orders stages along the happy path; a successful turn never decreases it.
func (s Stage) Rank() int {
	switch s {
	case StageAwaitingConfirmation:
		return 1
	case StageAwaitingEnvironmentalInfo:
		return 2
	case StageFollowUpChat:
		return 3
	default:
		return 0
	}
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	ID        string
	Role      Role
	Content   string
	CreatedAt time.Time
}

func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// Image is an uploaded photograph after normalization.
type Image struct {
	Data     []byte
	MimeType string
}

// Session is the state of one diagnosis conversation. The zero value is the
// empty initial session.
type Session struct {
	Stage               Stage
	Image               *Image
	PlantName           string
	PreliminaryFindings string
	PendingQuestions    []string
	Transcript          []Message
	FinalReport         string
}

// NewSession returns an empty session in the initial stage.
func NewSession() Session {
	return Session{Stage: StageInitial}
}

// Clone returns a copy that shares no slices with s. The image payload is
// shared; it is never written after binding.
func (s Session) Clone() Session {
	c := s
	if s.Stage == "" {
		c.Stage = StageInitial
	}
	if s.PendingQuestions != nil {
		c.PendingQuestions = append([]string(nil), s.PendingQuestions...)
	}
	if s.Transcript != nil {
		c.Transcript = append([]Message(nil), s.Transcript...)
	}
	return c
}

// Report is a completed diagnosis recorded in the archive.
type Report struct {
	ID          int64
	ClientID    string
	PlantName   string
	Findings    string
	Questions   []string
	Answers     string
	Report      string
	PhotoKey    string
	MimeType    string
	CompletedAt time.Time
}
