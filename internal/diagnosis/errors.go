package diagnosis

import (
	"errors"
	"fmt"

	"github.com/vbonduro/plantdoc/internal/vision"
)

var (
	// ErrInvalidTurn rejects input that does not fit the current stage. It is
	// raised before any gateway call and leaves the session untouched.
	ErrInvalidTurn = errors.New("invalid turn")
	// ErrInvalidImage rejects an upload that could not be decoded.
	ErrInvalidImage = fmt.Errorf("%w: unsupported image", ErrInvalidTurn)
	// ErrParseFailure reports triage output without the required tags.
	ErrParseFailure = errors.New("analysis failed")
	// ErrUnrecognizedSubject reports that no plant species could be named.
	ErrUnrecognizedSubject = errors.New("plant not recognized")
	// ErrEmptyReply reports a model reply with no text.
	ErrEmptyReply = errors.New("empty reply from model")
)

const (
	msgUnrecognized = "Sorry, I couldn't identify a plant in this photo. " +
		"Please upload a clearer photo showing the whole plant or a close-up of its leaves."
	msgRejected = "Okay, let's start over. Please upload a new photo of your plant."
	msgNoImage  = "Please upload a photo of your plant first."
	msgBadImage = "That file isn't a supported image. Please upload a JPEG, PNG, GIF or WebP photo."
	msgEmpty    = "Please type a message."
	msgRetry    = "Analysis failed, please try again."
)

// UserMessage renders err as the plain-language text shown to the user.
func UserMessage(err error) string {
	var se *vision.ServiceError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidImage):
		return msgBadImage
	case errors.Is(err, errEmptyText):
		return msgEmpty
	case errors.Is(err, ErrInvalidTurn):
		return msgNoImage
	case errors.Is(err, ErrParseFailure), errors.Is(err, ErrEmptyReply):
		return msgRetry
	case errors.Is(err, ErrUnrecognizedSubject):
		return msgUnrecognized
	case errors.As(err, &se):
		if se.Kind == vision.KindCancelled {
			return "The request was interrupted. Please send it again."
		}
		return fmt.Sprintf("The plant service failed (%s): %v. Please try again.", se.Kind, se.Err)
	default:
		return "Something went wrong. Please try again."
	}
}

// Transient reports whether the user may retry the same input in the same stage.
func Transient(err error) bool {
	return err != nil && !errors.Is(err, ErrUnrecognizedSubject)
}

var errEmptyText = fmt.Errorf("%w: empty message", ErrInvalidTurn)
