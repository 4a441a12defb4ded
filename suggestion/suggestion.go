// Package suggestion validates and delivers the feedback form.
package suggestion

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxLength is the longest accepted suggestion, in characters
const MaxLength = 2000

var (
	ErrMissingFields = errors.New("all fields must be filled")
	ErrInvalidEmail  = errors.New("invalid email format")
	ErrTooLong       = fmt.Errorf("suggestion cannot exceed %d characters", MaxLength)
)

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// Form is what the user typed
type Form struct {
	Name  string
	Email string
	Text  string
}

// Validate checks the form in the order the screen reports problems
func (f Form) Validate() error {
	if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Email) == "" || strings.TrimSpace(f.Text) == "" {
		return ErrMissingFields
	}
	if !emailPattern.MatchString(f.Email) {
		return ErrInvalidEmail
	}
	if utf8.RuneCountInString(f.Text) > MaxLength {
		return ErrTooLong
	}
	return nil
}

// Suggestion is an accepted submission
type Suggestion struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Text        string    `json:"text"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Sink receives accepted suggestions
type Sink interface {
	Deliver(ctx context.Context, s Suggestion) error
}

// LogSink delivers suggestions to the log
type LogSink struct {
	Logger *zap.Logger
}

// Deliver logs the suggestion
func (l LogSink) Deliver(_ context.Context, s Suggestion) error {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("suggestion received",
		zap.String("id", s.ID.String()),
		zap.String("name", s.Name),
		zap.String("email", s.Email),
		zap.Int("length", utf8.RuneCountInString(s.Text)))
	return nil
}

// Box validates forms and hands accepted ones to a sink
type Box struct {
	sink Sink
	now  func() time.Time
}

// NewBox creates a Box delivering to sink
func NewBox(sink Sink) *Box {
	return &Box{sink: sink, now: time.Now}
}

// Submit validates f and delivers it
func (b *Box) Submit(ctx context.Context, f Form) (Suggestion, error) {
	if err := f.Validate(); err != nil {
		return Suggestion{}, err
	}
	s := Suggestion{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(f.Name),
		Email:       strings.TrimSpace(f.Email),
		Text:        f.Text,
		SubmittedAt: b.now(),
	}
	if err := b.sink.Deliver(ctx, s); err != nil {
		return Suggestion{}, fmt.Errorf("failed to deliver suggestion: %w", err)
	}
	return s, nil
}
