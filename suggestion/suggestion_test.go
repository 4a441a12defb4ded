package suggestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		form Form
		want error
	}{
		{"ok", Form{"Ada", "ada@example.com", "More cities please"}, nil},
		{"missing name", Form{"", "ada@example.com", "hi"}, ErrMissingFields},
		{"blank text", Form{"Ada", "ada@example.com", "   "}, ErrMissingFields},
		{"bad email", Form{"Ada", "ada.example.com", "hi"}, ErrInvalidEmail},
		{"no tld", Form{"Ada", "ada@example", "hi"}, ErrInvalidEmail},
		{"at limit", Form{"Ada", "ada@example.com", strings.Repeat("é", MaxLength)}, nil},
		{"too long", Form{"Ada", "ada@example.com", strings.Repeat("a", MaxLength+1)}, ErrTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.form.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

type memorySink struct {
	got []Suggestion
	err error
}

func (m *memorySink) Deliver(_ context.Context, s Suggestion) error {
	if m.err != nil {
		return m.err
	}
	m.got = append(m.got, s)
	return nil
}

func TestBoxSubmit(t *testing.T) {
	sink := &memorySink{}
	box := NewBox(sink)

	s, err := box.Submit(context.Background(), Form{" Ada ", "ada@example.com", "Add wind gusts"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if s.ID == uuid.Nil || s.Name != "Ada" || s.SubmittedAt.IsZero() {
		t.Fatalf("suggestion = %+v", s)
	}
	if len(sink.got) != 1 || sink.got[0].ID != s.ID {
		t.Fatalf("sink got %+v", sink.got)
	}

	if _, err := box.Submit(context.Background(), Form{Name: "Ada"}); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("invalid form = %v", err)
	}
	if len(sink.got) != 1 {
		t.Fatal("invalid form must not be delivered")
	}
}

func TestBoxSubmit_SinkError(t *testing.T) {
	boom := errors.New("smtp down")
	box := NewBox(&memorySink{err: boom})
	if _, err := box.Submit(context.Background(), Form{"Ada", "ada@example.com", "hi"}); !errors.Is(err, boom) {
		t.Fatalf("Submit = %v, want wrapped sink error", err)
	}
}

func TestLogSink(t *testing.T) {
	box := NewBox(LogSink{Logger: zaptest.NewLogger(t)})
	if _, err := box.Submit(context.Background(), Form{"Ada", "ada@example.com", "hi"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
}
