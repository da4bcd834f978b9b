package types

import (
	"context"
	"testing"
)

// mockLogger implements the Logger interface for testing purposes.
type mockLogger struct {
	messages []string
}

func (m *mockLogger) Info(msg string, args ...any)  { m.messages = append(m.messages, "info:"+msg) }
func (m *mockLogger) Error(msg string, args ...any) { m.messages = append(m.messages, "error:"+msg) }
func (m *mockLogger) Warn(msg string, args ...any)  { m.messages = append(m.messages, "warn:"+msg) }
func (m *mockLogger) With(args ...any) Logger        { return m }

func TestWithLogger_LoggerFromContext(t *testing.T) {
	t.Run("round-trip stores and retrieves logger", func(t *testing.T) {
		logger := &mockLogger{}
		ctx := WithLogger(context.Background(), logger)

		got := LoggerFromContext(ctx)
		if got != logger {
			t.Fatalf("LoggerFromContext returned %v, want the stored logger", got)
		}
		got.Info("hello")
		if len(logger.messages) != 1 || logger.messages[0] != "info:hello" {
			t.Errorf("messages = %v, want [info:hello]", logger.messages)
		}
	})

	t.Run("missing logger returns nil", func(t *testing.T) {
		if got := LoggerFromContext(context.Background()); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})

	t.Run("inner context overrides outer", func(t *testing.T) {
		outer := &mockLogger{}
		inner := &mockLogger{}
		ctx := WithLogger(WithLogger(context.Background(), outer), inner)
		if LoggerFromContext(ctx) != inner {
			t.Error("expected the innermost logger")
		}
	})
}

func TestWithRequestID_GetRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req_abc")
	if got := GetRequestID(ctx); got != "req_abc" {
		t.Errorf("GetRequestID() = %q, want %q", got, "req_abc")
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() on empty context = %q, want empty", got)
	}
}

func TestSlogAdapter_With(t *testing.T) {
	base := NewSlogAdapter(nil)
	child := base.With("job_id", "job_1")
	if child == nil {
		t.Fatal("With returned nil")
	}
	if _, ok := child.(*SlogAdapter); !ok {
		t.Errorf("With returned %T, want *SlogAdapter", child)
	}
}
