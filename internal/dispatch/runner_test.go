package dispatch

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/makersrow/makersrow-backend/pkg/logger"
)

func newRunner(t *testing.T) *Runner {
	t.Helper()
	runner, err := NewRunner(logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return runner
}

func TestRunSwallowsErrors(t *testing.T) {
	t.Parallel()

	runner := newRunner(t)
	called := false
	runner.Run(context.Background(), "confirmation_email", true, func(context.Context) error {
		called = true
		return errors.New("smtp unavailable")
	})
	if !called {
		t.Fatal("task not invoked")
	}
}

func TestRunSwallowsPanics(t *testing.T) {
	t.Parallel()

	runner := newRunner(t)
	runner.Run(context.Background(), "analytics_capture", true, func(context.Context) error {
		panic("publisher gone")
	})
}

func TestRunSkipsWhenDisabled(t *testing.T) {
	t.Parallel()

	runner := newRunner(t)
	called := false
	runner.Run(context.Background(), "seller_notification", false, func(context.Context) error {
		called = true
		return nil
	})
	if called {
		t.Fatal("disabled task was invoked")
	}
}

func TestNormalizeRecipients(t *testing.T) {
	t.Parallel()

	got := NormalizeRecipients([]string{
		"Seller@Example.com",
		"  seller@example.com ",
		"",
		"ops@example.com",
		"OPS@example.com",
	})
	want := []string{"seller@example.com", "ops@example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected recipients: %v", got)
	}
}
