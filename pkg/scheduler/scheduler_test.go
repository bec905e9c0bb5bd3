package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestRegisterSkipsEmptySpec(t *testing.T) {
	s := New(nil, time.Second)
	if _, err := s.Register("noop", "", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if s.Entries() != 0 {
		t.Fatalf("expected no entries, got %d", s.Entries())
	}
}

func TestRegisterRejectsInvalidSpec(t *testing.T) {
	s := New(time.UTC, time.Second)
	if _, err := s.Register("bad", "not a cron spec", func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
}

func TestRegisterRunsJob(t *testing.T) {
	s := New(time.UTC, time.Second)
	done := make(chan struct{}, 1)
	if _, err := s.Register("tick", "* * * * * *", func(context.Context) error {
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	s.Start()
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("job did not run")
	}
}
