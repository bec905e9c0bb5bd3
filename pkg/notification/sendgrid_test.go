package notification

import (
	"context"
	"errors"
	"testing"
)

func TestSendGridBuild(t *testing.T) {
	svc := NewSendGridService("key", "College Orbit", "no-reply@collegeorbit.app")
	m := svc.Build("Ada", "ada@example.edu", Message{Title: "Deadline tomorrow", Body: "Lab report is due"})

	if m.From == nil || m.From.Address != "no-reply@collegeorbit.app" {
		t.Fatalf("unexpected from: %+v", m.From)
	}
	if len(m.Personalizations) != 1 {
		t.Fatalf("expected 1 personalization, got %d", len(m.Personalizations))
	}
	p := m.Personalizations[0]
	if p.Subject != "[College Orbit] Deadline tomorrow" {
		t.Fatalf("unexpected subject %q", p.Subject)
	}
	if len(p.To) != 1 || p.To[0].Address != "ada@example.edu" {
		t.Fatalf("unexpected recipients: %+v", p.To)
	}
}

func TestSendEmailRequiresAddress(t *testing.T) {
	svc := NewSendGridService("key", "College Orbit", "no-reply@collegeorbit.app")
	if err := svc.SendEmail(context.Background(), "", "", Message{}); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
}

func TestLogNotifier(t *testing.T) {
	var n LogNotifier
	sent, err := n.SendPush(context.Background(), []Device{{Token: "a"}, {Token: "b"}}, Message{Title: "x"})
	if err != nil || sent != 2 {
		t.Fatalf("SendPush = %d, %v", sent, err)
	}
	if _, err := n.SendPush(context.Background(), nil, Message{}); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
}
