package office

import (
	"errors"
	"testing"
	"time"

	"github.com/kylemclaren/claude-office/internal/db"
)

func TestSendMessageRequiresBothCoworkers(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	h.mustCoworker(t, "alice")

	if _, err := h.Service.SendMessage(h.Ctx, "alice", "ghost", "hi"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown recipient, got %v", err)
	}
	if _, err := h.Service.SendMessage(h.Ctx, "ghost", "alice", "hi"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown sender, got %v", err)
	}
	if _, err := h.Service.SendMessage(h.Ctx, "alice", "alice", "  "); !errors.Is(err, db.ErrValidation) {
		t.Fatalf("expected ErrValidation for an empty body, got %v", err)
	}
}

func TestMessageInbox(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	h.mustCoworker(t, "alice")
	h.mustCoworker(t, "bob")

	first, err := h.Service.SendMessage(h.Ctx, "alice", "bob", "standup at 9")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	h.Clock.Advance(time.Minute)
	if _, err := h.Service.SendMessage(h.Ctx, "alice", "bob", "moved to 10"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	inbox, err := h.Service.ListMessages(h.Ctx, db.MessageFilter{Recipient: strPtr("bob")})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(inbox) != 2 || inbox[0].Body != "moved to 10" {
		t.Fatalf("expected 2 messages newest first, got %+v", inbox)
	}

	if err := h.Service.MarkMessageRead(h.Ctx, first.ID); err != nil {
		t.Fatalf("MarkMessageRead: %v", err)
	}
	unread, _ := h.Service.ListMessages(h.Ctx, db.MessageFilter{Recipient: strPtr("bob"), UnreadOnly: true})
	if len(unread) != 1 || unread[0].Body != "moved to 10" {
		t.Fatalf("expected only the newer message unread, got %+v", unread)
	}

	none, _ := h.Service.ListMessages(h.Ctx, db.MessageFilter{Recipient: strPtr("alice")})
	if none == nil || len(none) != 0 {
		t.Fatalf("expected an empty, non-nil inbox for alice")
	}
}
