package office

import (
	"context"

	"github.com/kylemclaren/claude-office/internal/db"
)

// SendMessage stores a message between two existing coworkers
func (s *Service) SendMessage(ctx context.Context, from, to, body string) (*db.Message, error) {
	from, err := requireText("sender", from)
	if err != nil {
		return nil, err
	}
	if to, err = requireText("recipient", to); err != nil {
		return nil, err
	}
	if body, err = requireText("body", body); err != nil {
		return nil, err
	}

	m := &db.Message{Sender: from, Recipient: to, Body: body, CreatedAt: s.timestamp()}
	err = s.store.RunAtomic(ctx, func(tx db.Store) error {
		for _, name := range []string{from, to} {
			if err := requireCoworker(ctx, tx, name); err != nil {
				return err
			}
		}
		return tx.CreateMessage(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug().Int64("message_id", m.ID).Str("from", from).Str("to", to).Msg("message sent")
	return m, nil
}

// ListMessages lists messages newest first
func (s *Service) ListMessages(ctx context.Context, filter db.MessageFilter) ([]*db.Message, error) {
	messages, err := s.store.ListMessages(ctx, filter)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []*db.Message{}
	}
	return messages, nil
}

// MarkMessageRead flags a message as read
func (s *Service) MarkMessageRead(ctx context.Context, id int64) error {
	return s.store.MarkMessageRead(ctx, id)
}
