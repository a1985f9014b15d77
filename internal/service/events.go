package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"seatshare/internal/domain"
	"seatshare/internal/logger"
)

// publish hands a committed event to the notifier. Recipients equal to the
// actor are dropped; nobody is notified of their own action.
func publish(ctx context.Context, pub domain.EventPublisher, log *zap.Logger, t domain.EventType, actorID, subjectID string, recipients []string, data map[string]string) {
	var to []string
	seen := make(map[string]struct{}, len(recipients))
	for _, r := range recipients {
		if r == "" || r == actorID {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		to = append(to, r)
	}
	if len(to) == 0 {
		return
	}

	e := domain.Event{
		ID:         uuid.NewString(),
		Type:       t,
		ActorID:    actorID,
		Recipients: to,
		SubjectID:  subjectID,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
	pub.Publish(ctx, e)
	logger.WithContext(ctx, log).Debug("event published",
		zap.String("type", string(t)),
		zap.String("event_id", e.ID),
		zap.Strings("recipients", to),
	)
}
