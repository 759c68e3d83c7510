package warning

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Rosevil15/TPMSS-sub001/internal/location"
	"github.com/Rosevil15/TPMSS-sub001/internal/protocol"
)

// Publisher sends an encoded notification. *queue.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Monitor runs periodic scans over every profile and publishes level changes.
type Monitor struct {
	evaluator *Evaluator
	tracker   *StateTracker
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewMonitor creates a new warning monitor
func NewMonitor(evaluator *Evaluator, tracker *StateTracker, publisher Publisher, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		evaluator: evaluator,
		tracker:   tracker,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Scan evaluates all locations once and publishes the transitions. A
// profile's new level is stored only after its notification is published,
// so a failed publish is retried on the next scan. It returns the number of
// notifications sent.
func (m *Monitor) Scan(ctx context.Context) (int, error) {
	res, err := m.evaluator.Evaluate(ctx, location.Filter{FilterType: location.All})
	if err != nil {
		return 0, err
	}

	now := m.now()
	transitions, err := m.tracker.Apply(ctx, res, now)
	if err != nil {
		return 0, fmt.Errorf("failed to apply warning state: %w", err)
	}

	sent := 0
	for _, t := range transitions {
		n := notificationFor(t, now)
		if err := m.send(ctx, n); err != nil {
			return sent, err
		}
		sent++
		if err := m.tracker.Commit(ctx, t); err != nil {
			return sent, fmt.Errorf("failed to commit warning state: %w", err)
		}

		m.logger.Info("warning level changed",
			zap.String("type", n.Type),
			zap.String("profile_id", n.ProfileID),
			zap.String("from", n.PreviousLevel),
			zap.String("to", n.RiskLevel))
	}

	m.logger.Info("warning scan completed",
		zap.Int("scanned", len(res.Scanned)),
		zap.Int("flagged", len(res.Cases)),
		zap.Int("notifications", sent))

	return sent, nil
}

func notificationFor(t Transition, now time.Time) *protocol.WarningNotification {
	typ := protocol.WarningTypeCleared
	if t.Raised {
		typ = protocol.WarningTypeRaised
	}

	n := protocol.NewWarningNotification(typ, t.Case.ProfileID, now)
	n.Name = t.Case.Name
	n.Location = t.Case.Location
	n.RiskLevel = string(t.Case.RiskLevel)
	n.PreviousLevel = string(t.Previous)
	n.RepeatedPregnancy = t.Case.RepeatedPregnancy
	n.PregnancyCount = t.Case.PregnancyCount
	n.SchoolDropout = t.Case.SchoolDropout
	return n
}

func (m *Monitor) send(ctx context.Context, n *protocol.WarningNotification) error {
	data, err := protocol.EncodeWarningNotification(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	return m.publisher.Publish(ctx, n.Key(), data)
}
