package warning

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// State is the last level recorded for a profile.
type State struct {
	Level          RiskLevel `json:"level"`
	PregnancyCount int       `json:"pregnancy_count"`
	SchoolDropout  bool      `json:"school_dropout"`
	RaisedAt       time.Time `json:"raised_at"`
	LastChecked    time.Time `json:"last_checked"`
}

// StateTracker stores per-profile warning levels in Redis so scans can
// detect transitions.
type StateTracker struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStateTracker creates a new state tracker. Keys expire after ttl so
// profiles that leave the store do not linger.
func NewStateTracker(redisClient *redis.Client, ttl time.Duration) *StateTracker {
	return &StateTracker{redis: redisClient, ttl: ttl}
}

func stateKey(profileID string) string {
	return "warning_state:" + profileID
}

// GetState returns the stored state, or a none-level state when absent.
func (st *StateTracker) GetState(ctx context.Context, profileID string) (*State, error) {
	data, err := st.redis.Get(ctx, stateKey(profileID)).Result()
	if err == redis.Nil {
		return &State{Level: RiskNone}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state from Redis: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

// SetState saves the state for a profile.
func (st *StateTracker) SetState(ctx context.Context, profileID string, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := st.redis.Set(ctx, stateKey(profileID), data, st.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set state in Redis: %w", err)
	}
	return nil
}

// DeleteState returns a profile to none.
func (st *StateTracker) DeleteState(ctx context.Context, profileID string) error {
	return st.redis.Del(ctx, stateKey(profileID)).Err()
}

// Transition is a level change worth notifying about. Its state is not
// stored until Commit.
type Transition struct {
	Case     Case
	Previous RiskLevel
	Raised   bool   // false means cleared
	Next     *State // nil when cleared
}

// Apply compares the levels in res with the stored ones and returns
// escalations and clears in scan order, leaving their states for Commit. A
// profile that was scanned but not flagged is at none. Changes that need no
// notification, such as a drop from high to medium, are stored directly.
func (st *StateTracker) Apply(ctx context.Context, res *Result, now time.Time) ([]Transition, error) {
	flagged := make(map[string]Case, len(res.Cases))
	for _, c := range res.Cases {
		flagged[c.ProfileID] = c
	}

	var transitions []Transition
	for _, id := range res.Scanned {
		prev, err := st.GetState(ctx, id)
		if err != nil {
			return nil, err
		}

		c, ok := flagged[id]
		if !ok {
			if prev.Level != RiskNone {
				transitions = append(transitions, Transition{
					Case:     Case{ProfileID: id, RiskLevel: RiskNone},
					Previous: prev.Level,
				})
			}
			continue
		}

		next := &State{
			Level:          c.RiskLevel,
			PregnancyCount: c.PregnancyCount,
			SchoolDropout:  c.SchoolDropout,
			RaisedAt:       prev.RaisedAt,
			LastChecked:    now,
		}
		if c.RiskLevel.rank() > prev.Level.rank() {
			next.RaisedAt = now
			transitions = append(transitions, Transition{Case: c, Previous: prev.Level, Raised: true, Next: next})
			continue
		}
		if err := st.SetState(ctx, id, next); err != nil {
			return nil, err
		}
	}
	return transitions, nil
}

// Commit stores the state a transition leads to. Until it is committed the
// next Apply reports the same transition again.
func (st *StateTracker) Commit(ctx context.Context, t Transition) error {
	if t.Next == nil {
		if err := st.DeleteState(ctx, t.Case.ProfileID); err != nil {
			return fmt.Errorf("failed to delete state: %w", err)
		}
		return nil
	}
	return st.SetState(ctx, t.Case.ProfileID, t.Next)
}
