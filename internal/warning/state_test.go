package warning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rosevil15/TPMSS-sub001/internal/database/dbtest"
	"github.com/Rosevil15/TPMSS-sub001/internal/protocol"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *StateTracker) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, NewStateTracker(client, 24*time.Hour)
}

func TestStateTracker_MissingIsNone(t *testing.T) {
	_, st := setupTestRedis(t)

	state, err := st.GetState(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, RiskNone, state.Level)
}

func TestStateTracker_SetStateTTL(t *testing.T) {
	mr, st := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, st.SetState(ctx, "p1", &State{Level: RiskHigh, PregnancyCount: 3}))
	assert.True(t, mr.Exists("warning_state:p1"))
	assert.Equal(t, 24*time.Hour, mr.TTL("warning_state:p1"))

	mr.FastForward(25 * time.Hour)
	state, err := st.GetState(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, RiskNone, state.Level)
}

func TestStateTracker_Apply(t *testing.T) {
	mr, st := setupTestRedis(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	first := &Result{
		Cases: []Case{
			{ProfileID: "a", RiskLevel: RiskMedium, SchoolDropout: true},
			{ProfileID: "b", RiskLevel: RiskHigh, RepeatedPregnancy: true, SchoolDropout: true, PregnancyCount: 2},
		},
		Scanned: []string{"a", "b", "c"},
	}
	transitions, err := st.Apply(ctx, first, now)
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.True(t, transitions[0].Raised)
	assert.Equal(t, RiskNone, transitions[0].Previous)
	assert.Equal(t, "b", transitions[1].Case.ProfileID)
	assert.False(t, mr.Exists("warning_state:a"), "raised state waits for commit")

	commitAll(t, st, transitions)
	assert.True(t, mr.Exists("warning_state:a"))
	assert.True(t, mr.Exists("warning_state:b"))
	assert.False(t, mr.Exists("warning_state:c"))

	// a escalates, b drops to medium silently, nothing else changes.
	second := &Result{
		Cases: []Case{
			{ProfileID: "a", RiskLevel: RiskHigh, RepeatedPregnancy: true, SchoolDropout: true},
			{ProfileID: "b", RiskLevel: RiskMedium, RepeatedPregnancy: true, PregnancyCount: 2},
		},
		Scanned: []string{"a", "b", "c"},
	}
	transitions, err = st.Apply(ctx, second, now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, "a", transitions[0].Case.ProfileID)
	assert.Equal(t, RiskMedium, transitions[0].Previous)
	commitAll(t, st, transitions)

	state, err := st.GetState(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, RiskMedium, state.Level)
	assert.Equal(t, now, state.RaisedAt.UTC())

	// b is no longer flagged.
	third := &Result{
		Cases:   []Case{{ProfileID: "a", RiskLevel: RiskHigh}},
		Scanned: []string{"a", "b", "c"},
	}
	transitions, err = st.Apply(ctx, third, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.False(t, transitions[0].Raised)
	assert.Equal(t, "b", transitions[0].Case.ProfileID)
	assert.Equal(t, RiskMedium, transitions[0].Previous)
	assert.Nil(t, transitions[0].Next)
	assert.True(t, mr.Exists("warning_state:b"), "clear waits for commit")

	commitAll(t, st, transitions)
	assert.False(t, mr.Exists("warning_state:b"))
}

func TestStateTracker_UncommittedTransitionRepeats(t *testing.T) {
	_, st := setupTestRedis(t)
	ctx := context.Background()
	res := &Result{
		Cases:   []Case{{ProfileID: "a", RiskLevel: RiskMedium, SchoolDropout: true}},
		Scanned: []string{"a"},
	}

	first, err := st.Apply(ctx, res, time.Now())
	require.NoError(t, err)
	require.Len(t, first, 1)

	again, err := st.Apply(ctx, res, time.Now())
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, RiskNone, again[0].Previous)

	require.NoError(t, st.Commit(ctx, again[0]))
	after, err := st.Apply(ctx, res, time.Now())
	require.NoError(t, err)
	assert.Empty(t, after)
}

func commitAll(t *testing.T, st *StateTracker, transitions []Transition) {
	t.Helper()
	for _, tr := range transitions {
		require.NoError(t, st.Commit(context.Background(), tr))
	}
}

func TestStateTracker_RedisDown(t *testing.T) {
	mr, st := setupTestRedis(t)
	mr.SetError("LOADING server is loading")

	_, err := st.Apply(context.Background(), &Result{Scanned: []string{"a"}}, time.Now())
	assert.Error(t, err)
}

type fakePublisher struct {
	keys     []string
	messages []*protocol.WarningNotification
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, key string, value []byte) error {
	if p.err != nil {
		return p.err
	}
	n, err := protocol.DecodeWarningNotification(value)
	if err != nil {
		return err
	}
	p.keys = append(p.keys, key)
	p.messages = append(p.messages, n)
	return nil
}

func TestMonitor_Scan(t *testing.T) {
	db := dbtest.New(t)
	dbtest.AddProfile(t, db, dbtest.Person{ID: "p1", First: "Ana", Last: "Cruz", Province: "Cebu"})
	dbtest.AddProfile(t, db, dbtest.Person{ID: "p2", First: "Bea", Last: "Reyes", Province: "Cebu"})
	dbtest.AddHealth(t, db, "p1", "Pregnant", 2)
	dbtest.AddEducation(t, db, "p1", "Dropout", nil)

	_, st := setupTestRedis(t)
	pub := &fakePublisher{}
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	m := NewMonitor(NewEvaluator(db, nil), st, pub, zap.NewNop())
	m.now = func() time.Time { return now }

	sent, err := m.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, pub.messages, 1)

	n := pub.messages[0]
	assert.Equal(t, []string{"p1"}, pub.keys)
	assert.Equal(t, protocol.WarningTypeRaised, n.Type)
	assert.Equal(t, "Ana Cruz", n.Name)
	assert.Equal(t, "high", n.RiskLevel)
	assert.Equal(t, "none", n.PreviousLevel)
	assert.NotEmpty(t, n.ID)
	assert.True(t, now.Equal(n.DetectedAt))

	// Unchanged data publishes nothing.
	sent, err = m.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestMonitor_PublishFailure(t *testing.T) {
	db := dbtest.New(t)
	dbtest.AddProfile(t, db, dbtest.Person{ID: "p1"})
	dbtest.AddEducation(t, db, "p1", "Dropout", nil)

	mr, st := setupTestRedis(t)
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	m := NewMonitor(NewEvaluator(db, nil), st, pub, nil)

	sent, err := m.Scan(context.Background())
	assert.Error(t, err)
	assert.Zero(t, sent)
	assert.False(t, mr.Exists("warning_state:p1"))

	// The broker recovers and the next scan delivers the same escalation.
	pub.err = nil
	sent, err = m.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, pub.messages, 1)
	assert.Equal(t, "p1", pub.messages[0].ProfileID)
	assert.Equal(t, protocol.WarningTypeRaised, pub.messages[0].Type)
	assert.Equal(t, "medium", pub.messages[0].RiskLevel)
	assert.True(t, mr.Exists("warning_state:p1"))

	sent, err = m.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestMonitor_ClearRetriedAfterPublishFailure(t *testing.T) {
	db := dbtest.New(t)
	dbtest.AddProfile(t, db, dbtest.Person{ID: "p1"})

	_, st := setupTestRedis(t)
	require.NoError(t, st.SetState(context.Background(), "p1", &State{Level: RiskMedium}))

	pub := &fakePublisher{err: errors.New("broker unavailable")}
	m := NewMonitor(NewEvaluator(db, nil), st, pub, nil)

	_, err := m.Scan(context.Background())
	require.Error(t, err)

	pub.err = nil
	sent, err := m.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, pub.messages, 1)
	assert.Equal(t, protocol.WarningTypeCleared, pub.messages[0].Type)
	assert.Equal(t, "medium", pub.messages[0].PreviousLevel)
}
