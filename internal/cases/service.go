package cases

import (
	"context"
	"database/sql"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Rosevil15/TPMSS-sub001/internal/apperror"
	"github.com/Rosevil15/TPMSS-sub001/internal/database"
)

// Store is the case persistence the service needs. *database.DB implements it.
type Store interface {
	InsertCase(ctx context.Context, c *database.CaseRecord) error
	UpdateCase(ctx context.Context, c *database.CaseRecord) error
	GetCase(ctx context.Context, caseID int64) (*database.CaseRecord, error)
}

// Service creates and edits case records
type Service struct {
	store       Store
	logger      *zap.Logger
	maxAttempts int

	mu  sync.Mutex
	rng Source
	now func() time.Time
}

// NewService creates a case service. maxAttempts bounds id generation on
// collisions; 1 surfaces the first collision to the caller.
func NewService(store Store, maxAttempts int, logger *zap.Logger) *Service {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       store,
		logger:      logger,
		maxAttempts: maxAttempts,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:         time.Now,
	}
}

func (s *Service) nextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewID(s.now(), s.rng)
}

// Create validates the form and inserts a case under a fresh id.
func (s *Service) Create(ctx context.Context, form Form) (*database.CaseRecord, error) {
	const op = "create case"

	if err := form.Validate(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		record := form.Record(s.nextID())

		err := s.store.InsertCase(ctx, record)
		if err == nil {
			s.logger.Info("case created",
				zap.Int64("case_id", record.CaseID),
				zap.String("profile_id", record.ProfileID),
				zap.Int("attempt", attempt))
			return record, nil
		}
		if !database.IsUniqueViolation(err) {
			return nil, apperror.StoreWrite(op, err)
		}

		s.logger.Warn("case id collision",
			zap.Int64("case_id", record.CaseID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.maxAttempts))
		lastErr = apperror.IDCollision(op, err)
	}
	return nil, lastErr
}

// Get loads a case.
func (s *Service) Get(ctx context.Context, caseID int64) (*database.CaseRecord, error) {
	c, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, apperror.StoreRead("get case", err)
	}
	if c == nil {
		return nil, apperror.EmptyResult("get case", "case not found")
	}
	return c, nil
}

// Update applies in to the stored case through the form transitions and
// saves the service fields. The profile of a case cannot change.
func (s *Service) Update(ctx context.Context, caseID int64, in Form) (*database.CaseRecord, error) {
	const op = "update case"

	existing, err := s.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}

	form := FormFromRecord(existing)
	form.Apply(in)
	if err := form.Validate(); err != nil {
		return nil, err
	}

	record := form.Record(caseID)
	if err := s.store.UpdateCase(ctx, record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.EmptyResult(op, "case not found")
		}
		return nil, apperror.StoreWrite(op, err)
	}
	record.CreatedAt = existing.CreatedAt

	s.logger.Info("case updated", zap.Int64("case_id", caseID))
	return record, nil
}
