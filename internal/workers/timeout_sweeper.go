package workers

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/prepdesk/exam-service/internal/repositories"
	"github.com/prepdesk/exam-service/internal/services"
	"github.com/prepdesk/exam-service/internal/utils"
)

const sweepBatchSize = 100

// TimeoutSweeper enforces section deadlines server-side: every tick it finds
// in-progress sections whose clock ran out and force-locks them through the
// attempt service, which also runs auto-scoring.
type TimeoutSweeper struct {
	repo     repositories.Repository
	attempts services.AttemptService
	interval time.Duration
	logger   utils.Logger
}

func NewTimeoutSweeper(repo repositories.Repository, attempts services.AttemptService, interval time.Duration, logger utils.Logger) *TimeoutSweeper {
	return &TimeoutSweeper{
		repo:     repo,
		attempts: attempts,
		interval: interval,
		logger:   logger,
	}
}

func (s *TimeoutSweeper) Run(ctx context.Context) {
	s.logger.Info("timeout sweeper started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("timeout sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *TimeoutSweeper) sweep(ctx context.Context) {
	expired, err := s.repo.AttemptSection().GetExpired(ctx, nil, time.Now(), sweepBatchSize)
	if err != nil {
		s.logger.Warn("expiry sweep query failed", "error", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	locked := 0
	for _, section := range expired {
		if err := s.attempts.HandleSectionExpiry(ctx, section.ID); err != nil {
			s.logger.Warn("failed to lock expired section",
				"attempt_section_id", section.ID, "error", err)
			continue
		}
		locked++
	}
	s.logger.Info("expiry sweep completed", "expired", len(expired), "locked", locked)
}

// ===== STORE ADAPTER =====

// RepositoryAnswerStore adapts the attempt-section repository to the
// AnswerStore the autosave worker consumes.
type RepositoryAnswerStore struct {
	repo repositories.Repository
}

func NewRepositoryAnswerStore(repo repositories.Repository) *RepositoryAnswerStore {
	return &RepositoryAnswerStore{repo: repo}
}

func (s *RepositoryAnswerStore) SaveAnswers(ctx context.Context, attemptSectionID uint, answers datatypes.JSON) error {
	err := s.repo.AttemptSection().SaveAnswers(ctx, nil, attemptSectionID, answers)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return services.ErrSectionFinalized
	}
	return err
}
