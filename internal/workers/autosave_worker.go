package workers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"

	"github.com/prepdesk/exam-service/internal/services"
	"github.com/prepdesk/exam-service/internal/utils"
)

// AnswerStore is the slice of persistence the worker needs.
type AnswerStore interface {
	SaveAnswers(ctx context.Context, attemptSectionID uint, answers datatypes.JSON) error
}

const (
	autosavePopTimeout  = 1 * time.Second
	autosaveRetryDelay  = 5 * time.Second
	autosaveMaxAttempts = 5
)

// AutosaveWorker drains the autosave retry queue: answer writes that failed
// their debounced save are parked on a Redis list and retried here until they
// land or the section closes.
type AutosaveWorker struct {
	redis    *redis.Client
	queueKey string
	store    AnswerStore
	logger   utils.Logger
}

func NewAutosaveWorker(redisClient *redis.Client, queueKey string, store AnswerStore, logger utils.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		redis:    redisClient,
		queueKey: queueKey,
		store:    store,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled, then drains what is left on the queue so
// a clean shutdown loses no writes.
func (w *AutosaveWorker) Run(ctx context.Context) {
	if w.redis == nil {
		w.logger.Warn("autosave worker disabled, no redis client")
		return
	}
	w.logger.Info("autosave worker started", "queue", w.queueKey)

	for {
		select {
		case <-ctx.Done():
			w.drain()
			w.logger.Info("autosave worker stopped")
			return
		default:
		}

		result, err := w.redis.BLPop(ctx, autosavePopTimeout, w.queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			w.logger.Warn("autosave queue read failed", "error", err)
			sleepCtx(ctx, autosaveRetryDelay)
			continue
		}
		// BLPop returns [key, value].
		if len(result) < 2 {
			continue
		}
		w.process(ctx, []byte(result[1]))
	}
}

func (w *AutosaveWorker) process(ctx context.Context, raw []byte) {
	var payload services.AutosavePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		w.logger.Warn("dropping malformed autosave payload", "error", err)
		return
	}

	err := w.store.SaveAnswers(ctx, payload.AttemptSectionID, datatypes.JSON(payload.Answers))
	if err == nil {
		return
	}
	if errors.Is(err, services.ErrSectionFinalized) {
		// Section closed in the meantime; the write is moot.
		return
	}

	payload.Attempts++
	if payload.Attempts >= autosaveMaxAttempts {
		w.logger.Error("dropping autosave after repeated failures",
			"attempt_section_id", payload.AttemptSectionID,
			"attempts", payload.Attempts,
			"error", err)
		return
	}

	requeued, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return
	}
	// The run context may already be cancelled when a shutdown interrupts a
	// payload mid-flight; the requeue must still land.
	pushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if pushErr := w.redis.RPush(pushCtx, w.queueKey, requeued).Err(); pushErr != nil {
		w.logger.Error("failed to requeue autosave",
			"attempt_section_id", payload.AttemptSectionID, "error", pushErr)
		return
	}
	w.logger.Warn("autosave retry requeued",
		"attempt_section_id", payload.AttemptSectionID,
		"attempts", payload.Attempts,
		"error", err)
	sleepCtx(ctx, autosaveRetryDelay)
}

// drain empties the queue without blocking, using a fresh context because the
// run context is already cancelled.
func (w *AutosaveWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for {
		raw, err := w.redis.LPop(ctx, w.queueKey).Bytes()
		if err != nil {
			return
		}
		w.process(ctx, raw)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
