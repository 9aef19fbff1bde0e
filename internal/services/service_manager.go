package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/prepdesk/exam-service/internal/events"
	"github.com/prepdesk/exam-service/internal/repositories"
	"github.com/prepdesk/exam-service/internal/scheduler"
	"github.com/prepdesk/exam-service/internal/utils"
	"github.com/prepdesk/exam-service/internal/validator"
)

// ServiceManager wires every domain service behind one lifecycle.
type ServiceManager interface {
	Exam() ExamService
	Booking() BookingService
	Attempt() AttemptService
	Grading() GradingService
	BandMap() BandMapService
	Seed() SeedService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceManagerConfig carries the shared dependencies of all services.
type ServiceManagerConfig struct {
	Repository   repositories.Repository
	Validator    *validator.Validator
	Business     *validator.BusinessValidator
	Publisher    events.EventPublisher
	Debouncer    *scheduler.Debouncer
	RedisClient  *redis.Client
	AutosaveKey  string
	Logger       utils.Logger
}

type serviceManager struct {
	config ServiceManagerConfig

	examService    ExamService
	bookingService BookingService
	attemptService AttemptService
	gradingService GradingService
	bandMapService BandMapService
	seedService    SeedService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

func NewServiceManager(config ServiceManagerConfig) ServiceManager {
	return &serviceManager{config: config}
}

func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if sm.config.Repository == nil {
		return fmt.Errorf("service manager requires a repository")
	}
	if sm.config.Validator == nil {
		sm.config.Validator = validator.New()
	}
	if sm.config.Business == nil {
		sm.config.Business = validator.NewBusinessValidator()
	}
	if sm.config.Logger == nil {
		sm.config.Logger = utils.NewDefaultLogger("info")
	}
	if sm.config.Debouncer == nil {
		return fmt.Errorf("service manager requires a debouncer")
	}

	c := sm.config
	sm.examService = NewExamService(c.Repository, c.Validator, c.Business, c.Logger)
	sm.bookingService = NewBookingService(c.Repository, c.Validator, c.Business, c.Publisher, c.Logger)
	sm.attemptService = NewAttemptService(c.Repository, c.Validator, c.Business, c.Publisher, c.Debouncer, c.RedisClient, c.AutosaveKey, c.Logger)
	sm.gradingService = NewGradingService(c.Repository, c.Validator, c.Business, c.Publisher, c.Logger)
	sm.bandMapService = NewBandMapService(c.Repository, c.Logger)
	sm.seedService = NewSeedService(c.Repository, c.Logger)

	sm.initialized = true
	c.Logger.Info("service manager initialized")
	return nil
}

// ===== GETTERS =====

func (sm *serviceManager) Exam() ExamService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.examService
}

func (sm *serviceManager) Booking() BookingService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.bookingService
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.attemptService
}

func (sm *serviceManager) Grading() GradingService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.gradingService
}

func (sm *serviceManager) BandMap() BandMapService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.bandMapService
}

func (sm *serviceManager) Seed() SeedService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.seedService
}

// ===== LIFECYCLE =====

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}
	return sm.config.Repository.Ping(ctx)
}

// Shutdown flushes pending autosaves and closes the event publisher.
func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}
	sm.shutdown = true

	sm.config.Debouncer.Shutdown()
	if sm.config.Publisher != nil {
		if err := sm.config.Publisher.Close(); err != nil {
			return fmt.Errorf("failed to close event publisher: %w", err)
		}
	}

	sm.config.Logger.Info("service manager shut down")
	return nil
}
