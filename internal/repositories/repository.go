package repositories

import "context"

// Repository aggregates all domain repository interfaces.
type Repository interface {
	// Exam content domain
	Exam() ExamRepository
	Question() QuestionRepository

	// Scheduling domain
	Booking() BookingRepository

	// Attempt domain
	Attempt() AttemptRepository
	AttemptSection() AttemptSectionRepository

	// Scoring domain
	BandMap() BandMapRepository

	// User domain (read-only; identity lives in Casdoor)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager manages the repository lifecycle.
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
