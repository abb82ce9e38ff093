package ports

import (
	"time"

	"warehouse-channel-sync/internal/domain"
)

// ProgressPublisher receives pipeline stage transitions. Publish must not block.
type ProgressPublisher interface {
	Publish(event domain.ProgressEvent)
}

// SyncRecorder records sync outcomes for monitoring
type SyncRecorder interface {
	PageCommitted(kind domain.EntityKind, records int)
	RunFinished(kind domain.EntityKind, status domain.SyncStatus, elapsed time.Duration)
	ConflictsDetected(count int)
}
