// Package audit records persistence changes and authentication events.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/carebook-server/internal/logger"
	"github.com/dtroode/carebook-server/internal/model"
)

// ActorResolver names the caller of the current request.
type ActorResolver interface {
	CurrentUserEmail(ctx context.Context) (string, error)
}

// Executor runs tasks off the request path.
type Executor interface {
	Submit(task func(ctx context.Context) error) error
}

// Recorder stamps changes with the acting principal and writes audit entries asynchronously.
type Recorder struct {
	store    model.AuditStore
	actors   ActorResolver
	executor Executor
	logger   *logger.Logger
	now      func() time.Time
}

// NewRecorder creates a Recorder.
func NewRecorder(store model.AuditStore, actors ActorResolver, executor Executor, logger *logger.Logger) *Recorder {
	return &Recorder{
		store:    store,
		actors:   actors,
		executor: executor,
		logger:   logger,
		now:      time.Now,
	}
}

// Actor returns the principal name of the caller, or model.SystemActor for anonymous requests.
func (r *Recorder) Actor(ctx context.Context) string {
	email, err := r.actors.CurrentUserEmail(ctx)
	if err != nil {
		return model.SystemActor
	}
	return email
}

// Record fills in the entry's ID, actor and timestamp from the calling request
// and hands the write to the executor. When the executor refuses the task the
// entry is written inline. Failures are logged, never returned: an audit write
// must not fail the request it describes.
func (r *Recorder) Record(ctx context.Context, entry model.AuditEntry) {
	entry = r.complete(ctx, entry)

	err := r.executor.Submit(func(taskCtx context.Context) error {
		if err := r.store.Create(taskCtx, entry); err != nil {
			return fmt.Errorf("write audit entry %s: %w", entry.Action, err)
		}
		return nil
	})
	if err == nil {
		return
	}

	r.logger.Warn("Audit recorder: executor refused audit entry, writing inline",
		"action", entry.Action,
		"error", err.Error())

	if err := r.store.Create(context.WithoutCancel(ctx), entry); err != nil {
		r.logger.Error("Audit recorder: failed to write audit entry",
			"action", entry.Action,
			"entity_id", entry.EntityID,
			"actor", entry.Actor,
			"error", err.Error())
	}
}

func (r *Recorder) complete(ctx context.Context, entry model.AuditEntry) model.AuditEntry {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Actor == "" {
		entry.Actor = r.Actor(ctx)
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = r.now().UTC()
	}
	return entry
}
