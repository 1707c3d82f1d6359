package audit

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/carebook-server/internal/logger"
	"github.com/dtroode/carebook-server/internal/model"
)

const archiveContentType = "application/x-ndjson"

// Archiver moves audit entries older than the retention window to object storage.
type Archiver struct {
	store     model.AuditStore
	storage   model.ObjectStorage
	retention time.Duration
	batchSize int
	logger    *logger.Logger
	now       func() time.Time
}

// NewArchiver creates an Archiver.
func NewArchiver(store model.AuditStore, storage model.ObjectStorage, retention time.Duration, batchSize int, logger *logger.Logger) *Archiver {
	return &Archiver{
		store:     store,
		storage:   storage,
		retention: retention,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// Archive uploads expired entries batch by batch as newline-delimited JSON and deletes
// each batch once its upload succeeded. An object key names exactly the entries of its
// batch, so a batch whose delete failed is not uploaded twice, and a later batch that
// grew past it gets a key of its own. It stops early when ctx is cancelled.
func (a *Archiver) Archive(ctx context.Context) error {
	cutoff := a.now().Add(-a.retention).UTC()
	total := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		entries, err := a.store.ListBefore(ctx, cutoff, a.batchSize)
		if err != nil {
			return fmt.Errorf("list audit entries: %w", err)
		}
		if len(entries) == 0 {
			break
		}

		if err := a.archiveBatch(ctx, entries); err != nil {
			return err
		}
		total += len(entries)

		if len(entries) < a.batchSize {
			break
		}
	}

	if total > 0 {
		a.logger.Info("Audit archiver: archived audit entries",
			"count", total,
			"cutoff", cutoff)
	}

	return nil
}

func (a *Archiver) archiveBatch(ctx context.Context, entries []model.AuditEntry) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encode audit entry %s: %w", e.ID, err)
		}
		ids = append(ids, e.ID)
	}

	key := objectKey(entries[0].OccurredAt, ids)
	exists, err := a.storage.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check audit archive %s: %w", key, err)
	}
	if exists {
		// Uploaded by an earlier run whose delete did not complete.
		a.logger.Warn("Audit archiver: archive already present, deleting entries only", "key", key)
	} else if err := a.storage.Upload(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), archiveContentType); err != nil {
		return fmt.Errorf("upload audit archive %s: %w", key, err)
	}

	if err := a.store.DeleteByIDs(ctx, ids); err != nil {
		return fmt.Errorf("delete archived audit entries: %w", err)
	}

	return nil
}

// objectKey is audit/YYYY/MM/DD/<first id>-<count>-<digest of all ids>.ndjson.
func objectKey(first time.Time, ids []uuid.UUID) string {
	h := sha256.New()
	for _, id := range ids {
		h.Write(id[:])
	}
	digest := hex.EncodeToString(h.Sum(nil))[:16]
	return fmt.Sprintf("audit/%s/%s-%d-%s.ndjson", first.UTC().Format("2006/01/02"), ids[0], len(ids), digest)
}
