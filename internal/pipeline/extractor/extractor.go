// Package extractor consumes downloaded archives and publishes every
// file they unpack, recursively, within the safety limits enforced by
// internal/extract.
package extractor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastleaksdf/pipeline/internal/broker"
	"github.com/fastleaksdf/pipeline/internal/extract"
	"github.com/fastleaksdf/pipeline/internal/models"
	"github.com/fastleaksdf/pipeline/internal/storage"
	"github.com/fastleaksdf/pipeline/internal/store"
)

// Prefetch is the broker QoS for documents.downloaded on this stage:
// one archive extraction in flight per worker, per spec §4.3.
const Prefetch = 1

// Stage unpacks extractable documents and publishes their contents.
type Stage struct {
	extractor *extract.Extractor
	db        *store.Store
	br        *broker.Broker
	log       *zap.Logger
}

// New constructs an extractor Stage.
func New(ex *extract.Extractor, db *store.Store, br *broker.Broker, log *zap.Logger) *Stage {
	return &Stage{extractor: ex, db: db, br: br, log: log.Named("extractor")}
}

// Run consumes documents.downloaded until ctx is cancelled.
func (s *Stage) Run(ctx context.Context) error {
	return s.br.Consume(ctx, broker.QueueDocumentsDownloaded, Prefetch, s.handle)
}

func (s *Stage) handle(ctx context.Context, body []byte) error {
	var in models.DownloadedFile
	if err := json.Unmarshal(body, &in); err != nil {
		return fmt.Errorf("extractor: unmarshal: %w", err)
	}
	if !in.Extractable {
		return nil
	}

	outcome, err := s.extractor.ExtractRecursive(in.JobID, in.SHA256, in.StoragePath, in.Original.Filename, 0)
	if err != nil {
		// Transient I/O failure (e.g. scratch directory creation):
		// surface for redelivery.
		return fmt.Errorf("extractor: extract: %w", err)
	}

	if outcome.State == extract.StateAborted {
		s.log.Warn("archive extraction aborted, emitting partial results",
			zap.String("parent_sha256", in.SHA256),
			zap.String("reason", outcome.Reason),
			zap.Int("children_emitted", len(outcome.Children)))
	}

	for _, child := range outcome.Children {
		parentID, findErr := s.db.FindDocumentBySHA256(ctx, child.ParentSHA256)
		var parentDBID sql.NullInt64
		if findErr == nil {
			parentDBID = sql.NullInt64{Int64: parentID, Valid: true}
		}

		if _, upsertErr := s.db.UpsertDocument(ctx, store.DocumentInput{
			SHA256:      child.SHA256,
			Filename:    child.Filename,
			MimeType:    child.MimeType,
			StoragePath: child.StoragePath,
			Extractable: storage.IsExtractable(child.MimeType, child.Filename),
			ParentID:    parentDBID,
		}); upsertErr != nil {
			return fmt.Errorf("extractor: upsert document for child %s: %w", child.SHA256, upsertErr)
		}

		childBody, marshalErr := json.Marshal(child)
		if marshalErr != nil {
			return fmt.Errorf("extractor: marshal extracted file: %w", marshalErr)
		}
		if pubErr := s.br.Publish(ctx, broker.QueueFilesExtracted, childBody); pubErr != nil {
			return fmt.Errorf("extractor: publish extracted file: %w", pubErr)
		}
	}

	// Archive acknowledged regardless of Completed vs Aborted: both are
	// data-defined terminal states per spec §4.3/§7, never redelivered.
	return nil
}
