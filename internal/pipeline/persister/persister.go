// Package persister consumes IOC matches and persists them under the
// transactional dedup-then-insert protocol from spec §4.5.
package persister

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastleaksdf/pipeline/internal/broker"
	"github.com/fastleaksdf/pipeline/internal/models"
	"github.com/fastleaksdf/pipeline/internal/store"
)

// Prefetch is the broker QoS for iocs.pending, per spec §4.5.
const Prefetch = 5

// Stage persists deduplicated IOC matches.
type Stage struct {
	db  *store.Store
	br  *broker.Broker
	log *zap.Logger
}

// New constructs a persister Stage.
func New(db *store.Store, br *broker.Broker, log *zap.Logger) *Stage {
	return &Stage{db: db, br: br, log: log.Named("persister")}
}

// Run consumes iocs.pending until ctx is cancelled.
func (s *Stage) Run(ctx context.Context) error {
	return s.br.Consume(ctx, broker.QueueIOCsPending, Prefetch, s.handle)
}

func (s *Stage) handle(ctx context.Context, body []byte) error {
	var in models.IOCMatch
	if err := json.Unmarshal(body, &in); err != nil {
		return fmt.Errorf("persister: unmarshal: %w", err)
	}

	documentID, err := s.db.FindDocumentBySHA256(ctx, in.FileSHA256)
	if errors.Is(err, store.ErrDocumentNotFound) {
		// Known ordering gap: the document row may not exist yet.
		// Acknowledge without retry rather than livelock on a parent
		// that this stage is not responsible for creating.
		s.log.Warn("document not found for ioc match, acknowledging without insert",
			zap.String("file_sha256", in.FileSHA256), zap.String("ioc_type", in.IOCType))
		return nil
	}
	if err != nil {
		return fmt.Errorf("persister: find document: %w", err)
	}

	inserted, err := s.db.InsertIOCDeduped(ctx, store.IOCInput{
		DocumentID: documentID,
		IOCType:    in.IOCType,
		Value:      in.Value,
		Context:    in.Context,
		LineNumber: in.LineNumber,
	})
	if err != nil {
		return fmt.Errorf("persister: insert ioc: %w", err)
	}

	if inserted {
		s.log.Info("ioc persisted", zap.String("ioc_type", in.IOCType), zap.Int64("document_id", documentID))
	}
	return nil
}
