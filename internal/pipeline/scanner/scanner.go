// Package scanner applies IOC pattern matching to scan-eligible files
// from both documents.downloaded and files.extracted.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastleaksdf/pipeline/internal/broker"
	"github.com/fastleaksdf/pipeline/internal/models"
	"github.com/fastleaksdf/pipeline/internal/patterns"
	"github.com/fastleaksdf/pipeline/internal/storage"
)

// Prefetch is the broker QoS shared by both queues this stage
// consumes, per spec §4.4.
const Prefetch = 2

// Stage scans eligible files for IOC patterns.
type Stage struct {
	matcher *patterns.Matcher
	br      *broker.Broker
	log     *zap.Logger
}

// New constructs a scanner Stage.
func New(matcher *patterns.Matcher, br *broker.Broker, log *zap.Logger) *Stage {
	return &Stage{matcher: matcher, br: br, log: log.Named("scanner")}
}

// Run consumes both documents.downloaded and files.extracted until ctx
// is cancelled, one goroutine per queue.
func (s *Stage) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() { errCh <- s.br.Consume(ctx, broker.QueueDocumentsDownloaded, Prefetch, s.handleDownloaded) }()
	go func() { errCh <- s.br.Consume(ctx, broker.QueueFilesExtracted, Prefetch, s.handleExtracted) }()

	select {
	case <-ctx.Done():
		// Each consumer returns once its in-flight handlers finish; wait
		// for both so the caller closes the broker only after draining.
		<-errCh
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Stage) handleDownloaded(ctx context.Context, body []byte) error {
	var in models.DownloadedFile
	if err := json.Unmarshal(body, &in); err != nil {
		return fmt.Errorf("scanner: unmarshal downloaded file: %w", err)
	}
	return s.scanAndPublish(ctx, in.JobID, in.SHA256, in.StoragePath, in.MimeType, in.Original.Filename)
}

func (s *Stage) handleExtracted(ctx context.Context, body []byte) error {
	var in models.ExtractedFile
	if err := json.Unmarshal(body, &in); err != nil {
		return fmt.Errorf("scanner: unmarshal extracted file: %w", err)
	}
	return s.scanAndPublish(ctx, in.JobID, in.SHA256, in.StoragePath, in.MimeType, in.Filename)
}

func (s *Stage) scanAndPublish(ctx context.Context, jobID uuid.UUID, sha256Hex, path, mimeType, filename string) error {
	if !storage.IsScanEligible(mimeType, filename) {
		return nil
	}

	matches, err := s.matcher.ScanFile(path)
	if err != nil {
		return fmt.Errorf("scanner: scan %s: %w", path, err)
	}

	for _, m := range matches {
		wire := models.IOCMatch{
			JobID:      jobID,
			FileSHA256: sha256Hex,
			FilePath:   path,
			IOCType:    m.IOCType,
			Value:      m.Value,
			Context:    m.Context,
			LineNumber: m.LineNumber,
		}

		body, marshalErr := json.Marshal(wire)
		if marshalErr != nil {
			return fmt.Errorf("scanner: marshal ioc match: %w", marshalErr)
		}
		if pubErr := s.br.Publish(ctx, broker.QueueIOCsPending, body); pubErr != nil {
			return fmt.Errorf("scanner: publish ioc match: %w", pubErr)
		}
	}

	if len(matches) > 0 {
		s.log.Info("matches found", zap.String("sha256", sha256Hex), zap.Int("count", len(matches)))
	}
	return nil
}
