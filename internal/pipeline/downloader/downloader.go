// Package downloader consumes pending Telegram documents, retrieves
// their content, places it into content-addressable storage, and
// publishes proof of a successful, idempotent download.
package downloader

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fastleaksdf/pipeline/internal/broker"
	"github.com/fastleaksdf/pipeline/internal/models"
	"github.com/fastleaksdf/pipeline/internal/storage"
	"github.com/fastleaksdf/pipeline/internal/store"
	"github.com/fastleaksdf/pipeline/internal/telegram"
)

// Prefetch is the broker QoS for documents.pending: strict one-in-flight
// per worker, per spec §4.2.
const Prefetch = 1

// Stage retrieves documents and places them into content-addressable
// storage.
type Stage struct {
	client *telegram.Client
	peers  *telegram.PeerCache
	store  *storage.Store
	db     *store.Store
	br     *broker.Broker
	log    *zap.Logger
}

// New constructs a downloader Stage. peers caches resolved channel
// access hashes across the documents this worker handles, since a
// freshly delivered message only carries chat_id/message_id, never a
// ready-to-use file location.
func New(client *telegram.Client, peers *telegram.PeerCache, st *storage.Store, db *store.Store, br *broker.Broker, log *zap.Logger) *Stage {
	return &Stage{client: client, peers: peers, store: st, db: db, br: br, log: log.Named("downloader")}
}

// Run consumes documents.pending until ctx is cancelled.
func (s *Stage) Run(ctx context.Context) error {
	return s.br.Consume(ctx, broker.QueueDocumentsPending, Prefetch, s.handle)
}

func (s *Stage) handle(ctx context.Context, body []byte) error {
	var in models.TelegramDocument
	if err := json.Unmarshal(body, &in); err != nil {
		return fmt.Errorf("downloader: unmarshal: %w", err)
	}

	resolved, err := s.client.ResolveDocument(ctx, s.peers, in.ChatID, in.MessageID)
	if err != nil {
		return fmt.Errorf("downloader: resolve document: %w", err)
	}

	tmp, err := os.CreateTemp("", "fastleaksdf-download-*"+filepath.Ext(in.Filename))
	if err != nil {
		return fmt.Errorf("downloader: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	doc := &telegram.Document{
		DocID:     in.DocID,
		Location:  resolved.Location,
		Filename:  in.Filename,
		MimeType:  in.MimeType,
		SizeBytes: in.SizeBytes,
	}
	if downloadErr := s.client.Download(ctx, doc, tmp); downloadErr != nil {
		tmp.Close()
		return fmt.Errorf("downloader: download: %w", downloadErr)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("downloader: close temp file: %w", err)
	}

	sha256Hex, finalPath, err := s.store.HashAndPlace(tmpPath, in.Filename)
	if err != nil {
		return fmt.Errorf("downloader: hash and place: %w", err)
	}

	extractable := storage.IsExtractable(in.MimeType, in.Filename)

	sourceID, err := s.db.UpsertTelegramSource(ctx, in.DocID, in.ChatID, in.ChannelURL)
	if err != nil {
		return fmt.Errorf("downloader: upsert telegram source: %w", err)
	}

	if _, err := s.db.UpsertDocument(ctx, store.DocumentInput{
		SHA256:      sha256Hex,
		Filename:    in.Filename,
		MimeType:    in.MimeType,
		SizeBytes:   in.SizeBytes,
		StoragePath: finalPath,
		Extractable: extractable,
		SourceID:    sql.NullInt64{Int64: sourceID, Valid: true},
		ParentID:    sql.NullInt64{},
	}); err != nil {
		return fmt.Errorf("downloader: upsert document: %w", err)
	}

	out := models.DownloadedFile{
		JobID:       in.JobID,
		DocID:       in.DocID,
		SHA256:      sha256Hex,
		StoragePath: finalPath,
		SizeBytes:   in.SizeBytes,
		MimeType:    in.MimeType,
		Extractable: extractable,
		Original:    in,
	}

	outBody, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("downloader: marshal downloaded file: %w", err)
	}
	if err := s.br.Publish(ctx, broker.QueueDocumentsDownloaded, outBody); err != nil {
		return fmt.Errorf("downloader: publish downloaded file: %w", err)
	}

	s.log.Info("downloaded document",
		zap.String("sha256", sha256Hex),
		zap.Bool("extractable", extractable),
		zap.Int64("size_bytes", in.SizeBytes))
	return nil
}
