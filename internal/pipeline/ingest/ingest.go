// Package ingest watches configured Telegram channels and publishes
// one TelegramDocument per qualifying document attachment.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"github.com/fastleaksdf/pipeline/internal/broker"
	"github.com/fastleaksdf/pipeline/internal/models"
	"github.com/fastleaksdf/pipeline/internal/storage"
	"github.com/fastleaksdf/pipeline/internal/telegram"
)

// Stage wires a Telegram listener to a broker publisher.
type Stage struct {
	client     *telegram.Client
	br         *broker.Broker
	channelIDs map[int64]struct{}
	log        *zap.Logger
}

// New constructs an ingest Stage watching the given channel IDs.
func New(client *telegram.Client, br *broker.Broker, channelIDs []int64, log *zap.Logger) *Stage {
	ids := make(map[int64]struct{}, len(channelIDs))
	for _, id := range channelIDs {
		ids[id] = struct{}{}
	}
	return &Stage{client: client, br: br, channelIDs: ids, log: log.Named("ingest")}
}

// Register binds Stage.handleNewMessage to the client's dispatcher.
// Must be called before client.Run.
func (s *Stage) Register() {
	s.client.OnNewChannelMessage(s.handleNewMessage)
}

func (s *Stage) handleNewMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
	msg, ok := u.Message.(*tg.Message)
	if !ok || msg.Media == nil {
		return nil
	}

	channel, chatID, ok := channelFromEntities(e, msg)
	if !ok || !s.watching(chatID) {
		return nil
	}

	doc, err := telegram.DocumentFromMedia(msg.Media)
	if err != nil {
		// Not a qualifying document attachment (photo, non-document
		// media, or missing filename/size/mime): silently skip.
		return nil
	}

	wire := models.TelegramDocument{
		JobID:      uuid.New(),
		DocID:      doc.DocID,
		ChatID:     chatID,
		MessageID:  msg.ID,
		Filename:   storage.SanitizeFilename(doc.Filename),
		MimeType:   doc.MimeType,
		SizeBytes:  doc.SizeBytes,
		Timestamp:  time.Now(),
		ChannelURL: channelURL(channel),
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("ingest: marshal document: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.br.Publish(publishCtx, broker.QueueDocumentsPending, body); err != nil {
		return fmt.Errorf("ingest: publish document: %w", err)
	}

	s.log.Info("published document",
		zap.Int64("doc_id", wire.DocID),
		zap.String("filename", wire.Filename),
		zap.Int64("size_bytes", wire.SizeBytes))
	return nil
}

func (s *Stage) watching(chatID int64) bool {
	_, ok := s.channelIDs[chatID]
	return ok
}

// channelURL renders a public https://t.me/<username> link when the
// channel has a username, or the empty string for private channels.
func channelURL(channel *tg.Channel) string {
	if channel == nil || channel.Username == "" {
		return ""
	}
	return "https://t.me/" + channel.Username
}

func channelFromEntities(e tg.Entities, msg *tg.Message) (*tg.Channel, int64, bool) {
	peer, ok := msg.PeerID.(*tg.PeerChannel)
	if !ok {
		return nil, 0, false
	}
	channel, ok := e.Channels[peer.ChannelID]
	if !ok {
		return nil, peer.ChannelID, true
	}
	return channel, peer.ChannelID, true
}
