package telegram

import (
	"context"
	"fmt"

	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// Document is the subset of a Telegram document attachment ingest
// needs: enough to build a models.TelegramDocument and to resolve a
// download location later.
type Document struct {
	DocID     int64
	Location  tg.InputFileLocationClass
	Filename  string
	MimeType  string
	SizeBytes int64
}

// DocumentFromMedia extracts a Document from message media, following
// the teacher's FileFromMedia switch over tg.MessageMediaClass. Only
// MessageMediaDocument carries the non-zero-size, typed-MIME documents
// ingest cares about; other media kinds return an error so the caller
// can skip the message.
func DocumentFromMedia(media tg.MessageMediaClass) (*Document, error) {
	md, ok := media.(*tg.MessageMediaDocument)
	if !ok {
		return nil, fmt.Errorf("telegram: media is not a document: %T", media)
	}
	doc, ok := md.Document.AsNotEmpty()
	if !ok {
		return nil, fmt.Errorf("telegram: empty document")
	}

	var filename string
	for _, attr := range doc.Attributes {
		if name, ok := attr.(*tg.DocumentAttributeFilename); ok {
			filename = name.FileName
			break
		}
	}
	if filename == "" || doc.Size == 0 || doc.MimeType == "" {
		return nil, fmt.Errorf("telegram: document missing filename, size, or mime type")
	}

	return &Document{
		DocID:     doc.ID,
		Location:  doc.AsInputDocumentFileLocation(),
		Filename:  filename,
		MimeType:  doc.MimeType,
		SizeBytes: doc.Size,
	}, nil
}

// ResolveDocument re-fetches messageID from chatID and extracts its
// document, following the teacher's FileFromMessageAndChannel shape:
// resolve the channel peer (cached), call channels.getMessages, then
// DocumentFromMedia on the result. A file location is only valid for as
// long as the message stays resolvable, so a stage that only has
// chat_id/message_id (as delivered over the broker) must re-resolve it
// here rather than carrying a location on the wire.
func (c *Client) ResolveDocument(ctx context.Context, cache *PeerCache, chatID int64, messageID int) (*Document, error) {
	channel, err := c.resolveChannel(ctx, cache, chatID)
	if err != nil {
		return nil, fmt.Errorf("telegram: resolve channel %d: %w", chatID, err)
	}

	res, err := c.API().ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
		Channel: channel,
		ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: messageID}},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: get message %d in channel %d: %w", messageID, chatID, err)
	}

	messages, ok := res.(*tg.MessagesChannelMessages)
	if !ok || len(messages.Messages) == 0 {
		return nil, fmt.Errorf("telegram: message %d not found in channel %d", messageID, chatID)
	}
	msg, ok := messages.Messages[0].(*tg.Message)
	if !ok {
		return nil, fmt.Errorf("telegram: message %d was deleted or is inaccessible", messageID)
	}

	return DocumentFromMedia(msg.Media)
}

// resolveChannel returns an InputChannel carrying chatID's access hash,
// consulting cache first and falling back to channels.getChannels, the
// same cache-then-fetch shape as the teacher's GetChannelPeer.
func (c *Client) resolveChannel(ctx context.Context, cache *PeerCache, chatID int64) (*tg.InputChannel, error) {
	if peer, ok := cache.Get(chatID); ok {
		return &tg.InputChannel{ChannelID: peer.ChannelID, AccessHash: peer.AccessHash}, nil
	}

	res, err := c.API().ChannelsGetChannels(ctx, []tg.InputChannelClass{&tg.InputChannel{ChannelID: chatID}})
	if err != nil {
		return nil, err
	}
	chats := res.GetChats()
	if len(chats) == 0 {
		return nil, fmt.Errorf("channel not found")
	}
	channel, ok := chats[0].(*tg.Channel)
	if !ok {
		return nil, fmt.Errorf("unexpected chat type %T", chats[0])
	}

	peer := tg.InputPeerChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash}
	if err := cache.Set(chatID, peer); err != nil {
		c.log.Warn("failed to cache resolved channel peer", zap.Error(err), zap.Int64("chat_id", chatID))
	}
	return &tg.InputChannel{ChannelID: peer.ChannelID, AccessHash: peer.AccessHash}, nil
}
