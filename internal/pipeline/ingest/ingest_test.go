package ingest

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestChannelURLUsesUsernameWhenPresent(t *testing.T) {
	assert.Equal(t, "https://t.me/leaks_channel", channelURL(&tg.Channel{Username: "leaks_channel"}))
}

func TestChannelURLEmptyForPrivateChannel(t *testing.T) {
	assert.Equal(t, "", channelURL(&tg.Channel{}))
	assert.Equal(t, "", channelURL(nil))
}

func TestStageWatchingOnlyKnownChannelIDs(t *testing.T) {
	s := New(nil, nil, []int64{100, 200}, zap.NewNop())
	assert.True(t, s.watching(100))
	assert.True(t, s.watching(200))
	assert.False(t, s.watching(300))
}

func TestChannelFromEntitiesRejectsNonChannelPeer(t *testing.T) {
	msg := &tg.Message{PeerID: &tg.PeerUser{UserID: 7}}
	_, _, ok := channelFromEntities(tg.Entities{}, msg)
	assert.False(t, ok)
}

func TestChannelFromEntitiesResolvesKnownChannel(t *testing.T) {
	msg := &tg.Message{PeerID: &tg.PeerChannel{ChannelID: 55}}
	entities := tg.Entities{Channels: map[int64]*tg.Channel{55: {ID: 55, Username: "x"}}}
	channel, chatID, ok := channelFromEntities(entities, msg)
	assert.True(t, ok)
	assert.Equal(t, int64(55), chatID)
	assert.Equal(t, "x", channel.Username)
}
