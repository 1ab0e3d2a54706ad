package telegram

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/coocood/freecache"
	"github.com/gotd/td/tg"
)

// peerCacheBytes is 10 MiB, a tenth of the teacher's 100 MiB cache
// sizing in internal/cache/cache.go; resolved channel peers are tiny, so
// this comfortably holds every monitored channel's entry.
const peerCacheBytes = 10 * 1024 * 1024

// peerCacheTTLSeconds matches the short-TTL rationale in the teacher's
// FileFromMessageAndChannel: access hashes can rotate, so entries are
// kept only long enough to avoid re-resolving on every message burst.
const peerCacheTTLSeconds = 240

// PeerCache caches resolved tg.InputPeerChannel values keyed by
// channel ID, the same freecache-backed pattern as the teacher's
// internal/cache.Cache, generalized from file metadata to peer
// resolution.
type PeerCache struct {
	cache *freecache.Cache
	mu    sync.Mutex
}

func init() {
	gob.Register(tg.InputPeerChannel{})
}

// NewPeerCache allocates a PeerCache.
func NewPeerCache() *PeerCache {
	return &PeerCache{cache: freecache.NewCache(peerCacheBytes)}
}

// Get returns the cached peer for channelID, if present and unexpired.
func (c *PeerCache) Get(channelID int64) (tg.InputPeerChannel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(channelID)
	data, err := c.cache.Get(key)
	if err != nil {
		return tg.InputPeerChannel{}, false
	}
	var peer tg.InputPeerChannel
	if decErr := gob.NewDecoder(bytes.NewReader(data)).Decode(&peer); decErr != nil {
		return tg.InputPeerChannel{}, false
	}
	return peer, true
}

// Set caches peer under channelID for peerCacheTTLSeconds.
func (c *PeerCache) Set(channelID int64, peer tg.InputPeerChannel) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(peer); err != nil {
		return fmt.Errorf("telegram: encode cached peer: %w", err)
	}
	return c.cache.Set(cacheKey(channelID), buf.Bytes(), peerCacheTTLSeconds)
}

func cacheKey(channelID int64) []byte {
	return []byte(fmt.Sprintf("peer:%d", channelID))
}
