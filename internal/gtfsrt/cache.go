package gtfsrt

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	cache "github.com/patrickmn/go-cache"

	"github.com/hitoshi/mtaalerts/internal/model"
)

// responseCache は取得に成功したフィードを短時間保持する。
// キーはURLと認証情報の組で、認証情報そのものはハッシュ値として保持する。
type responseCache struct {
	c *cache.Cache
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{c: cache.New(ttl, 2*ttl)}
}

func cacheKey(url, apiKey string) string {
	return url + "#" + strconv.FormatUint(xxhash.Sum64String(apiKey), 16)
}

func (rc *responseCache) get(url, apiKey string) (model.RawFeedMessage, bool) {
	v, ok := rc.c.Get(cacheKey(url, apiKey))
	if !ok {
		return model.RawFeedMessage{}, false
	}
	msg, ok := v.(model.RawFeedMessage)
	return msg, ok
}

func (rc *responseCache) set(url, apiKey string, msg model.RawFeedMessage) {
	rc.c.Set(cacheKey(url, apiKey), msg, cache.DefaultExpiration)
}
