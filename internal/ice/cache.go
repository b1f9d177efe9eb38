package ice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/live-room-service/pkg/log"
	"golang.org/x/sync/singleflight"
)

const cacheKey = "ice"

// CachingBroker reuses fetched credentials for ttl and collapses concurrent fetches.
type CachingBroker struct {
	next  Broker
	ttl   time.Duration
	clock clock.Clock
	sf    singleflight.Group

	mu      sync.RWMutex
	servers []domain.ICEServer
	expires time.Time
}

func NewCachingBroker(next Broker, ttl time.Duration, clk clock.Clock) *CachingBroker {
	return &CachingBroker{next: next, ttl: ttl, clock: clk}
}

func (b *CachingBroker) ICEServers(ctx context.Context) ([]domain.ICEServer, error) {
	if servers, ok := b.cached(); ok {
		return servers, nil
	}

	// Use singleflight to prevent duplicate upstream calls
	result, err, _ := b.sf.Do(cacheKey, func() (interface{}, error) {
		if servers, ok := b.cached(); ok {
			return servers, nil
		}
		servers, err := b.next.ICEServers(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if b.ttl > 0 {
			b.mu.Lock()
			b.servers = servers
			b.expires = b.clock.Now().Add(b.ttl)
			b.mu.Unlock()
		}
		return servers, nil
	})
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Msg("ice credential fetch failed")
		return nil, err
	}

	servers, ok := result.([]domain.ICEServer)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	return copyServers(servers), nil
}

func (b *CachingBroker) cached() ([]domain.ICEServer, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.servers == nil || !b.clock.Now().Before(b.expires) {
		return nil, false
	}
	return copyServers(b.servers), true
}
