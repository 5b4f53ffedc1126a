package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/dyike/CortexOffice/internal/models"
)

// QuoteCache memoizes current quotes for a short TTL so one trading day does not price
// the same symbol repeatedly.
type QuoteCache struct {
	mu      sync.RWMutex
	entries map[string]cachedQuote
	ttl     time.Duration
	now     func() time.Time
}

type cachedQuote struct {
	quote    models.Quote
	storedAt time.Time
}

func NewQuoteCache(ttl time.Duration) *QuoteCache {
	return &QuoteCache{
		entries: make(map[string]cachedQuote),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *QuoteCache) Get(symbol string) (models.Quote, bool) {
	if c == nil || c.ttl <= 0 {
		return models.Quote{}, false
	}
	key := strings.ToUpper(symbol)
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return models.Quote{}, false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return models.Quote{}, false
	}
	return e.quote, true
}

func (c *QuoteCache) Set(q models.Quote) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[strings.ToUpper(q.Symbol)] = cachedQuote{quote: q, storedAt: c.now()}
	c.mu.Unlock()
}

func (c *QuoteCache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]cachedQuote)
	c.mu.Unlock()
}

func (c *QuoteCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
