package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const cooldownIdleTTL = 10 * time.Minute

type cooldownEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Cooldown limits each operator to one probe per interval. Operators are
// identified by their token subject, falling back to the client address.
type Cooldown struct {
	interval time.Duration
	mu       sync.Mutex
	entries  map[string]*cooldownEntry
	now      func() time.Time
}

func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{
		interval: interval,
		entries:  make(map[string]*cooldownEntry),
		now:      time.Now,
	}
}

func (cd *Cooldown) allow(key string) (bool, time.Duration) {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	now := cd.now()
	for k, e := range cd.entries {
		if now.Sub(e.lastSeen) > cooldownIdleTTL {
			delete(cd.entries, k)
		}
	}

	e, ok := cd.entries[key]
	if !ok {
		e = &cooldownEntry{limiter: rate.NewLimiter(rate.Every(cd.interval), 1)}
		cd.entries[key] = e
	}
	e.lastSeen = now

	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (cd *Cooldown) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if cd == nil || cd.interval <= 0 {
			c.Next()
			return
		}

		key := c.GetString(OperatorKey)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		ok, wait := cd.allow(key)
		if !ok {
			seconds := int(wait.Round(time.Second) / time.Second)
			c.Header("Retry-After", strconv.Itoa(max(seconds, 1)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "cooling down, try again later"})
			return
		}
		c.Next()
	}
}
