package devserver

import (
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
)

// Sessions caches logged-in identities with a sliding TTL
type Sessions struct {
	cache *cache.Cache
	seq   atomic.Uint64
}

type sessionEntry struct {
	session model.Session
	seq     uint64
}

// NewSessions creates a session cache whose entries expire after ttl
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{cache: cache.New(ttl, 10*time.Minute)}
}

// SessionKey identifies one identity on one site
func SessionKey(siteURL string, method model.AuthMethod, identity string) string {
	return siteURL + ":" + string(method) + ":" + identity
}

// Put stores or refreshes a session
func (s *Sessions) Put(key string, session model.Session) {
	s.cache.Set(key, sessionEntry{session: session, seq: s.seq.Add(1)}, cache.DefaultExpiration)
}

// First returns the oldest live session
func (s *Sessions) First() (model.Session, bool) {
	var (
		best  sessionEntry
		found bool
	)
	for _, item := range s.cache.Items() {
		e := item.Object.(sessionEntry)
		if !found || e.seq < best.seq {
			best, found = e, true
		}
	}
	return best.session, found
}

// Count returns the number of live sessions
func (s *Sessions) Count() int {
	return s.cache.ItemCount()
}

// Clear drops every session
func (s *Sessions) Clear() {
	s.cache.Flush()
}
