package ledger

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vhpx/pleasebuyus-sub000/internal/store"
)

const (
	loadTimeout = 5 * time.Second

	DefaultIdleTTL = 30 * time.Minute
)

// Key returns the store key a session's cart lives under.
func Key(sessionID string) string {
	return "cart:" + sessionID
}

type entry struct {
	ledger   *Ledger
	lastUsed time.Time
}

type RegistryOption func(*Registry)

// WithIdleTTL sets how long an untouched ledger stays in memory.
func WithIdleTTL(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.idleTTL = d
		}
	}
}

// Registry hands out the single in-process Ledger of each shopper session.
// Ledgers idle for longer than the idle TTL are dropped by EvictIdle; every
// mutation is already in the store, so the next Get reloads them.
type Registry struct {
	store   store.Store
	logger  *zap.Logger
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	ledgers map[string]*entry
	sfg     singleflight.Group // concurrent first requests hydrate once
}

func NewRegistry(st store.Store, logger *zap.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		store:   st,
		logger:  logger,
		idleTTL: DefaultIdleTTL,
		now:     time.Now,
		ledgers: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the session's ledger, loading it from the store on first use.
// A store read failure is returned wrapped in ErrStoreUnavailable and nothing
// is cached, so the next call retries the read.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Ledger, error) {
	return r.get(ctx, sessionID, true)
}

// Peek is Get for read-only callers. A session with nothing stored gets an
// empty ledger that is not kept in memory.
func (r *Registry) Peek(ctx context.Context, sessionID string) (*Ledger, error) {
	return r.get(ctx, sessionID, false)
}

func (r *Registry) get(ctx context.Context, sessionID string, keepEmpty bool) (*Ledger, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	if l, ok := r.cached(sessionID); ok {
		return l, nil
	}

	v, err, _ := r.sfg.Do(sessionID, func() (interface{}, error) {
		// the shared load must not die with whichever request started it
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return Load(loadCtx, r.store, Key(sessionID), r.logger.With(zap.String("session_id", sessionID)))
	})
	if err != nil {
		r.logger.Warn("cart load failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	loaded := v.(*Ledger)

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.ledgers[sessionID]; ok {
		e.lastUsed = r.now()
		return e.ledger, nil
	}
	if keepEmpty || loaded.Len() > 0 {
		r.ledgers[sessionID] = &entry{ledger: loaded, lastUsed: r.now()}
	}
	return loaded, nil
}

func (r *Registry) cached(sessionID string) (*Ledger, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.ledgers[sessionID]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.ledger, true
}

// Forget drops the in-memory ledger; the next Get re-reads the store.
func (r *Registry) Forget(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ledgers, sessionID)
}

// EvictIdle drops every ledger not handed out within the idle TTL and
// returns how many were dropped.
func (r *Registry) EvictIdle() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, e := range r.ledgers {
		if e.lastUsed.Before(cutoff) {
			delete(r.ledgers, id)
			evicted++
		}
	}
	return evicted
}

// Run evicts idle ledgers until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.idleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictIdle(); n > 0 {
				r.logger.Debug("evicted idle carts", zap.Int("count", n), zap.Int("remaining", r.Len()))
			}
		}
	}
}

// Len is the number of sessions held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ledgers)
}
