package gateway

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/xiaot623/kanban/internal/domain"
	"golang.org/x/sync/singleflight"
)

type agentSnapshot struct {
	agents    []domain.Agent
	fetchedAt time.Time
	expiresAt time.Time
}

// agentCache holds the last agent directory. Concurrent refreshes collapse
// into one gateway call, and a failed refresh serves the previous snapshot as stale.
type agentCache struct {
	ttl   time.Duration
	now   func() time.Time
	snap  atomic.Pointer[agentSnapshot]
	group singleflight.Group
}

func newAgentCache(ttl time.Duration, now func() time.Time) *agentCache {
	return &agentCache{ttl: ttl, now: now}
}

func (c *agentCache) get(ctx context.Context, force bool, fetch func(context.Context) ([]domain.Agent, error)) (*domain.AgentDirectory, error) {
	if snap := c.snap.Load(); !force && c.fresh(snap) {
		return snap.directory(true, false), nil
	}

	v, err, _ := c.group.Do("agents", func() (interface{}, error) {
		if snap := c.snap.Load(); !force && c.fresh(snap) {
			return snap.directory(true, false), nil
		}

		// The shared fetch must outlive any single caller's cancellation.
		agents, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			if prev := c.snap.Load(); prev != nil {
				return prev.directory(true, true), nil
			}
			return nil, err
		}

		fetchedAt := c.now()
		next := &agentSnapshot{agents: agents, fetchedAt: fetchedAt, expiresAt: fetchedAt.Add(c.ttl)}
		c.snap.Store(next)
		return next.directory(false, false), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.AgentDirectory), nil
}

func (c *agentCache) fresh(snap *agentSnapshot) bool {
	return snap != nil && c.now().Before(snap.expiresAt)
}

func (s *agentSnapshot) directory(cached, stale bool) *domain.AgentDirectory {
	agents := make([]domain.Agent, len(s.agents))
	copy(agents, s.agents)
	return &domain.AgentDirectory{
		Agents:    agents,
		FetchedAt: s.fetchedAt,
		ExpiresAt: s.expiresAt,
		Cached:    cached,
		Stale:     stale,
	}
}
