// Package service implements the ticket workflow: store mutations, the
// automation dispatcher and the broadcasts that follow each commit.
package service

import (
	"context"
	"time"

	"github.com/xiaot623/kanban/internal/config"
	"github.com/xiaot623/kanban/internal/docs"
	"github.com/xiaot623/kanban/internal/domain"
	store "github.com/xiaot623/kanban/internal/repository"
	"github.com/xiaot623/kanban/policy"
)

// Gateway is the subset of the agent gateway client the service uses.
type Gateway interface {
	Enabled() bool
	CacheTTL() time.Duration
	Health(ctx context.Context) domain.GatewayHealth
	ListAgents(ctx context.Context, force bool) (*domain.AgentDirectory, error)
	AssigneeOptions(ctx context.Context) []string
	ResolveAgent(ctx context.Context, assignee string) (string, error)
	SpawnSession(ctx context.Context, req domain.SpawnRequest) (*domain.SpawnResult, error)
	SendToSession(ctx context.Context, sessionKey, message string) error
}

// PickupPolicy decides whether a ticket is handed to an agent.
type PickupPolicy interface {
	Evaluate(ctx context.Context, input policy.Input) (policy.Decision, error)
}

// Broadcaster fans committed changes out to board viewers.
type Broadcaster interface {
	Publish(ctx context.Context, msg domain.BroadcastMessage)
}

type Service struct {
	store       store.Store
	gateway     Gateway
	broadcaster Broadcaster
	config      *config.Config
	docs        *docs.Finder
	dispatcher  *Dispatcher
	now         func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source used for stored timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(st store.Store, gateway Gateway, policyEngine PickupPolicy, broadcaster Broadcaster, cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.Default()
	}
	if broadcaster == nil {
		broadcaster = nopBroadcaster{}
	}
	s := &Service{
		store:       st,
		gateway:     gateway,
		broadcaster: broadcaster,
		config:      cfg,
		docs:        docs.NewFinder(cfg.WorkspaceRoot, cfg.AppRoot),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dispatcher = NewDispatcher(st, gateway, policyEngine, cfg.APIBaseURL, s.clock)
	return s
}

// Dispatcher exposes the automation dispatcher.
func (s *Service) Dispatcher() *Dispatcher {
	return s.dispatcher
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func (s *Service) publish(ctx context.Context, msg domain.BroadcastMessage) {
	s.broadcaster.Publish(ctx, msg)
}

func (s *Service) publishEvents(ctx context.Context, events ...*domain.TicketEvent) {
	for _, ev := range events {
		if ev == nil {
			continue
		}
		s.publish(ctx, domain.BroadcastMessage{Type: domain.MessageTicketEvent, TicketID: ev.TicketID, Event: ev})
	}
}

type nopBroadcaster struct{}

func (nopBroadcaster) Publish(context.Context, domain.BroadcastMessage) {}
