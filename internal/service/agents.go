package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/xiaot623/kanban/internal/domain"
)

// BoardConfig returns the lanes, priorities and assignee options the board offers.
func (s *Service) BoardConfig(ctx context.Context) domain.BoardConfig {
	assignees := []string{domain.Unassigned}
	if s.gateway != nil {
		assignees = s.gateway.AssigneeOptions(ctx)
	}
	transitions := make(map[domain.Status][]domain.Status, len(domain.Statuses))
	for _, st := range domain.Statuses {
		transitions[st] = domain.AllowedTransitions(st)
	}
	return domain.BoardConfig{
		Statuses:    domain.Statuses,
		Priorities:  domain.Priorities,
		Assignees:   assignees,
		Transitions: transitions,
	}
}

// Agents returns the gateway agent directory. A disabled gateway is reported
// in the response; an unreachable one with no cached snapshot is an error.
func (s *Service) Agents(ctx context.Context, force bool) (*domain.AgentsResponse, error) {
	resp := &domain.AgentsResponse{Agents: []domain.Agent{}}
	if s.gateway == nil {
		resp.Detail = domain.ErrGatewayDisabled.Error()
		return resp, nil
	}
	resp.CacheTTLSeconds = int(s.gateway.CacheTTL().Seconds())

	dir, err := s.gateway.ListAgents(ctx, force)
	if errors.Is(err, domain.ErrGatewayDisabled) {
		resp.Detail = err.Error()
		return resp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	resp.OK = true
	if dir.Agents != nil {
		resp.Agents = dir.Agents
	}
	resp.Cached = dir.Cached
	resp.Stale = dir.Stale
	fetched, expires := dir.FetchedAt, dir.ExpiresAt
	resp.FetchedAt = &fetched
	resp.ExpiresAt = &expires
	return resp, nil
}

// GatewayHealth probes the agent gateway.
func (s *Service) GatewayHealth(ctx context.Context) domain.GatewayHealth {
	if s.gateway == nil {
		return domain.GatewayHealth{Gateway: domain.GatewayDisabled, Detail: domain.ErrGatewayDisabled.Error()}
	}
	return s.gateway.Health(ctx)
}

// StorePath is the database the service writes to.
func (s *Service) StorePath() string {
	return s.store.Path()
}
