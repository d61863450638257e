package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xiaot623/kanban/internal/domain"
)

// parseAgents reads the agent list from result.details.agents, or from the
// first content text that decodes to an object holding "agents".
func parseAgents(result *invokeResult) []domain.Agent {
	if raw, ok := objectField(result.Details, "agents"); ok {
		return normalizeAgents(raw)
	}
	for _, item := range result.Content {
		if item.Text == "" {
			continue
		}
		if raw, ok := objectField(json.RawMessage(item.Text), "agents"); ok {
			return normalizeAgents(raw)
		}
	}
	return []domain.Agent{}
}

func objectField(raw json.RawMessage, key string) (json.RawMessage, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	v, ok := obj[key]
	return v, ok
}

func normalizeAgents(raw json.RawMessage) []domain.Agent {
	var items []interface{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return []domain.Agent{}
	}

	agents := make([]domain.Agent, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id := ""
		if v, ok := obj["id"]; ok && v != nil {
			id = strings.TrimSpace(fmt.Sprint(v))
		}
		if id == "" {
			continue
		}
		agent := domain.Agent{ID: id, Configured: true}
		if name, ok := obj["name"].(string); ok && strings.TrimSpace(name) != "" {
			n := strings.TrimSpace(name)
			agent.Name = &n
		}
		if configured, ok := obj["configured"].(bool); ok {
			agent.Configured = configured
		}
		agents = append(agents, agent)
	}

	sort.SliceStable(agents, func(i, j int) bool {
		return strings.ToLower(agents[i].ID) < strings.ToLower(agents[j].ID)
	})
	return agents
}

func assigneeOptions(agents []domain.Agent) []string {
	seen := map[string]bool{domain.Unassigned: true}
	options := []string{domain.Unassigned}
	for _, a := range agents {
		if !a.Configured || a.ID == "" || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		options = append(options, a.ID)
	}
	sort.SliceStable(options, func(i, j int) bool {
		return strings.ToLower(options[i]) < strings.ToLower(options[j])
	})
	return options
}

type spawnFields struct {
	Status          string `json:"status"`
	Error           string `json:"error"`
	ChildSessionKey string `json:"childSessionKey"`
	RunID           string `json:"runId"`
}

func (f *spawnFields) merge(other spawnFields) {
	if f.Status == "" {
		f.Status = other.Status
	}
	if f.Error == "" {
		f.Error = other.Error
	}
	if f.ChildSessionKey == "" {
		f.ChildSessionKey = other.ChildSessionKey
	}
	if f.RunID == "" {
		f.RunID = other.RunID
	}
}

func parseSpawn(result *invokeResult) (*domain.SpawnResult, error) {
	var fields spawnFields
	if len(result.Details) > 0 {
		_ = json.Unmarshal(result.Details, &fields)
	}
	if len(result.Content) > 0 && result.Content[0].Text != "" {
		var parsed spawnFields
		if err := json.Unmarshal([]byte(result.Content[0].Text), &parsed); err == nil {
			fields.merge(parsed)
		}
	}
	fields.merge(spawnFields{ChildSessionKey: result.ChildSessionKey, RunID: result.RunID})

	if fields.Status == "error" || fields.Error != "" {
		if fields.Error != "" {
			return nil, errors.New(fields.Error)
		}
		return nil, errors.New("sessions_spawn returned status=error")
	}
	if fields.ChildSessionKey == "" {
		return nil, errors.New("sessions_spawn returned no childSessionKey")
	}
	return &domain.SpawnResult{
		SessionKey: fields.ChildSessionKey,
		RunID:      fields.RunID,
		Status:     fields.Status,
	}, nil
}
