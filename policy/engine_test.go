package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	cases := []struct {
		name   string
		input  Input
		action string
		reason string
	}{
		{
			name:   "assigned spawn",
			input:  Input{Trigger: TriggerSpawn, Ticket: TicketInput{ID: 1, Assignee: "main"}},
			action: ActionAllow,
		},
		{
			name:   "unassigned spawn",
			input:  Input{Trigger: TriggerSpawn, Ticket: TicketInput{ID: 1, Assignee: "Unassigned"}},
			action: ActionSkip,
			reason: "No assignee",
		},
		{
			name:   "blank assignee spawn",
			input:  Input{Trigger: TriggerSpawn, Ticket: TicketInput{ID: 1, Assignee: "  "}},
			action: ActionSkip,
			reason: "No assignee",
		},
		{
			name: "comment by human",
			input: Input{Trigger: TriggerSend, Ticket: TicketInput{ID: 1, Assignee: "main"},
				Comment: &CommentInput{Author: "alice", Content: "please also add tests"}},
			action: ActionAllow,
		},
		{
			name: "comment by assignee",
			input: Input{Trigger: TriggerSend, Ticket: TicketInput{ID: 1, Assignee: "main"},
				Comment: &CommentInput{Author: "Main", Content: "done"}},
			action: ActionSkip,
			reason: "Comment authored by assignee",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := engine.Evaluate(ctx, tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.action, d.Action)
			assert.Equal(t, tc.reason, d.Reason)
			assert.Equal(t, tc.action == ActionAllow, d.Allowed())
		})
	}
}

func TestCustomPolicyFromFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pickup.rego")
	policy := `
package ticket_pickup

default decision = {"action": "allow"}

decision = {"action": "skip", "reason": "low priority"} {
	input.ticket.priority == "Low"
}
`
	require.NoError(t, os.WriteFile(path, []byte(policy), 0o644))

	engine, err := NewEngineFromFile(ctx, path)
	require.NoError(t, err)

	d, err := engine.Evaluate(ctx, Input{Trigger: TriggerSpawn, Ticket: TicketInput{Priority: "Low", Assignee: "main"}})
	require.NoError(t, err)
	assert.False(t, d.Allowed())
	assert.Equal(t, "low priority", d.Reason)

	d, err = engine.Evaluate(ctx, Input{Trigger: TriggerSpawn, Ticket: TicketInput{Priority: "High"}})
	require.NoError(t, err)
	assert.True(t, d.Allowed())
}

func TestPolicyErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewEngine(ctx, "package ticket_pickup\n decision = {")
	assert.Error(t, err)

	_, err = NewEngineFromFile(ctx, filepath.Join(t.TempDir(), "missing.rego"))
	assert.Error(t, err)

	engine, err := NewEngine(ctx, "package ticket_pickup\n\ndefault decision = {\"action\": \"explode\"}\n")
	require.NoError(t, err)
	_, err = engine.Evaluate(ctx, Input{Trigger: TriggerSpawn})
	assert.Error(t, err)
}

func TestEngineFromEmptyPathUsesDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngineFromFile(ctx, "")
	require.NoError(t, err)

	d, err := engine.Evaluate(ctx, Input{Trigger: TriggerSpawn, Ticket: TicketInput{ID: 1, Assignee: "Unassigned"}})
	require.NoError(t, err)
	assert.Equal(t, ActionSkip, d.Action)
	assert.Equal(t, "No assignee", d.Reason)
}
