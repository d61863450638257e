package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

const (
	ActionAllow = "allow"
	ActionSkip  = "skip"

	TriggerSpawn = "spawn"
	TriggerSend  = "send"
)

// Decision is the result of a pickup policy evaluation.
type Decision struct {
	Action string
	Reason string
}

// Allowed reports whether automation should proceed.
func (d Decision) Allowed() bool {
	return d.Action != ActionSkip
}

// TicketInput is the ticket view handed to the policy.
type TicketInput struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Assignee string `json:"assignee"`
	Priority string `json:"priority"`
}

// CommentInput is the comment view handed to the policy on send triggers.
type CommentInput struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

// Input is the document evaluated by the pickup policy.
type Input struct {
	Trigger string        `json:"trigger"`
	Ticket  TicketInput   `json:"ticket"`
	Comment *CommentInput `json:"comment,omitempty"`
}

// Engine is the OPA policy engine deciding whether tickets are handed to agents.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.ticket_pickup.decision"),
		rego.Module("ticket_pickup.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewEngineFromFile loads the policy from path, or DefaultPolicy when path is empty.
func NewEngineFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy %s: %w", path, err)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate runs the policy. The rule must yield {"action": ..., "reason": ...};
// an undefined result allows.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Action: ActionAllow}, nil
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}

	d := Decision{Action: ActionAllow}
	if action, ok := obj["action"].(string); ok && action != "" {
		d.Action = action
	}
	if reason, ok := obj["reason"].(string); ok {
		d.Reason = reason
	}
	if d.Action != ActionAllow && d.Action != ActionSkip {
		return Decision{}, fmt.Errorf("unknown policy action %q", d.Action)
	}
	return d, nil
}

// DefaultPolicy is the default pickup policy content.
const DefaultPolicy = `
package ticket_pickup

default decision = {"action": "allow", "reason": ""}

# Nobody to hand the ticket to.
decision = {"action": "skip", "reason": "No assignee"} {
	input.trigger == "spawn"
	unassigned
}

# The assignee's own comments are not echoed back to its session.
decision = {"action": "skip", "reason": "Comment authored by assignee"} {
	input.trigger == "send"
	lower(trim_space(input.comment.author)) == lower(trim_space(input.ticket.assignee))
}

unassigned {
	trim_space(input.ticket.assignee) == ""
}

unassigned {
	lower(trim_space(input.ticket.assignee)) == "unassigned"
}
`
