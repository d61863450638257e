package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxTitleRunes       = 200
	maxDescriptionRunes = 10000
	maxAuthorRunes      = 100
	maxContentRunes     = 10000

	DefaultActivityLimit = 250
	MaxActivityLimit     = 1000
)

// CreateTicketRequest is the body of POST /api/tickets.
type CreateTicketRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Assignee    string   `json:"assignee"`
	Priority    Priority `json:"priority"`
}

// Normalize trims and defaults the request, then validates it.
func (r *CreateTicketRequest) Normalize() error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if utf8.RuneCountInString(r.Title) > maxTitleRunes {
		return fmt.Errorf("%w: title too long", ErrValidation)
	}
	if utf8.RuneCountInString(r.Description) > maxDescriptionRunes {
		return fmt.Errorf("%w: description too long", ErrValidation)
	}
	if strings.TrimSpace(r.Assignee) == "" {
		r.Assignee = Unassigned
	}
	if r.Priority == "" {
		r.Priority = DefaultPriority
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("%w: priority must be one of %s", ErrValidation, joinPriorities())
	}
	return nil
}

// UpdateTicketRequest is the body of PATCH /api/tickets/:id. Nil fields are left untouched.
type UpdateTicketRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Assignee    *string   `json:"assignee"`
	Priority    *Priority `json:"priority"`
}

// Normalize trims and validates the provided fields.
func (r *UpdateTicketRequest) Normalize() error {
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if title == "" {
			return fmt.Errorf("%w: title cannot be empty", ErrValidation)
		}
		if utf8.RuneCountInString(title) > maxTitleRunes {
			return fmt.Errorf("%w: title too long", ErrValidation)
		}
		r.Title = &title
	}
	if r.Description != nil && utf8.RuneCountInString(*r.Description) > maxDescriptionRunes {
		return fmt.Errorf("%w: description too long", ErrValidation)
	}
	if r.Priority != nil && !r.Priority.Valid() {
		return fmt.Errorf("%w: priority must be one of %s", ErrValidation, joinPriorities())
	}
	return nil
}

// Apply copies changed fields onto t and reports what changed.
func (r *UpdateTicketRequest) Apply(t *Ticket) []FieldChange {
	var changes []FieldChange
	if r.Title != nil && *r.Title != t.Title {
		changes = append(changes, FieldChange{Field: "title", From: t.Title, To: *r.Title})
		t.Title = *r.Title
	}
	if r.Description != nil && *r.Description != t.Description {
		changes = append(changes, FieldChange{Field: "description", From: t.Description, To: *r.Description})
		t.Description = *r.Description
	}
	if r.Assignee != nil && *r.Assignee != t.Assignee {
		changes = append(changes, FieldChange{Field: "assignee", From: t.Assignee, To: *r.Assignee})
		t.Assignee = *r.Assignee
	}
	if r.Priority != nil && *r.Priority != t.Priority {
		changes = append(changes, FieldChange{Field: "priority", From: string(t.Priority), To: string(*r.Priority)})
		t.Priority = *r.Priority
	}
	return changes
}

// MoveRequest is the body (or query) of POST /api/tickets/:id/move.
type MoveRequest struct {
	Status Status `json:"status" query:"status"`
	Actor  string `json:"actor" query:"actor"`
}

// CommentRequest is the body of POST /api/tickets/:id/comments.
type CommentRequest struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

// Normalize trims and validates the comment.
func (r *CommentRequest) Normalize() error {
	r.Author = strings.TrimSpace(r.Author)
	r.Content = strings.TrimSpace(r.Content)
	if r.Author == "" {
		return fmt.Errorf("%w: author is required", ErrValidation)
	}
	if utf8.RuneCountInString(r.Author) > maxAuthorRunes {
		return fmt.Errorf("%w: author too long", ErrValidation)
	}
	if r.Content == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if utf8.RuneCountInString(r.Content) > maxContentRunes {
		return fmt.Errorf("%w: content too long", ErrValidation)
	}
	return nil
}

// TicketFilter selects tickets for listing.
type TicketFilter struct {
	Status   Status
	Assignee string
	Archived bool
}

// ActivityFilter selects events for the global activity feed.
type ActivityFilter struct {
	Limit           int
	Offset          int
	TicketID        *int64
	EventType       EventType
	IncludeArchived bool
}

// Validate checks paging bounds, defaulting a zero limit.
func (f *ActivityFilter) Validate() error {
	if f.Limit == 0 {
		f.Limit = DefaultActivityLimit
	}
	if f.Limit < 1 || f.Limit > MaxActivityLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrValidation, MaxActivityLimit)
	}
	if f.Offset < 0 {
		return fmt.Errorf("%w: offset must be >= 0", ErrValidation)
	}
	return nil
}

func joinPriorities() string {
	parts := make([]string, len(Priorities))
	for i, p := range Priorities {
		parts[i] = string(p)
	}
	return strings.Join(parts, ", ")
}
