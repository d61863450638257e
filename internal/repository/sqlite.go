package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xiaot623/kanban/internal/domain"
)

// timeLayout keeps stored timestamps fixed-width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if needed) the database at dsn and migrates it.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	memory := dsn == ":memory:" || strings.Contains(dsn, "mode=memory")

	db, err := sql.Open("sqlite3", withPragmas(dsn, memory))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// A single connection also serializes every write transaction.
	if memory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db, path: dsn}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// withPragmas makes write transactions take the database lock up front
// (BEGIN IMMEDIATE) so read-modify-write cycles on a ticket never interleave.
func withPragmas(dsn string, memory bool) string {
	if memory || strings.Contains(dsn, "_txlock=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS tickets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			assignee TEXT NOT NULL,
			priority TEXT NOT NULL,
			agent_session_key TEXT,
			archived_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_updated_at ON tickets(updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_archived_at ON tickets(archived_at)`,
		`CREATE TABLE IF NOT EXISTS ticket_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ticket_id INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			actor TEXT,
			details TEXT NOT NULL DEFAULT '',
			payload TEXT,
			created_at TEXT NOT NULL,
			FOREIGN KEY (ticket_id) REFERENCES tickets(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ticket_events_ticket ON ticket_events(ticket_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ticket_events_created_at ON ticket_events(created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS ticket_comments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ticket_id INTEGER NOT NULL,
			author TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (ticket_id) REFERENCES tickets(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ticket_comments_ticket ON ticket_comments(ticket_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Databases created before typed payloads lack the column.
	return s.ensureColumn("ticket_events", "payload", "ALTER TABLE ticket_events ADD COLUMN payload TEXT")
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Path returns the DSN the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withTx runs fn in a write transaction, committing if it returns nil.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	// no-op once committed
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// CreateTicket inserts t and the event built from the stored ticket atomically.
func (s *SQLiteStore) CreateTicket(ctx context.Context, t *domain.Ticket, build func(*domain.Ticket) (*domain.TicketEvent, error)) (*domain.TicketEvent, error) {
	var event *domain.TicketEvent
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO tickets (title, description, status, assignee, priority, agent_session_key, archived_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.Title, t.Description, t.Status, t.Assignee, t.Priority,
			nullStringPtr(t.AgentSessionKey), nullTime(t.ArchivedAt), formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
		if t.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		if event, err = build(t); err != nil {
			return err
		}
		return insertEvent(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

const ticketColumns = `id, title, description, status, assignee, priority, agent_session_key, archived_at, created_at, updated_at`

// GetTicket retrieves a ticket by ID. A missing ticket yields nil, nil.
func (s *SQLiteStore) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	return getTicket(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getTicket(ctx context.Context, q querier, id int64) (*domain.Ticket, error) {
	row := q.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTickets returns active tickets by priority rank then recency, or
// archived tickets by archive time when filter.Archived is set.
func (s *SQLiteStore) ListTickets(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE `
	var args []interface{}

	if filter.Archived {
		query += `archived_at IS NOT NULL`
	} else {
		query += `archived_at IS NULL`
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Assignee != "" {
		query += ` AND assignee = ?`
		args = append(args, filter.Assignee)
	}

	if filter.Archived {
		query += ` ORDER BY archived_at DESC, updated_at DESC, id DESC`
	} else {
		query += ` ORDER BY CASE priority
			WHEN 'Critical' THEN 1
			WHEN 'High' THEN 2
			WHEN 'Medium' THEN 3
			WHEN 'Low' THEN 4
			ELSE 5 END, updated_at DESC, id DESC`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []domain.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

// MutateTicket loads the ticket inside a write transaction, lets fn edit it and
// writes the ticket back together with the returned event. When fn returns a
// nil event the transaction is discarded and the current ticket is returned.
func (s *SQLiteStore) MutateTicket(ctx context.Context, id int64, fn MutateFunc) (*domain.Ticket, *domain.TicketEvent, error) {
	var (
		ticket *domain.Ticket
		event  *domain.TicketEvent
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := getTicket(ctx, tx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("%w: %d", domain.ErrNotFound, id)
		}
		ticket = t

		event, err = fn(t)
		if err != nil || event == nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE tickets SET title = ?, description = ?, status = ?, assignee = ?, priority = ?,
			 agent_session_key = ?, archived_at = ?, updated_at = ? WHERE id = ?`,
			t.Title, t.Description, t.Status, t.Assignee, t.Priority,
			nullStringPtr(t.AgentSessionKey), nullTime(t.ArchivedAt), formatTime(t.UpdatedAt), t.ID)
		if err != nil {
			return fmt.Errorf("update ticket: %w", err)
		}
		event.TicketID = t.ID
		return insertEvent(ctx, tx, event)
	})
	if err != nil {
		return nil, nil, err
	}
	return ticket, event, nil
}

// CreateComment inserts c and its event. The ticket must exist; its state as
// read inside the transaction is returned.
func (s *SQLiteStore) CreateComment(ctx context.Context, c *domain.TicketComment, build func(*domain.TicketComment) (*domain.TicketEvent, error)) (*domain.Ticket, *domain.TicketEvent, error) {
	var (
		ticket *domain.Ticket
		event  *domain.TicketEvent
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := getTicket(ctx, tx, c.TicketID)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("%w: %d", domain.ErrNotFound, c.TicketID)
		}
		ticket = t

		res, err := tx.ExecContext(ctx,
			`INSERT INTO ticket_comments (ticket_id, author, content, created_at) VALUES (?, ?, ?, ?)`,
			c.TicketID, c.Author, c.Content, formatTime(c.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		if c.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		if event, err = build(c); err != nil {
			return err
		}
		return insertEvent(ctx, tx, event)
	})
	if err != nil {
		return nil, nil, err
	}
	return ticket, event, nil
}

// ListComments returns a ticket's comments oldest first.
func (s *SQLiteStore) ListComments(ctx context.Context, ticketID int64) ([]domain.TicketComment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ticket_id, author, content, created_at FROM ticket_comments
		 WHERE ticket_id = ? ORDER BY created_at ASC, id ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []domain.TicketComment{}
	for rows.Next() {
		var c domain.TicketComment
		var createdAt string
		if err := rows.Scan(&c.ID, &c.TicketID, &c.Author, &c.Content, &createdAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// CreateEvent appends a standalone event in its own transaction.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.TicketEvent) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertEvent(ctx, tx, event)
	})
}

func insertEvent(ctx context.Context, tx *sql.Tx, event *domain.TicketEvent) error {
	var payload sql.NullString
	if len(event.Payload) > 0 {
		payload = sql.NullString{String: string(event.Payload), Valid: true}
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO ticket_events (ticket_id, event_type, actor, details, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		event.TicketID, event.EventType, nullStringPtr(event.Actor), event.Details, payload, formatTime(event.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert %s event: %w", event.EventType, err)
	}
	event.ID, err = res.LastInsertId()
	return err
}

const eventColumns = `e.id, e.ticket_id, e.event_type, e.actor, e.details, e.payload, e.created_at`

// ListEvents returns a ticket's events newest first.
func (s *SQLiteStore) ListEvents(ctx context.Context, ticketID int64) ([]domain.TicketEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM ticket_events e WHERE e.ticket_id = ? ORDER BY e.created_at DESC, e.id DESC`,
		ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.TicketEvent{}
	for rows.Next() {
		var ev domain.TicketEvent
		if err := scanEvent(rows, &ev); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListActivity returns events across tickets joined with a ticket summary, newest first.
func (s *SQLiteStore) ListActivity(ctx context.Context, filter domain.ActivityFilter) ([]domain.ActivityEntry, error) {
	query := `SELECT ` + eventColumns + `, t.title, t.status, t.assignee, t.priority, t.archived_at
		FROM ticket_events e JOIN tickets t ON t.id = e.ticket_id WHERE 1 = 1`
	var args []interface{}

	if filter.TicketID != nil {
		query += ` AND e.ticket_id = ?`
		args = append(args, *filter.TicketID)
	}
	if filter.EventType != "" {
		query += ` AND e.event_type = ?`
		args = append(args, filter.EventType)
	}
	if !filter.IncludeArchived {
		query += ` AND t.archived_at IS NULL`
	}
	query += ` ORDER BY e.created_at DESC, e.id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.ActivityEntry{}
	for rows.Next() {
		var entry domain.ActivityEntry
		var archivedAt sql.NullString
		if err := scanEvent(rows, &entry.TicketEvent,
			&entry.TicketTitle, &entry.TicketStatus, &entry.TicketAssignee, &entry.TicketPriority, &archivedAt); err != nil {
			return nil, err
		}
		if entry.TicketArchivedAt, err = parseNullTime(archivedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(row scanner) (*domain.Ticket, error) {
	var t domain.Ticket
	var sessionKey, archivedAt sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Assignee, &t.Priority,
		&sessionKey, &archivedAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if sessionKey.Valid && sessionKey.String != "" {
		t.AgentSessionKey = &sessionKey.String
	}
	var err error
	if t.ArchivedAt, err = parseNullTime(archivedAt); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanEvent(row scanner, ev *domain.TicketEvent, extra ...interface{}) error {
	var actor, payload sql.NullString
	var createdAt string
	dest := append([]interface{}{&ev.ID, &ev.TicketID, &ev.EventType, &actor, &ev.Details, &payload, &createdAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	if actor.Valid {
		ev.Actor = &actor.String
	}
	if payload.Valid && payload.String != "" {
		ev.Payload = []byte(payload.String)
	}
	var err error
	ev.CreatedAt, err = parseTime(createdAt)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
