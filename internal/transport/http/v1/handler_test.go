package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/kanban/internal/adapter/gateway"
	"github.com/xiaot623/kanban/internal/config"
	"github.com/xiaot623/kanban/internal/domain"
	"github.com/xiaot623/kanban/internal/service"
	"github.com/xiaot623/kanban/policy"
	"github.com/xiaot623/kanban/tests/helpers"
)

type fixedCount int

func (n fixedCount) ConnectionCount() int { return int(n) }

func (n fixedCount) Dropped() int64 { return 0 }

func newTestHandler(t *testing.T, gw gateway.Config) (*echo.Echo, *Handler, *config.Config) {
	t.Helper()
	ctx := context.Background()

	cfg := config.Default()
	cfg.WorkspaceRoot = t.TempDir()
	cfg.AppRoot = cfg.WorkspaceRoot
	cfg.APIBaseURL = "http://kanban.test"

	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	require.NoError(t, err)

	db := helpers.NewTestSQLiteStore(t)
	svc := service.New(db, gateway.NewClient(gw), policyEngine, nil, cfg)

	e := echo.New()
	h := NewHandler(svc, fixedCount(2))
	h.RegisterRoutes(e)
	return e, h, cfg
}

func do(t *testing.T, e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	e := echo.New()
	_, h, _ := newTestHandler(t, gateway.Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "kanban-backend", body["service"])
	assert.Equal(t, ":memory:", body["db"])
	assert.EqualValues(t, 2, body["connections"])
	assert.EqualValues(t, 0, body["dropped_broadcasts"])
}

func TestTicketLifecycle(t *testing.T) {
	e, _, _ := newTestHandler(t, gateway.Config{})

	rec := do(t, e, http.MethodPost, "/api/tickets", `{"title":"Write docs","priority":"High"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[domain.Ticket](t, rec)
	assert.Equal(t, domain.StatusTodo, created.Status)
	assert.Equal(t, domain.PriorityHigh, created.Priority)

	rec = do(t, e, http.MethodPatch, "/api/tickets/1", `{"description":"all of them"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "all of them", decode[domain.Ticket](t, rec).Description)

	rec = do(t, e, http.MethodPost, "/api/tickets/1/move?status=Review&actor=alice", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[domain.MoveResult](t, rec)
	assert.True(t, moved.OK)
	assert.Equal(t, domain.StatusTodo, moved.From)
	assert.Equal(t, domain.StatusReview, moved.To)
	assert.NotNil(t, moved.Warnings)

	// A JSON body works too.
	rec = do(t, e, http.MethodPost, "/api/tickets/1/move", `{"status":"Done"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.StatusDone, decode[domain.MoveResult](t, rec).Ticket.Status)

	rec = do(t, e, http.MethodGet, "/api/tickets/1/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]domain.TicketEvent](t, rec)
	require.Len(t, events, 4)
	assert.Equal(t, domain.EventTypeTicketMoved, events[0].EventType)
	assert.Equal(t, "alice", *events[1].Actor)

	rec = do(t, e, http.MethodGet, "/api/tickets?status=Done", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Ticket](t, rec), 1)

	rec = do(t, e, http.MethodPost, "/api/tickets/1/archive", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, decode[domain.Ticket](t, rec).ArchivedAt)

	rec = do(t, e, http.MethodPost, "/api/tickets/1/archive", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, e, http.MethodGet, "/api/tickets?archived=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Ticket](t, rec), 1)
}

func TestMoveTicketErrors(t *testing.T) {
	e, _, _ := newTestHandler(t, gateway.Config{})
	require.Equal(t, http.StatusOK, do(t, e, http.MethodPost, "/api/tickets", `{"title":"t"}`).Code)
	require.Equal(t, http.StatusOK, do(t, e, http.MethodPost, "/api/tickets/1/move?status=Done", "").Code)

	tests := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{"missing status", "/api/tickets/1/move", "", http.StatusBadRequest},
		{"unknown status", "/api/tickets/1/move?status=Blocked", "", http.StatusBadRequest},
		{"illegal transition", "/api/tickets/1/move?status=In%20Progress", "", http.StatusBadRequest},
		{"unknown ticket", "/api/tickets/42/move?status=Plan", "", http.StatusNotFound},
		{"bad id", "/api/tickets/abc/move?status=Plan", "", http.StatusBadRequest},
		{"bad body", "/api/tickets/1/move", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, e, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestMoveIntoPlanWithGatewayDisabled(t *testing.T) {
	e, _, _ := newTestHandler(t, gateway.Config{})
	require.Equal(t, http.StatusOK, do(t, e, http.MethodPost, "/api/tickets", `{"title":"t","assignee":"alice"}`).Code)

	rec := do(t, e, http.MethodPost, "/api/tickets/1/move?status=Plan", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[domain.MoveResult](t, rec)
	assert.True(t, res.OK)
	assert.False(t, res.Pickup.Attempted)
	require.Len(t, res.Warnings, 1)

	events := decode[[]domain.TicketEvent](t, do(t, e, http.MethodGet, "/api/tickets/1/events", ""))
	assert.Equal(t, domain.EventTypeSpawnFailed, events[0].EventType)
}

func TestMoveIntoPlanWithGatewayDown(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()

	e, _, _ := newTestHandler(t, gateway.Config{URL: down.URL, Token: "secret", AgentsTimeout: time.Second})
	require.Equal(t, http.StatusOK, do(t, e, http.MethodPost, "/api/tickets", `{"title":"t","assignee":"alice"}`).Code)

	rec := do(t, e, http.MethodPost, "/api/tickets/1/move?status=Plan", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[domain.MoveResult](t, rec)
	assert.True(t, res.OK)
	assert.Equal(t, domain.StatusPlan, res.Ticket.Status)
	assert.True(t, res.Pickup.Attempted)
	assert.False(t, res.Pickup.Spawned)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "gateway request failed")

	events := decode[[]domain.TicketEvent](t, do(t, e, http.MethodGet, "/api/tickets/1/events", ""))
	failed := 0
	for _, ev := range events {
		if ev.EventType == domain.EventTypeSpawnFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestComments(t *testing.T) {
	e, _, _ := newTestHandler(t, gateway.Config{})
	require.Equal(t, http.StatusOK, do(t, e, http.MethodPost, "/api/tickets", `{"title":"t"}`).Code)

	rec := do(t, e, http.MethodPost, "/api/tickets/1/comments", `{"author":"bob","content":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[domain.CommentResult](t, rec)
	assert.Equal(t, "hi", res.Content)
	assert.False(t, res.Notify.Attempted)

	rec = do(t, e, http.MethodPost, "/api/tickets/1/comments", `{"author":"bob","content":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/tickets/9/comments", `{"author":"bob","content":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, e, http.MethodGet, "/api/tickets/1/comments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.TicketComment](t, rec), 1)

	assert.Equal(t, http.StatusNotFound, do(t, e, http.MethodGet, "/api/tickets/9/comments", "").Code)
}

func TestActivity(t *testing.T) {
	e, _, _ := newTestHandler(t, gateway.Config{})
	require.Equal(t, http.StatusOK, do(t, e, http.MethodPost, "/api/tickets", `{"title":"a"}`).Code)
	require.Equal(t, http.StatusOK, do(t, e, http.MethodPost, "/api/tickets", `{"title":"b"}`).Code)

	rec := do(t, e, http.MethodGet, "/api/activity?ticket_id=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]domain.ActivityEntry](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].TicketTitle)

	for _, q := range []string{"limit=0", "limit=1001", "limit=x", "offset=-1", "ticket_id=x", "include_archived=maybe"} {
		rec := do(t, e, http.MethodGet, "/api/activity?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestTicketDocs(t *testing.T) {
	e, _, cfg := newTestHandler(t, gateway.Config{})
	require.Equal(t, http.StatusOK, do(t, e, http.MethodPost, "/api/tickets", `{"title":"Release Notes"}`).Code)

	dir := filepath.Join(cfg.WorkspaceRoot, "docs", "task-1-release-notes")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "NOTES.md"), []byte("# notes"), 0o644))

	rec := do(t, e, http.MethodGet, "/api/tickets/1/docs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, true, body["exists"])
	assert.Equal(t, "docs/task-1-release-notes", body["folderPath"])
	assert.Len(t, body["files"], 1)

	assert.Equal(t, http.StatusNotFound, do(t, e, http.MethodGet, "/api/tickets/5/docs", "").Code)
}

func TestConfigAndAgentsDisabled(t *testing.T) {
	e, _, _ := newTestHandler(t, gateway.Config{})

	rec := do(t, e, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decode[domain.BoardConfig](t, rec)
	assert.Equal(t, domain.Statuses, cfg.Statuses)
	assert.Equal(t, []string{domain.Unassigned}, cfg.Assignees)

	rec = do(t, e, http.MethodGet, "/api/agents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	agents := decode[domain.AgentsResponse](t, rec)
	assert.False(t, agents.OK)
	assert.Empty(t, agents.Agents)
	assert.Contains(t, agents.Detail, "OPENCLAW_TOKEN")

	rec = do(t, e, http.MethodGet, "/api/gateway/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.GatewayDisabled, decode[domain.GatewayHealth](t, rec).Gateway)
}

func TestAgentsFromGateway(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"details":{"agents":[{"id":"alice","configured":true},{"id":"zed","configured":false}]}}}`))
	}))
	t.Cleanup(srv.Close)

	e, _, _ := newTestHandler(t, gateway.Config{URL: srv.URL, Token: "secret"})

	rec := do(t, e, http.MethodGet, "/api/agents", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	agents := decode[domain.AgentsResponse](t, rec)
	assert.True(t, agents.OK)
	assert.Len(t, agents.Agents, 2)
	assert.Equal(t, 3600, agents.CacheTTLSeconds)
	assert.NotNil(t, agents.FetchedAt)

	rec = do(t, e, http.MethodGet, "/api/config", "")
	assert.Equal(t, []string{"alice", domain.Unassigned}, decode[domain.BoardConfig](t, rec).Assignees)

	fail.Store(true)
	rec = do(t, e, http.MethodGet, "/api/agents?force_refresh=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[domain.AgentsResponse](t, rec).Stale)
}
