package routes

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	rbac "github.com/bohemiyan/supportdesk"
	"github.com/bohemiyan/supportdesk/internal/auth"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	app   *fiber.App
	db    *gorm.DB
	svc   *rbac.Service
	authn *auth.Authenticator
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(rbac.Models()...))
	return db
}

func newTestEnv(t *testing.T, health func(context.Context) error) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	reg := prometheus.NewRegistry()
	svc, err := rbac.New(rbac.Config{DB: db, Registerer: reg})
	require.NoError(t, err)
	require.NoError(t, svc.SeedDefaults(context.Background()))

	authn, err := auth.NewAuthenticator(testSecret)
	require.NoError(t, err)

	app := NewApp(nil, false)
	Setup(app, Deps{
		Service:  svc,
		Guard:    rbac.NewGuard(svc, rbac.GuardOptions{MaxConcurrentChecks: 4, Metrics: svc.Metrics()}),
		Auth:     authn,
		DB:       db,
		Gatherer: reg,
		Health:   health,
	})
	return &testEnv{app: app, db: db, svc: svc, authn: authn}
}

// user creates a profile holding role, or no role when role is empty.
func (e *testEnv) user(t *testing.T, role rbac.Role) string {
	t.Helper()

	id := uuid.NewString()
	require.NoError(t, e.db.Create(&rbac.Profile{ID: id, FullName: "user " + id[:8]}).Error)
	if role != "" {
		in := rbac.AssignRoleInput{UserID: id, Role: role, PerformedBy: "system"}
		require.NoError(t, e.svc.AssignRole(context.Background(), in))
	}
	return id
}

func (e *testEnv) do(t *testing.T, method, path, actorID string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if actorID != "" {
		token, err := e.authn.GenerateToken(actorID, time.Hour)
		require.NoError(t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)
	status, _ := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)

	down := newTestEnv(t, func(context.Context) error { return errors.New("db down") })
	status, _ = down.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t, nil)

	status, body := env.do(t, http.MethodGet, "/api/v1/me/assignable-roles", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, string(body), "Unauthorized")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/assignable-roles", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer not-a-token")
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRoleRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.user(t, rbac.RoleAdmin)
	customer := env.user(t, rbac.RoleCustomer)
	target := env.user(t, rbac.RoleCustomer)
	newcomer := env.user(t, "")

	status, body := env.do(t, http.MethodPut, "/api/v1/users/"+target+"/role", admin, roleRequest{Role: "agent"})
	require.Equal(t, http.StatusOK, status, string(body))
	var got roleResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, rbac.RoleAgent, got.Role)

	status, _ = env.do(t, http.MethodPut, "/api/v1/users/"+target+"/role", admin, roleRequest{Role: "admin"})
	assert.Equal(t, http.StatusForbidden, status, "admins cannot hand out their own rank")

	status, _ = env.do(t, http.MethodPut, "/api/v1/users/"+target+"/role", admin, roleRequest{Role: "wizard"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPut, "/api/v1/users/"+target+"/role", customer, roleRequest{Role: "agent"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/users/"+customer+"/role", customer, nil)
	assert.Equal(t, http.StatusOK, status, "users read their own role")
	status, _ = env.do(t, http.MethodGet, "/api/v1/users/"+target+"/role", customer, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = env.do(t, http.MethodGet, "/api/v1/users/"+newcomer+"/role", admin, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = env.do(t, http.MethodGet, "/api/v1/users/"+target+"/role/audit", admin, nil)
	require.Equal(t, http.StatusOK, status)
	var entries []rbac.AuditEntry
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, rbac.AuditUpdate, entries[0].Action)
	assert.Equal(t, admin, entries[0].PerformedBy)

	status, _ = env.do(t, http.MethodDelete, "/api/v1/users/"+target+"/role", admin, nil)
	assert.Equal(t, http.StatusNoContent, status)
	_, ok, err := env.svc.GetUserRole(context.Background(), target)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSelfServiceRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	lead := env.user(t, rbac.RoleTeamLead)
	newcomer := env.user(t, "")

	status, body := env.do(t, http.MethodGet, "/api/v1/me/assignable-roles", lead, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"roles":["customer","agent"]}`, string(body))

	status, body = env.do(t, http.MethodPost, "/api/v1/me/role", newcomer, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"role":"customer"`)

	status, body = env.do(t, http.MethodGet, "/api/v1/me/permissions", newcomer, nil)
	require.Equal(t, http.StatusOK, status)
	var results []rbac.CheckResult
	require.NoError(t, json.Unmarshal(body, &results))
	require.Len(t, results, len(rbac.Catalogue()))
	allowed := map[string]bool{}
	for _, r := range results {
		allowed[r.Permission] = r.Allowed
	}
	assert.True(t, allowed[rbac.PermViewKB])
	assert.False(t, allowed[rbac.PermManageRoles])
}

func TestRolePermissionRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.user(t, rbac.RoleAdmin)
	super := env.user(t, rbac.RoleSuperAdmin)
	agent := env.user(t, rbac.RoleAgent)

	status, body := env.do(t, http.MethodGet, "/api/v1/roles/customer/permissions", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), rbac.PermViewKB)

	status, _ = env.do(t, http.MethodGet, "/api/v1/roles/wizard/permissions", admin, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	path := "/api/v1/roles/agent/permissions/" + rbac.PermViewReports
	status, _ = env.do(t, http.MethodPut, path, admin, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodPut, path, super, nil)
	require.Equal(t, http.StatusNoContent, status)
	allowed, err := env.svc.CheckPermission(context.Background(), agent, rbac.PermViewReports)
	require.NoError(t, err)
	assert.True(t, allowed)

	status, _ = env.do(t, http.MethodDelete, path, super, nil)
	require.Equal(t, http.StatusNoContent, status)
	allowed, err = env.svc.CheckPermission(context.Background(), agent, rbac.PermViewReports)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestTeamRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.user(t, rbac.RoleAdmin)
	agent := env.user(t, rbac.RoleAgent)
	customer := env.user(t, rbac.RoleCustomer)
	teamID := uuid.NewString()
	require.NoError(t, env.db.Create(&rbac.Team{ID: teamID, Name: "Billing"}).Error)

	status, _ := env.do(t, http.MethodPost, "/api/v1/teams/"+teamID+"/lead", agent, memberRequest{UserID: agent})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := env.do(t, http.MethodPost, "/api/v1/teams/"+teamID+"/members", admin, memberRequest{UserID: customer})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "Customers cannot be team members")

	status, _ = env.do(t, http.MethodPost, "/api/v1/teams/"+teamID+"/lead", admin, memberRequest{UserID: agent})
	require.Equal(t, http.StatusNoContent, status)
	role, _, err := env.svc.GetUserRole(context.Background(), agent)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleTeamLead, role)

	status, _ = env.do(t, http.MethodPost, "/api/v1/teams/"+uuid.NewString()+"/members", admin, memberRequest{UserID: agent})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTicketRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	creator := env.user(t, rbac.RoleCustomer)
	other := env.user(t, rbac.RoleCustomer)
	admin := env.user(t, rbac.RoleAdmin)

	status, body := env.do(t, http.MethodPost, "/api/v1/tickets", creator, map[string]any{
		"title":       "Cannot log in",
		"description": "Password reset mail never arrives",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	var ticket rbac.Ticket
	require.NoError(t, json.Unmarshal(body, &ticket))
	assert.Equal(t, creator, ticket.CreatedBy)
	assert.Equal(t, "open", ticket.Status)
	path := "/api/v1/tickets/" + ticket.ID

	status, _ = env.do(t, http.MethodPost, "/api/v1/tickets", creator, map[string]any{"title": " "})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodGet, path, creator, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodGet, path, other, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = env.do(t, http.MethodGet, "/api/v1/tickets/"+uuid.NewString(), creator, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodPatch, path, creator, map[string]any{"status": "closed"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = env.do(t, http.MethodPatch, path, admin, map[string]any{"status": "resolved", "assignee_id": other})
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &ticket))
	assert.Equal(t, "resolved", ticket.Status)

	status, _ = env.do(t, http.MethodGet, path, other, nil)
	assert.Equal(t, http.StatusOK, status, "the assignee can read the ticket")
	status, _ = env.do(t, http.MethodPatch, path, other, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestKnowledgeBaseRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	author := env.user(t, rbac.RoleAgent)
	peer := env.user(t, rbac.RoleAgent)
	admin := env.user(t, rbac.RoleAdmin)
	lead := env.user(t, rbac.RoleTeamLead)
	customer := env.user(t, rbac.RoleCustomer)

	status, body := env.do(t, http.MethodPost, "/api/v1/kb/articles", author, map[string]any{
		"title": "Resetting your password",
		"body":  "Use the link on the sign-in page.",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	var article rbac.KBArticle
	require.NoError(t, json.Unmarshal(body, &article))
	path := "/api/v1/kb/articles/" + article.ID

	status, _ = env.do(t, http.MethodPost, "/api/v1/kb/articles", customer, map[string]any{"title": "Spam"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodGet, path, customer, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodPatch, path, peer, map[string]any{"title": "Mine now"})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = env.do(t, http.MethodPatch, path, author, map[string]any{"title": "Resetting a password"})
	assert.Equal(t, http.StatusOK, status)
	status, body = env.do(t, http.MethodPatch, path, admin, map[string]any{"body": "Ask support."})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "Ask support.")
	status, _ = env.do(t, http.MethodPatch, "/api/v1/kb/articles/"+uuid.NewString(), admin, map[string]any{"body": "x"})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = env.do(t, http.MethodPost, "/api/v1/kb/categories", customer, categoryRequest{Name: "Billing"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.JSONEq(t, `{"error":"Forbidden"}`, string(body))
	status, _ = env.do(t, http.MethodPost, "/api/v1/kb/categories", lead, categoryRequest{Name: "Billing"})
	assert.Equal(t, http.StatusCreated, status)
	status, _ = env.do(t, http.MethodPost, "/api/v1/kb/categories", lead, categoryRequest{Name: "Billing"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	customer := env.user(t, rbac.RoleCustomer)

	status, _ := env.do(t, http.MethodPost, "/api/v1/kb/categories", customer, categoryRequest{Name: "Billing"})
	require.Equal(t, http.StatusForbidden, status)

	status, body := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `supportdesk_authz_decisions_total{check="single",outcome="denied"}`)
	assert.Contains(t, string(body), "supportdesk_authz_role_changes_total")
}
