package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/stackmemory-backend/internal/data/repos/routes"
	"github.com/yungbote/stackmemory-backend/internal/data/repos/testutil"
	"github.com/yungbote/stackmemory-backend/internal/data/repos/users"
	"github.com/yungbote/stackmemory-backend/internal/data/stores"
	httpH "github.com/yungbote/stackmemory-backend/internal/http/handlers"
	httpMW "github.com/yungbote/stackmemory-backend/internal/http/middleware"
	"github.com/yungbote/stackmemory-backend/internal/services"
)

const testAPIKey = "openclaw-test-key"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	AuthVia string          `json:"auth_via"`
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)

	cardStore, routeStore, err := stores.New(stores.ProviderLocalPG, stores.Backends{DB: db}, log)
	require.NoError(t, err)
	editor := services.NewRouteEditor(db, log, routes.NewRouteRepo(db, log), routes.NewRouteTaskRepo(db, log), 0)
	routeService := services.NewRouteService(log, routeStore)
	authService := services.NewAuthService(log, users.NewUserRepo(db, log), "test-secret", time.Hour, testAPIKey)

	engine := NewRouter(RouterConfig{
		Log:             log,
		AuthMiddleware:  httpMW.NewAuthMiddleware(log, authService),
		HealthHandler:   httpH.NewHealthHandler(nil),
		AuthHandler:     httpH.NewAuthHandler(authService, false),
		RouteHandler:    httpH.NewRouteHandler(routeService, services.NewRouteTaskService(log, routeStore, editor)),
		CardHandler:     httpH.NewCardHandler(services.NewCardService(log, cardStore, routeStore), nil),
		OpenClawHandler: httpH.NewOpenClawHandler(routeService, editor),
	})
	return &testServer{t: t, engine: engine}
}

func (s *testServer) do(method, path string, body any, headers map[string]string) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "text/plain; charset=utf-8" {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func (s *testServer) register(email string) (token string, userID uuid.UUID) {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/auth/local/register", map[string]string{"email": email, "password": "secret123"}, nil)
	require.Equal(s.t, http.StatusCreated, code, env.Error)
	var res struct {
		Token string `json:"token"`
		User  struct {
			ID uuid.UUID `json:"id"`
		} `json:"user"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &res))
	return res.Token, res.User.ID
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

const roadmapDoc = `{
  "phases": [{"id": "phase-1", "title": "Basics", "weeks": "第1-2周", "tasks": [
    {"id": "t1", "title": "Tour of Go", "week": 1, "day": 1, "type": "学习"},
    {"id": "t2", "title": "Slices", "week": 1, "day": 2, "type": "实操"}
  ]}],
  "currentTasks": [{"id": "t1", "title": "Tour of Go", "week": 1, "day": 1, "type": "学习",
    "materials": [{"title": "A Tour of Go", "url": "https://go.dev/tour", "type": "article"}]}]
}`

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

type routeBody struct {
	ID        uuid.UUID       `json:"id"`
	Topic     string          `json:"topic"`
	IsCurrent bool            `json:"is_current"`
	Roadmap   json.RawMessage `json:"roadmap_data"`
}

func TestHealthAndAuthRequired(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	code, env := s.do(http.MethodGet, "/api/routes", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, env = s.do(http.MethodPost, "/api/auth/local/login", map[string]string{"email": "nobody@example.com", "password": "secret123"}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid_credentials", env.Code)
}

func TestRouteLifecycle(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register("learner@example.com")
	auth := bearer(token)

	code, env := s.do(http.MethodPost, "/api/routes", map[string]any{"topic": "Go", "roadmap_data": json.RawMessage(roadmapDoc)}, auth)
	require.Equal(t, http.StatusCreated, code, env.Error)
	first := decode[routeBody](t, env.Data)
	assert.True(t, first.IsCurrent)

	code, env = s.do(http.MethodPost, "/api/routes", map[string]any{"topic": "Rust", "weeks": 60}, auth)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)

	code, env = s.do(http.MethodPost, "/api/routes", map[string]any{"topic": "Rust"}, auth)
	require.Equal(t, http.StatusCreated, code)
	second := decode[routeBody](t, env.Data)
	assert.False(t, second.IsCurrent)

	code, env = s.do(http.MethodGet, "/api/routes?limit=10", nil, auth)
	require.Equal(t, http.StatusOK, code)
	list := decode[struct {
		Routes []routeBody `json:"routes"`
		Total  int         `json:"total"`
		Limit  int         `json:"limit"`
	}](t, env.Data)
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, 10, list.Limit)

	code, _ = s.do(http.MethodGet, "/api/routes?limit=abc", nil, auth)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(http.MethodGet, "/api/routes/"+first.ID.String()+"/tasks", nil, auth)
	require.Equal(t, http.StatusOK, code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	assert.Len(t, rows, 2)

	code, env = s.do(http.MethodPut, "/api/routes/"+first.ID.String()+"/tasks/t2/status", map[string]string{"status": "completed"}, auth)
	require.Equal(t, http.StatusOK, code, env.Error)
	code, env = s.do(http.MethodPut, "/api/routes/"+first.ID.String()+"/tasks/t2/status", map[string]string{"status": "done"}, auth)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(http.MethodGet, "/api/routes/current/tasks?date=not-a-date", nil, auth)
	require.Equal(t, http.StatusOK, code)
	daily := decode[struct {
		FallbackReason *string `json:"fallback_reason"`
	}](t, env.Data)
	require.NotNil(t, daily.FallbackReason)
	assert.Equal(t, "invalid", *daily.FallbackReason)

	code, env = s.do(http.MethodPut, "/api/routes/switch", map[string]string{"route_id": second.ID.String()}, auth)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decode[routeBody](t, env.Data).IsCurrent)

	code, env = s.do(http.MethodGet, "/api/routes/current", nil, auth)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, second.ID, decode[routeBody](t, env.Data).ID)

	code, env = s.do(http.MethodDelete, "/api/routes?routeId="+second.ID.String(), nil, auth)
	require.Equal(t, http.StatusOK, code)
	deleted := decode[struct {
		NextRoute *routeBody `json:"next_route"`
	}](t, env.Data)
	require.NotNil(t, deleted.NextRoute)
	assert.Equal(t, first.ID, deleted.NextRoute.ID)

	otherToken, _ := s.register("other@example.com")
	code, env = s.do(http.MethodGet, "/api/routes/"+first.ID.String(), nil, bearer(otherToken))
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
}

func TestOpenClawEditing(t *testing.T) {
	s := newTestServer(t)
	token, userID := s.register("agent-owner@example.com")

	code, env := s.do(http.MethodPost, "/api/routes", map[string]any{"topic": "Go", "roadmap_data": json.RawMessage(roadmapDoc)}, bearer(token))
	require.Equal(t, http.StatusCreated, code)
	routeID := decode[routeBody](t, env.Data).ID
	base := "/api/openclaw/routes/" + routeID.String()

	agent := map[string]string{httpMW.HeaderOpenClawKey: testAPIKey, httpMW.HeaderUserID: userID.String()}

	code, env = s.do(http.MethodGet, base, nil, map[string]string{httpMW.HeaderOpenClawKey: "wrong", httpMW.HeaderUserID: userID.String()})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = s.do(http.MethodGet, "/api/openclaw/routes?includeRoadmap=true", nil, agent)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "api_key", env.AuthVia)

	code, env = s.do(http.MethodPost, base+"/tasks", map[string]any{"id": "t3", "title": "Maps", "week": 2, "includeInCurrentTasks": true}, agent)
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, env = s.do(http.MethodPost, base+"/tasks", map[string]any{"id": "t3", "title": "Again", "week": 2}, agent)
	assert.Equal(t, http.StatusConflict, code)

	code, env = s.do(http.MethodPatch, base+"/tasks/t3", map[string]any{"title": "Maps in depth"}, agent)
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = s.do(http.MethodPost, base+"/tasks/t1/materials", map[string]any{"title": "Effective Go", "url": "https://go.dev/doc/effective_go", "type": "article"}, agent)
	require.Equal(t, http.StatusCreated, code, env.Error)
	assert.Contains(t, string(decode[routeBody](t, env.Data).Roadmap), "effective_go")

	code, env = s.do(http.MethodPost, base+"/tasks/t1/materials", map[string]any{"title": "Bad", "url": "ftp://example.com"}, agent)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(http.MethodDelete, base+"/tasks/t1/materials", map[string]any{"url": "https://go.dev/doc/effective_go"}, agent)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.NotContains(t, string(decode[routeBody](t, env.Data).Roadmap), "effective_go")

	code, env = s.do(http.MethodDelete, base+"/tasks/t3", nil, bearer(token))
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "session", env.AuthVia)

	code, env = s.do(http.MethodDelete, base+"/tasks/t3", nil, agent)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = s.do(http.MethodPatch, base, map[string]any{"topic": "Go, revisited"}, agent)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "Go, revisited", decode[routeBody](t, env.Data).Topic)
}

func TestCardEndpoints(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register("cards@example.com")
	auth := bearer(token)

	code, env := s.do(http.MethodPost, "/api/cards", map[string]any{
		"cards": []map[string]string{
			{"question": "What is a goroutine?", "answer": "A lightweight thread."},
			{"question": "What is a goroutine ?", "answer": "Duplicate."},
		},
		"tags": []string{"Go", " concurrency "},
	}, auth)
	require.Equal(t, http.StatusCreated, code, env.Error)
	var saved []struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &saved))
	require.Len(t, saved, 1)

	code, env = s.do(http.MethodGet, "/api/cards?q=goroutine", nil, auth)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, decode[struct {
		Total int `json:"total"`
	}](t, env.Data).Total)

	code, env = s.do(http.MethodGet, "/api/tags", nil, auth)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "concurrency")

	code, _ = s.do(http.MethodDelete, "/api/cards/"+saved[0].ID.String(), nil, auth)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodGet, "/api/cards/"+saved[0].ID.String(), nil, auth)
	assert.Equal(t, http.StatusNotFound, code)

}
