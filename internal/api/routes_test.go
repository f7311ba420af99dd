package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coachhub/coachhub-api/internal/config"
	"github.com/coachhub/coachhub-api/internal/core"
	"github.com/coachhub/coachhub-api/internal/middleware"
	"github.com/coachhub/coachhub-api/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var when = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

// tokenIdentity treats the bearer token as the uid.
type tokenIdentity struct{}

func (tokenIdentity) VerifyToken(_ context.Context, token string) (*middleware.Identity, error) {
	if token == "bad" {
		return nil, core.ErrUnauthenticated
	}
	return &middleware.Identity{UID: token}, nil
}

type profileDirectory map[string]*models.Profile

func (d profileDirectory) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	p, ok := d[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return p, nil
}

func (d profileDirectory) RoleOf(ctx context.Context, id string) (models.Role, error) {
	p, err := d.GetProfile(ctx, id)
	if err != nil {
		return "", err
	}
	return p.Role, nil
}

type fakeSubscriptions struct {
	core.SubscriptionService
	renewReq core.RenewRequest
	renewErr error
	getErr   error
	scanned  bool
}

func (f *fakeSubscriptions) Plans() []models.Plan {
	return []models.Plan{{Key: "monthly", Label: "Monthly", Days: 30, Amount: 29.99}}
}

func (f *fakeSubscriptions) Renew(_ context.Context, actor core.Actor, req core.RenewRequest) (*core.RenewResult, error) {
	f.renewReq = req
	if f.renewErr != nil {
		return nil, f.renewErr
	}
	sub := &models.Subscription{ID: "s1", EmployeeID: actor.ID, Plan: req.Plan, Status: models.SubscriptionActive,
		IsActive: true, StartDate: when, PaymentDate: when, ExpirationDate: when.Add(30 * 24 * time.Hour)}
	return &core.RenewResult{
		Subscription: sub,
		Payment:      &models.Payment{ID: "p1", SubscriptionID: "s1", Renewed: true, CreatedAt: when},
	}, nil
}

func (f *fakeSubscriptions) Get(_ context.Context, _ core.Actor, employeeID string) (*core.SubscriptionView, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &core.SubscriptionView{
		Subscription:  &models.Subscription{ID: "s1", EmployeeID: employeeID, ExpirationDate: when},
		DaysRemaining: 3,
	}, nil
}

func (f *fakeSubscriptions) TriggerScan(context.Context, core.Actor) (*core.ScanResult, error) {
	f.scanned = true
	return &core.ScanResult{Scanned: 2, RemindersSent: 1, StartedAt: when, FinishedAt: when}, nil
}

type fakeChats struct {
	core.ChatService
	sendErr error
	sent    []string
}

func (f *fakeChats) SendMessage(_ context.Context, sender core.Actor, recipientID, content, msgType string) (*models.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, content)
	return &models.Message{ID: "msg_1", ChatID: "c1", SenderID: sender.ID, SenderRole: sender.Role,
		RecipientID: recipientID, Content: content, Type: msgType, CreatedAt: when}, nil
}

func (f *fakeChats) GetMessages(context.Context, core.Actor, string) ([]*models.Message, error) {
	readAt := when
	return []*models.Message{
		{ID: "m1", Content: "hi", CreatedAt: when, Read: true, ReadAt: &readAt},
		{ID: "m2", Content: "there", CreatedAt: when},
	}, nil
}

func (f *fakeChats) UnreadTotal(context.Context, core.Actor) (int, error) { return 4, nil }

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestRouter(t *testing.T, subs core.SubscriptionService, chats core.ChatService, dev bool) *gin.Engine {
	t.Helper()
	dir := profileDirectory{
		"a1":   {ID: "a1", Role: models.RoleAdmin, Email: "admin@coachhub.test"},
		"emp1": {ID: "emp1", Role: models.RoleEmployee, Email: "emp1@coachhub.test", Name: "Coach One"},
		"u1":   {ID: "u1", Role: models.RoleUser, AssignedEmployeeID: "emp1"},
	}
	appEnv := "production"
	if dev {
		appEnv = "development"
	}
	r := gin.New()
	authMW := middleware.NewAuthMiddleware(tokenIdentity{}, dir, zap.NewNop())
	SetupRoutes(r, &config.Config{AppEnv: appEnv}, zap.NewNop(), authMW, subs, chats)
	return r
}

func call(t *testing.T, r http.Handler, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func TestHealthAndPlansArePublic(t *testing.T) {
	r := newTestRouter(t, &fakeSubscriptions{}, &fakeChats{}, false)

	w, env := call(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	w, env = call(t, r, http.MethodGet, "/api/subscriptions/plans", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"key":"monthly","label":"Monthly","days":30,"amount":29.99}]`, string(env.Data))
}

func TestRenewEndpoint(t *testing.T) {
	subs := &fakeSubscriptions{}
	r := newTestRouter(t, subs, &fakeChats{}, false)

	w, env := call(t, r, http.MethodPost, "/api/subscriptions/renew", "emp1",
		gin.H{"employeeId": "emp1", "plan": "monthly"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, core.RenewRequest{EmployeeID: "emp1", Plan: "monthly"}, subs.renewReq)

	var data RenewResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "2025-07-15T10:00:00Z", data.Subscription.ExpirationDate)
	assert.Equal(t, "2025-06-15T10:00:00Z", data.Subscription.StartDate)
	assert.True(t, data.Payment.Renewed)
}

func TestRenewEndpointErrors(t *testing.T) {
	cases := []struct {
		name   string
		token  string
		body   interface{}
		err    error
		status int
	}{
		{"no token", "", gin.H{"plan": "monthly"}, nil, http.StatusUnauthorized},
		{"user role", "u1", gin.H{"plan": "monthly"}, nil, http.StatusForbidden},
		{"missing plan", "emp1", gin.H{"employeeId": "emp1"}, nil, http.StatusBadRequest},
		{"bad email", "emp1", gin.H{"employeeEmail": "nope", "plan": "monthly"}, nil, http.StatusBadRequest},
		{"unknown plan", "emp1", gin.H{"plan": "weekly"}, fmt.Errorf("%w: unknown plan %q", core.ErrValidation, "weekly"), http.StatusBadRequest},
		{"other employee", "emp1", gin.H{"employeeId": "emp2", "plan": "monthly"}, core.ErrForbidden, http.StatusForbidden},
		{"no subscription", "a1", gin.H{"employeeId": "emp9", "plan": "monthly"}, fmt.Errorf("%w: subscription", core.ErrNotFound), http.StatusNotFound},
		{"store down", "a1", gin.H{"employeeId": "emp1", "plan": "monthly"}, fmt.Errorf("%w: firestore", core.ErrDependency), http.StatusServiceUnavailable},
		{"unexpected", "a1", gin.H{"employeeId": "emp1", "plan": "monthly"}, fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(t, &fakeSubscriptions{renewErr: tc.err}, &fakeChats{}, false)
			w, env := call(t, r, http.MethodPost, "/api/subscriptions/renew", tc.token, tc.body)
			assert.Equal(t, tc.status, w.Code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Message)
			assert.Empty(t, env.Error, "raw error hidden outside development")
		})
	}
}

func TestBindingErrorMessageUsesJSONNames(t *testing.T) {
	r := newTestRouter(t, &fakeSubscriptions{}, &fakeChats{}, false)
	_, env := call(t, r, http.MethodPost, "/api/chat/send", "emp1", gin.H{"content": "hi", "type": "video"})
	assert.Contains(t, env.Message, "recipientId is required")
	assert.Contains(t, env.Message, "type must be one of: text, image, file")
}

func TestErrorDetailExposedInDevelopment(t *testing.T) {
	r := newTestRouter(t, &fakeSubscriptions{getErr: fmt.Errorf("%w: no subscription for emp1", core.ErrNotFound)}, &fakeChats{}, true)
	w, env := call(t, r, http.MethodGet, "/api/subscriptions/employee/emp1", "emp1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, env.Error, "no subscription for emp1")
}

func TestGetSubscriptionEndpoint(t *testing.T) {
	r := newTestRouter(t, &fakeSubscriptions{}, &fakeChats{}, false)
	w, env := call(t, r, http.MethodGet, "/api/subscriptions/employee/emp1", "emp1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var dto SubscriptionDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.Equal(t, "emp1", dto.EmployeeID)
	require.NotNil(t, dto.DaysRemaining)
	assert.Equal(t, 3, *dto.DaysRemaining)
}

func TestCheckExpirationsIsAdminOnly(t *testing.T) {
	subs := &fakeSubscriptions{}
	r := newTestRouter(t, subs, &fakeChats{}, false)

	w, _ := call(t, r, http.MethodPost, "/api/subscriptions/check-expirations", "emp1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, subs.scanned)

	w, env := call(t, r, http.MethodPost, "/api/subscriptions/check-expirations", "a1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, subs.scanned)
	assert.JSONEq(t, `{"scanned":2,"remindersSent":1,"expirationsSent":0,"deactivatedAccounts":0,"errors":[],
		"startedAt":"2025-06-15T10:00:00Z","finishedAt":"2025-06-15T10:00:00Z"}`, string(env.Data))
}

func TestChatEndpoints(t *testing.T) {
	chats := &fakeChats{}
	r := newTestRouter(t, &fakeSubscriptions{}, chats, false)

	w, env := call(t, r, http.MethodPost, "/api/chat/send", "emp1", gin.H{"recipientId": "u1", "content": "Great session"})
	require.Equal(t, http.StatusCreated, w.Code)
	var msg MessageDTO
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, "Great session", msg.Content)
	assert.Nil(t, msg.ReadAt)
	assert.Equal(t, "2025-06-15T10:00:00Z", msg.CreatedAt)

	w, env = call(t, r, http.MethodGet, "/api/chat/messages/c1", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []MessageDTO
	require.NoError(t, json.Unmarshal(env.Data, &msgs))
	require.Len(t, msgs, 2)
	require.NotNil(t, msgs[0].ReadAt)
	assert.Equal(t, "2025-06-15T10:00:00Z", *msgs[0].ReadAt)
	assert.Equal(t, map[string][]string{}, msgs[1].Reactions)

	w, env = call(t, r, http.MethodGet, "/api/chat/unread-count", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"unread":4}`, string(env.Data))
}

func TestSendMessageForbidden(t *testing.T) {
	r := newTestRouter(t, &fakeSubscriptions{}, &fakeChats{sendErr: core.ErrForbidden}, false)
	w, env := call(t, r, http.MethodPost, "/api/chat/send", "u1", gin.H{"recipientId": "emp1", "content": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, env.Success)
}

func TestMe(t *testing.T) {
	r := newTestRouter(t, &fakeSubscriptions{}, &fakeChats{}, false)
	w, env := call(t, r, http.MethodGet, "/api/me", "emp1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"emp1","role":"employee","email":"emp1@coachhub.test","name":"Coach One","isActive":false}`, string(env.Data))

	w, _ = call(t, r, http.MethodGet, "/api/me", "bad", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
