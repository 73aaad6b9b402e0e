package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pasetotoken "github.com/Alijeyrad/freelancehub_ledger/pkg/paseto"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/reqctx"
)

func send(t *testing.T, app *fiber.App, req *http.Request) (int, string, http.Header) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body), resp.Header
}

func TestRequestID_PreservesIncoming(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString(reqctx.RequestIDFromContext(c.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	status, body, header := send(t, app, req)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "abc-123", body)
	assert.Equal(t, "abc-123", header.Get(HeaderRequestID))

	_, body, header = send(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, body)
	assert.Equal(t, body, header.Get(HeaderRequestID))
}

func TestIdempotency_ReplaysAndExposesKey(t *testing.T) {
	calls := 0
	app := fiber.New()
	app.Post("/", Idempotency(nil, time.Minute), func(c fiber.Ctx) error {
		calls++
		return c.Status(fiber.StatusCreated).SendString(reqctx.IdempotencyKeyFromContext(c.Context()))
	})

	post := func(key string) (int, string) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		status, body, _ := send(t, app, req)
		return status, body
	}

	status, body := post("k-1")
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "k-1", body)

	status, body = post("k-1")
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "k-1", body)
	assert.Equal(t, 1, calls)

	_, body = post("")
	assert.Empty(t, body)
	assert.Equal(t, 2, calls)

	status, _ = post(strings.Repeat("x", maxIdempotencyKeyLen+1))
	assert.NotEqual(t, http.StatusCreated, status)
	assert.Equal(t, 2, calls)
}

func TestAuthRequired_TokenTypes(t *testing.T) {
	keys := pasetotoken.NewLocalKeys()
	mgr, err := pasetotoken.New(pasetotoken.Config{Mode: keys.Mode, Issuer: "identity", Audience: "ledger"}, keys)
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/user", AuthRequired(mgr, nil), func(c fiber.Ctx) error {
		id, _ := reqctx.UserIDFromContext(c.Context())
		return c.SendString(id.String())
	})
	app.Get("/agent", AuthRequired(mgr, nil, pasetotoken.TokenTypeService), func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	user, agent := uuid.New(), uuid.New()
	access, err := mgr.IssueAccess(user, nil)
	require.NoError(t, err)
	service, err := mgr.IssueService(agent, time.Hour)
	require.NoError(t, err)

	get := func(path, token string) (int, string) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		status, body, _ := send(t, app, req)
		return status, body
	}

	status, body := get("/user", access)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, user.String(), body)

	status, _ = get("/user", service)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = get("/agent", service)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = get("/agent", access)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = get("/user", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAcceptsType(t *testing.T) {
	both := []pasetotoken.TokenType{pasetotoken.TokenTypeAccess, pasetotoken.TokenTypeService}
	assert.True(t, acceptsType(both, pasetotoken.TokenTypeService))
	assert.False(t, acceptsType(both[:1], pasetotoken.TokenTypeService))
	assert.False(t, acceptsType(nil, pasetotoken.TokenTypeAccess))
}
