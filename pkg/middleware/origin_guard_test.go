package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cinescope/aiguard/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuardedApp(allowedOrigins []string) (*fiber.App, *test.Hook) {
	logger, hook := test.NewNullLogger()
	app := fiber.New()
	app.Post("/api/ai-facts",
		middleware.NewOriginGuardMiddleware(logger, allowedOrigins).Middleware(),
		func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		},
	)
	return app, hook
}

func TestOriginGuard_AllowsListedOrigin(t *testing.T) {
	app, _ := newGuardedApp([]string{"https://a.com", "https://b.com"})

	req := httptest.NewRequest(http.MethodPost, "/api/ai-facts", nil)
	req.Header.Set("Origin", "https://a.com")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://a.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestOriginGuard_DeniesUnlistedOrigin(t *testing.T) {
	app, hook := newGuardedApp([]string{"https://a.com", "https://b.com"})

	req := httptest.NewRequest(http.MethodPost, "/api/ai-facts", nil)
	req.Header.Set("Origin", "https://evil.com")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) Chrome/120.0")
	req.Header.Set("X-Forwarded-For", "8.8.8.8")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Exactly one security event, carrying the rejected origin.
	var securityEntries []logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Data["event"] == "origin_rejected" {
			securityEntries = append(securityEntries, *entry)
		}
	}
	require.Len(t, securityEntries, 1)
	assert.Equal(t, "https://evil.com", securityEntries[0].Data["origin"])
	assert.Equal(t, "8.8.8.8", securityEntries[0].Data["client_ip"])
}

func TestOriginGuard_AllowsMissingOrigin(t *testing.T) {
	app, hook := newGuardedApp([]string{"https://a.com"})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/ai-facts", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, hook.AllEntries())
}

func TestOriginGuard_EmptyAllowListDeniesAnyOrigin(t *testing.T) {
	app, _ := newGuardedApp(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ai-facts", nil)
	req.Header.Set("Origin", "https://a.com")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
