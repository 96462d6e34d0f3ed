package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	legacystore "forestclient/internal/legacy/store"
	"forestclient/internal/platform/config"
	"forestclient/internal/processor"
	submissionstore "forestclient/internal/submission/store"
	"forestclient/pkg/testutil"
)

func TestRouter(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{Server: config.Server{JWTSigningKey: "router-test-key"}}
	deps := &dependencies{
		registry: prometheus.NewRegistry(),
		orchestrator: processor.New(processor.NewChannels(4),
			submissionstore.NewInMemoryStore(), legacystore.NewInMemoryStore(), nil,
			processor.WithLogger(log)),
	}

	testutil.Given(t, "the processor router with authentication enabled", func(t *testing.T) {
		router := newRouter(cfg, log, deps)

		testutil.When(t, "triggering without a token", func(t *testing.T) {
			rec := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/api/processor/1", nil))

			testutil.Then(t, "it is rejected", func(t *testing.T) {
				assert.Equal(t, http.StatusUnauthorized, rec.Code)
			})
		})

		testutil.When(t, "triggering with a valid token", func(t *testing.T) {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
				Subject:   "idir\\jdoe",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}).SignedString([]byte("router-test-key"))
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/api/processor/1", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := testutil.DoRequest(router, req)

			testutil.Then(t, "the submission is accepted", func(t *testing.T) {
				assert.Equal(t, http.StatusAccepted, rec.Code)
			})
		})

		testutil.When(t, "scraping metrics", func(t *testing.T) {
			rec := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			testutil.Then(t, "request counters are exposed", func(t *testing.T) {
				assert.Equal(t, http.StatusOK, rec.Code)
				assert.Contains(t, rec.Body.String(), "forestclient_http_requests_total")
			})
		})
	})
}
