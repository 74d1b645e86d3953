package metricsvc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesisman/backend/core/event"
)

func TestMetrics_Publisher(t *testing.T) {
	m := New()
	var got []event.Event
	pub := m.Publisher(event.PublisherFunc(func(_ context.Context, events ...event.Event) {
		got = append(got, events...)
	}))

	pub.Publish(context.Background(),
		event.New(event.NewApplication, event.Payload{}),
		event.New(event.NewApplication, event.Payload{}),
		event.New(event.ApplicationCanceled, event.Payload{}),
	)

	assert.Len(t, got, 3)
	assert.Equal(t, 2.0, promtest.ToFloat64(m.events.WithLabelValues(string(event.NewApplication))))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.events.WithLabelValues(string(event.ApplicationCanceled))))
}

func TestMetrics_Middleware(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/v1/proposals/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	for _, path := range []string{"/v1/proposals/1", "/v1/proposals/2", "/nowhere"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, promtest.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/v1/proposals/:id", "200")))
	assert.Equal(t, 2, promtest.CollectAndCount(m.httpDuration))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `thesis_http_requests_total{method="GET",path="/v1/proposals/:id",status="200"} 2`)
}
