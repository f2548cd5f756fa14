package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/agentdesk/pkg/metrics"
)

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/agents/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.CollectAndCount(metrics.APILatency)
	inFlight := testutil.ToFloat64(metrics.HTTPInFlight)
	for _, id := range []string{"a", "b", "c"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/agents/"+id, nil))
		require.Equal(t, http.StatusNoContent, w.Code)
	}

	// Three distinct ids collapse into a single series.
	require.LessOrEqual(t, testutil.CollectAndCount(metrics.APILatency), before+1)
	require.Equal(t, inFlight, testutil.ToFloat64(metrics.HTTPInFlight))
}
