package metric

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5g-empower/empower-runtime-sub001/errors"
)

func TestRegisterDuplicate(t *testing.T) {
	reg := NewMetricsRegistry()
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_total", Help: "test"}, []string{"k"})

	require.NoError(t, reg.RegisterCounterVec("lvapp", "test_total", vec))
	err := reg.RegisterCounterVec("lvapp", "test_total", vec)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	assert.True(t, reg.Unregister("lvapp", "test_total"))
	assert.False(t, reg.Unregister("lvapp", "test_total"))
	require.NoError(t, reg.RegisterCounterVec("lvapp", "test_total", vec))
}

func TestPrometheusConflictIsInvalid(t *testing.T) {
	reg := NewMetricsRegistry()
	a := prometheus.NewGauge(prometheus.GaugeOpts{Name: "same_name", Help: "a"})
	b := prometheus.NewGauge(prometheus.GaugeOpts{Name: "same_name", Help: "a"})

	require.NoError(t, reg.RegisterGauge("svc-a", "same_name", a))
	err := reg.RegisterGauge("svc-b", "same_name", b)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestHandlerExposesCoreMetrics(t *testing.T) {
	reg := NewMetricsRegistry()
	reg.Core().FramesReceived.WithLabelValues("lvapp", "hello").Inc()
	reg.Core().LVAPs.Set(3)

	srv := httptest.NewServer(NewServer(0, "", reg).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `empower_southbound_frames_received_total{protocol="lvapp",type="hello"} 1`))
	assert.True(t, strings.Contains(text, "empower_runtime_lvaps 3"))
}

func TestServerStartStop(t *testing.T) {
	s := NewServer(0, "", NewMetricsRegistry())
	s.port = 0 // ephemeral

	require.NoError(t, s.Start())
	assert.NotEmpty(t, s.Address())
	assert.Error(t, s.Start())

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, "", s.Address())
	require.NoError(t, s.Stop(context.Background()))
}
