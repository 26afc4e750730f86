package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/5g-empower/empower-runtime-sub001/controller"
	"github.com/5g-empower/empower-runtime-sub001/persistence"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newHandler(t *testing.T) (http.Handler, *controller.Controller) {
	t.Helper()
	ctrl, err := controller.New(persistence.NewMemory())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, ctrl.Start(ctx))
	t.Cleanup(func() {
		require.NoError(t, ctrl.Stop(time.Second))
		cancel()
	})
	return NewHandler(ctrl), ctrl
}

func put(h http.Handler, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, target, strings.NewReader(body)))
	return rec
}

func TestParse(t *testing.T) {
	readings, err := Parse(strings.NewReader("current, 0.25\n\nvoltage,12\npower,3.5\n"))
	require.NoError(t, err)
	assert.Equal(t, []Reading{{"current", 0.25}, {"voltage", 12}, {"power", 3.5}}, readings)

	_, err = Parse(strings.NewReader("power,abc\n"))
	assert.Error(t, err)

	_, err = Parse(strings.NewReader("power,1,2\n"))
	assert.Error(t, err)
}

func TestUpdate(t *testing.T) {
	h, ctrl := newHandler(t)
	ctx := context.Background()
	require.NoError(t, ctrl.CreateFeed(ctx, runtime.Feed{ID: 7, Label: "rack"}))

	rec := put(h, "/v2/feeds/7.csv", "current,0.5\npower,6.25\n")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	var value float64
	require.NoError(t, ctrl.View(ctx, func(s *controller.State) error {
		f, ok := s.Runtime.Feed(7)
		require.True(t, ok)
		value = f.Value
		return nil
	}))
	assert.Equal(t, 6.25, value)
}

func TestUpdateRejects(t *testing.T) {
	h, ctrl := newHandler(t)
	require.NoError(t, ctrl.CreateFeed(context.Background(), runtime.Feed{ID: 1}))

	tests := []struct {
		name   string
		target string
		body   string
		code   int
	}{
		{"unknown feed", "/v2/feeds/2.csv", "power,1\n", http.StatusNotFound},
		{"bad id", "/v2/feeds/abc.csv", "power,1\n", http.StatusBadRequest},
		{"bad value", "/v2/feeds/1.csv", "power,x\n", http.StatusBadRequest},
		{"empty document", "/v2/feeds/1.csv", "", http.StatusBadRequest},
		{"wrong suffix", "/v2/feeds/1.json", "power,1\n", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, put(h, tt.target, tt.body).Code)
		})
	}
}
