package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lautenbacher.net/ledlights/color"
)

func TestCollector_ColorChanged(t *testing.T) {
	c := NewCollector()

	c.ColorChanged("primary", color.Orange, true)
	c.ColorChanged("primary", color.Off, false)
	c.ColorChanged("secondary", color.Blue, true)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.colorUpdates.WithLabelValues("primary")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.lightsOn.WithLabelValues("primary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.lightsOn.WithLabelValues("secondary")))
	assert.Equal(t, 255.0, testutil.ToFloat64(c.channel.WithLabelValues("secondary", "blue")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.channel.WithLabelValues("primary", "green")))
	assert.Equal(t, 255.0, testutil.ToFloat64(c.brightness.WithLabelValues("secondary")))
}

func TestCollector_TimedOutAndPower(t *testing.T) {
	c := NewCollector()
	c.TimedOut("primary")
	c.TimedOut("primary")
	c.SetPower(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.timeouts.WithLabelValues("primary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.powerOn))
	c.SetPower(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.powerOn))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.ColorChanged("primary", color.Red, true)

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `ledlights_color_updates_total{controller="primary"} 1`)
	assert.Contains(t, string(body), `ledlights_lights_on{controller="primary"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
