// Package metrics exports the state of the LED controllers to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lautenbacher.net/ledlights/color"
)

const namespace = "ledlights"

var channelNames = [...]string{"red", "green", "blue", "white"}

// Collector observes the controllers and keeps the metrics in its own
// registry.
type Collector struct {
	registry     *prometheus.Registry
	colorUpdates *prometheus.CounterVec
	lightsOn     *prometheus.GaugeVec
	timeouts     *prometheus.CounterVec
	channel      *prometheus.GaugeVec
	brightness   *prometheus.GaugeVec
	powerOn      prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		colorUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "color_updates_total",
			Help:      "Colors written to the backends of a controller",
		}, []string{"controller"}),
		lightsOn: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lights_on",
			Help:      "1 while the lights of a controller are on",
		}, []string{"controller"}),
		timeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeouts_total",
			Help:      "Lights switched off by the idle timeout",
		}, []string{"controller"}),
		channel: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "color_channel",
			Help:      "Last color value written per channel",
		}, []string{"controller", "channel"}),
		brightness: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "brightness",
			Help:      "Last pixel strip brightness written",
		}, []string{"controller"}),
		powerOn: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power_on",
			Help:      "1 while the main power supply is on",
		}),
	}
}

func boolGauge(on bool) float64 {
	if on {
		return 1
	}
	return 0
}

func (c *Collector) ColorChanged(controller string, col color.Color, lightsOn bool) {
	c.colorUpdates.WithLabelValues(controller).Inc()
	c.lightsOn.WithLabelValues(controller).Set(boolGauge(lightsOn))
	for i, name := range channelNames {
		c.channel.WithLabelValues(controller, name).Set(float64(col.Channel(i)))
	}
	c.brightness.WithLabelValues(controller).Set(float64(col.I))
}

func (c *Collector) TimedOut(controller string) {
	c.timeouts.WithLabelValues(controller).Inc()
}

func (c *Collector) SetPower(on bool) {
	c.powerOn.Set(boolGauge(on))
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
