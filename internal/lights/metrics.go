package lights

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes the current status of every light as Prometheus
// gauges. Values are read from the device clients at scrape time.
type Collector struct {
	lights []*Light

	info       *prometheus.GaugeVec
	online     *prometheus.GaugeVec
	on         *prometheus.GaugeVec
	brightness *prometheus.GaugeVec
	cct        *prometheus.GaugeVec
	rgbw       *prometheus.GaugeVec

	pollFailures *prometheus.CounterVec
}

func NewCollector(lights []*Light) *Collector {
	deviceLabel := []string{"device"}
	return &Collector{
		lights: lights,
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aidotbridge_light_info",
			Help: "Static light information",
		}, []string{"device", "name", "manufacturer", "model", "color_mode"}),
		online: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aidotbridge_light_online",
			Help: "1 when the device is reachable",
		}, deviceLabel),
		on: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aidotbridge_light_on",
			Help: "1 when the light is on",
		}, deviceLabel),
		brightness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aidotbridge_light_brightness",
			Help: "Brightness (0-255)",
		}, deviceLabel),
		cct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aidotbridge_light_color_temp_kelvin",
			Help: "Color temperature (Kelvin)",
		}, deviceLabel),
		rgbw: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aidotbridge_light_rgbw",
			Help: "RGBW channel value (0-255)",
		}, []string{"device", "channel"}),
		pollFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aidotbridge_light_poll_failures_total",
			Help: "Failed status poll iterations",
		}, deviceLabel),
	}
}

// FailureCounter returns the poll failure hook for one light's poller.
func (c *Collector) FailureCounter(deviceID string) func() {
	counter := c.pollFailures.WithLabelValues(deviceID)
	return counter.Inc
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.info.Describe(ch)
	c.online.Describe(ch)
	c.on.Describe(ch)
	c.brightness.Describe(ch)
	c.cct.Describe(ch)
	c.rgbw.Describe(ch)
	c.pollFailures.Describe(ch)
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	channels := []string{"r", "g", "b", "w"}
	for _, light := range c.lights {
		id := light.ID()
		status := light.Status()

		c.info.WithLabelValues(id, light.Name(), light.Info().Manufacturer(), light.Info().Model(), string(light.ColorMode())).Set(1)
		c.online.WithLabelValues(id).Set(boolGauge(status.Online))
		c.on.WithLabelValues(id).Set(boolGauge(status.On))
		c.brightness.WithLabelValues(id).Set(float64(status.Dimming))
		c.cct.WithLabelValues(id).Set(float64(status.CCT))
		for i, channel := range channels {
			c.rgbw.WithLabelValues(id, channel).Set(float64(status.RGBW[i]))
		}
	}

	c.info.Collect(ch)
	c.online.Collect(ch)
	c.on.Collect(ch)
	c.brightness.Collect(ch)
	c.cct.Collect(ch)
	c.rgbw.Collect(ch)
	c.pollFailures.Collect(ch)
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
