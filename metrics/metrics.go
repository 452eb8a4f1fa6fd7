package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RoanBrand/LWNXProtocol/protocol"
)

// NewRegistry creates a Prometheus registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler exposing reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// LinkMetrics holds the serial link statistics for all devices.
type LinkMetrics struct {
	Frames          *prometheus.CounterVec   // labels: device, result=ok|bad_length|bad_crc|unexpected
	Requests        *prometheus.CounterVec   // labels: device, command, result
	RequestAttempts *prometheus.HistogramVec // labels: device
	RequestDuration *prometheus.HistogramVec // labels: device
	Connected       *prometheus.GaugeVec     // labels: device
	Reconnects      *prometheus.CounterVec   // labels: device
}

// NewLinkMetrics registers and returns the link metrics.
func NewLinkMetrics(reg prometheus.Registerer) *LinkMetrics {
	m := &LinkMetrics{
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lwnx_frames_total",
			Help: "Frames seen by the parser, by result.",
		}, []string{"device", "result"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lwnx_requests_total",
			Help: "Completed requests by command id and result.",
		}, []string{"device", "command", "result"}),
		RequestAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lwnx_request_attempts",
			Help:    "Number of times each request was sent.",
			Buckets: []float64{1, 2, 3, 4, 6, 8},
		}, []string{"device"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lwnx_request_duration_seconds",
			Help:    "Time from first transmission to completion.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .2, .4, .8, 1.6},
		}, []string{"device"}),
		Connected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lwnx_device_connected",
			Help: "1 while the device serial port is open and identified.",
		}, []string{"device"}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lwnx_device_reconnects_total",
			Help: "Times the device connection was restarted after a failure.",
		}, []string{"device"}),
	}
	reg.MustRegister(m.Frames, m.Requests, m.RequestAttempts, m.RequestDuration, m.Connected, m.Reconnects)
	return m
}

// DeviceRecorder records link statistics for one device.
type DeviceRecorder struct {
	m      *LinkMetrics
	device string
}

var _ protocol.Recorder = (*DeviceRecorder)(nil)

// For returns the recorder for a single device.
func (m *LinkMetrics) For(device string) *DeviceRecorder {
	return &DeviceRecorder{m: m, device: device}
}

func (r *DeviceRecorder) FrameReceived(result string) {
	r.m.Frames.WithLabelValues(r.device, result).Inc()
}

func (r *DeviceRecorder) RequestDone(command byte, result string, attempts int, elapsed time.Duration) {
	r.m.Requests.WithLabelValues(r.device, strconv.Itoa(int(command)), result).Inc()
	r.m.RequestAttempts.WithLabelValues(r.device).Observe(float64(attempts))
	r.m.RequestDuration.WithLabelValues(r.device).Observe(elapsed.Seconds())
}

// SetConnected flips the connection gauge.
func (r *DeviceRecorder) SetConnected(up bool) {
	v := 0.0
	if up {
		v = 1
	}
	r.m.Connected.WithLabelValues(r.device).Set(v)
}

// Reconnected counts a connection restart.
func (r *DeviceRecorder) Reconnected() {
	r.m.Reconnects.WithLabelValues(r.device).Inc()
}
