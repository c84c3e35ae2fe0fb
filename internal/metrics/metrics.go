package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trainer_sessions_active",
		Help: "Simulation sessions with an open transport connection",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trainer_sessions_total",
		Help: "Simulation sessions started",
	})

	ConnectDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trainer_connect_duration_seconds",
		Help:    "Time from dial to socket open",
		Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trainer_reconnect_attempts_total",
		Help: "Reconnect attempts after abnormal closure",
	})

	ConnectionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trainer_connection_errors_total",
		Help: "Transport errors by kind",
	}, []string{"kind"})

	FramesIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trainer_frames_received_total",
		Help: "Decoded inbound frames by kind",
	}, []string{"kind"})

	FramesOut = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trainer_frames_sent_total",
		Help: "Outbound frames by kind",
	}, []string{"kind"})

	SendsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trainer_sends_dropped_total",
		Help: "Sends rejected because the session was not connected",
	})

	SubscriberPanics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trainer_subscriber_panics_total",
		Help: "Frame handlers that panicked during dispatch",
	})

	AudioCaptures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trainer_audio_captures_total",
		Help: "Completed press-to-talk captures",
	})

	AudioPlaybacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trainer_audio_playbacks_total",
		Help: "Agent audio clips played",
	})

	AudioDeviceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trainer_audio_device_errors_total",
		Help: "Capture or playback failures",
	}, []string{"op"})

	Outcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trainer_outcomes_total",
		Help: "Resolved session outcomes by outcome and source",
	}, []string{"outcome", "source"})

	CallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trainer_call_duration_seconds",
		Help:    "Elapsed call time at session end",
		Buckets: []float64{10, 30, 60, 100, 150, 300, 600},
	})
)
