package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reply_tracker"

// Result label values
const (
	ResultSuccess = "success"
	ResultSkipped = "skipped"
	ResultError   = "error"
)

// Recorder holds the reply tracker's Prometheus counters. A nil *Recorder
// is valid and records nothing, so components can run without metrics.
type Recorder struct {
	registry        *prometheus.Registry
	reconciliations *prometheus.CounterVec
	followUps       *prometheus.CounterVec
	draftSendLogs   *prometheus.CounterVec
}

// NewRecorder registers the counters on a private registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Conversation reconciliations by message direction and result.",
		}, []string{"direction", "result"}),
		followUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "follow_ups_total",
			Help:      "Follow-up sweep outcomes by tracker type and result.",
		}, []string{"type", "result"}),
		draftSendLogs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_send_logs_total",
			Help:      "Draft send logs written, split by whether the draft was sent as is.",
		}, []string{"sent_from_draft"}),
	}

	r.registry.MustRegister(
		r.reconciliations,
		r.followUps,
		r.draftSendLogs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler exposes the registry for scraping
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Reconciliation(direction, result string) {
	if r == nil {
		return
	}
	r.reconciliations.WithLabelValues(direction, result).Inc()
}

func (r *Recorder) FollowUp(trackerType, result string) {
	if r == nil {
		return
	}
	r.followUps.WithLabelValues(trackerType, result).Inc()
}

func (r *Recorder) DraftSendLog(sentFromDraft bool) {
	if r == nil {
		return
	}
	r.draftSendLogs.WithLabelValues(strconv.FormatBool(sentFromDraft)).Inc()
}
