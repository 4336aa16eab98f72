package metrics

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"

	"github.com/biobot-lab/biobot/internal/event"
)

// DefaultTextfile is the textfile name under the state directory.
const DefaultTextfile = "metrics.prom"

const namespace = "biobot"

// Recorder owns a private registry with the coordination metrics.
type Recorder struct {
	reg *prometheus.Registry

	experimentsCreated prometheus.Counter
	collisions         *prometheus.CounterVec
	messagesWritten    *prometheus.CounterVec
	drift              *prometheus.CounterVec
	failures           *prometheus.CounterVec
	experiments        prometheus.Gauge
	mailboxMessages    *prometheus.GaugeVec
	lastRun            prometheus.Gauge

	mu    sync.Mutex
	bus   *event.Bus
	subID string
	now   func() time.Time
}

// New returns a Recorder with every metric registered.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		now: time.Now,
		experimentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "experiments_created_total",
			Help:      "Experiments created.",
		}),
		collisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "id_collisions_total",
			Help:      "Generated experiment identifiers rejected as already taken.",
		}, []string{"reason"}),
		messagesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_written_total",
			Help:      "Messages stored, by channel.",
		}, []string{"channel"}),
		drift: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_drift_total",
			Help:      "Identical messages resent to an occupied address.",
		}, []string{"channel"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "round_failures_total",
			Help:      "Failed controller operations, by operation and error kind.",
		}, []string{"operation", "kind"}),
		experiments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "experiments",
			Help:      "Experiments in the registry.",
		}),
		mailboxMessages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mailbox_messages",
			Help:      "Message files present, by channel.",
		}, []string{"channel"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the textfile was last written.",
		}),
	}
	r.reg.MustRegister(
		r.experimentsCreated, r.collisions, r.messagesWritten, r.drift,
		r.failures, r.experiments, r.mailboxMessages, r.lastRun,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Start subscribes to every event on bus. Calling Start twice is a no-op.
func (r *Recorder) Start(bus *event.Bus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subID != "" || bus == nil {
		return
	}
	r.bus = bus
	r.subID = bus.SubscribeAll(r.Observe)
}

// Stop unsubscribes from the bus.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subID != "" {
		r.bus.Unsubscribe(r.subID)
		r.subID = ""
	}
}

// Observe updates counters for one event. Unknown events are ignored.
func (r *Recorder) Observe(e event.Event) {
	switch ev := e.(type) {
	case event.ExperimentCreatedEvent:
		r.experimentsCreated.Inc()
	case event.IDCollisionEvent:
		r.collisions.WithLabelValues(ev.Reason).Inc()
	case event.MessageWrittenEvent:
		r.messagesWritten.WithLabelValues(ev.Channel).Inc()
	case event.MessageDriftEvent:
		r.drift.WithLabelValues(ev.Channel).Inc()
	case event.RoundFailedEvent:
		r.failures.WithLabelValues(ev.Operation, ev.Kind).Inc()
	}
}

// SetExperiments records the registry size.
func (r *Recorder) SetExperiments(n int) {
	r.experiments.Set(float64(n))
}

// SetMailboxMessages records the number of files in a channel.
func (r *Recorder) SetMailboxMessages(channel string, n int) {
	r.mailboxMessages.WithLabelValues(channel).Set(float64(n))
}

// WriteTextfile stamps the run time and writes every metric to path. The
// write goes through a temp file and rename.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	r.lastRun.Set(float64(r.now().Unix()))
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// LoadTextfile seeds the counters from a textfile written by an earlier run,
// so totals keep growing across invocations. A missing file is not an error.
// Gauges are not restored; they are recomputed before every write.
func (r *Recorder) LoadTextfile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open metrics textfile: %w", err)
	}
	defer f.Close()

	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(f)
	if err != nil {
		return fmt.Errorf("parse metrics textfile %s: %w", path, err)
	}

	for name, mf := range families {
		if mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, m := range mf.GetMetric() {
			v := m.GetCounter().GetValue()
			if v <= 0 {
				continue
			}
			if c := r.counterFor(name, m.GetLabel()); c != nil {
				c.Add(v)
			}
		}
	}
	return nil
}

// counterFor returns the live counter for a parsed sample, or nil when the
// family is not ours or its labels do not match.
func (r *Recorder) counterFor(family string, pairs []*dto.LabelPair) prometheus.Counter {
	labels := make(prometheus.Labels, len(pairs))
	for _, p := range pairs {
		labels[p.GetName()] = p.GetValue()
	}

	var vec *prometheus.CounterVec
	switch family {
	case namespace + "_experiments_created_total":
		if len(labels) != 0 {
			return nil
		}
		return r.experimentsCreated
	case namespace + "_id_collisions_total":
		vec = r.collisions
	case namespace + "_messages_written_total":
		vec = r.messagesWritten
	case namespace + "_message_drift_total":
		vec = r.drift
	case namespace + "_round_failures_total":
		vec = r.failures
	default:
		return nil
	}
	c, err := vec.GetMetricWith(labels)
	if err != nil {
		return nil
	}
	return c
}
