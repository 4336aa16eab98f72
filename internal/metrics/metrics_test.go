package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/biobot-lab/biobot/internal/event"
)

func TestRecorder_CountsEvents(t *testing.T) {
	bus := event.NewBus()
	r := New()
	r.Start(bus)
	r.Start(bus) // idempotent

	bus.Publish(event.NewIDCollisionEvent("20240101120000", "registered"))
	bus.Publish(event.NewExperimentCreatedEvent(0, "20240101120000-1", 2))
	bus.Publish(event.NewMessageWrittenEvent("observations", "x", 0, "x_0.json", false))
	bus.Publish(event.NewMessageWrittenEvent("observations", "x", 0, "x_0.json", true))
	bus.Publish(event.NewMessageDriftEvent("observations", "x", 0))
	bus.Publish(event.NewRoundFailedEvent("intervene", 0, 5, "not_found", errors.New("missing")))

	if got := testutil.ToFloat64(r.experimentsCreated); got != 1 {
		t.Errorf("experiments_created_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.collisions.WithLabelValues("registered")); got != 1 {
		t.Errorf("id_collisions_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.messagesWritten.WithLabelValues("observations")); got != 2 {
		t.Errorf("messages_written_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.drift.WithLabelValues("observations")); got != 1 {
		t.Errorf("message_drift_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.failures.WithLabelValues("intervene", "not_found")); got != 1 {
		t.Errorf("round_failures_total = %v, want 1", got)
	}

	r.Stop()
	bus.Publish(event.NewExperimentCreatedEvent(1, "y", 1))
	if got := testutil.ToFloat64(r.experimentsCreated); got != 1 {
		t.Errorf("counter moved after Stop: %v", got)
	}
	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after Stop", bus.SubscriptionCount())
	}
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New()
	r.now = func() time.Time { return time.Unix(1700000000, 0) }
	r.SetExperiments(3)
	r.SetMailboxMessages("observations", 5)
	r.SetMailboxMessages("interventions", 4)

	path := filepath.Join(t.TempDir(), ".biobot", DefaultTextfile)
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		"biobot_experiments 3",
		`biobot_mailbox_messages{channel="observations"} 5`,
		`biobot_mailbox_messages{channel="interventions"} 4`,
		"biobot_last_run_timestamp_seconds 1.7e+09",
		"# HELP biobot_experiments_created_total",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("textfile missing %q:\n%s", want, text)
		}
	}
}

func TestRecorder_LoadTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultTextfile)

	first := New()
	first.experimentsCreated.Add(2)
	first.messagesWritten.WithLabelValues("observations").Add(3)
	first.failures.WithLabelValues("intervene", "not_found").Inc()
	first.SetExperiments(2)
	if err := first.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	bus := event.NewBus()
	second := New()
	if err := second.LoadTextfile(path); err != nil {
		t.Fatalf("LoadTextfile: %v", err)
	}
	second.Start(bus)
	bus.Publish(event.NewExperimentCreatedEvent(2, "20240101120002", 1))
	bus.Publish(event.NewMessageWrittenEvent("observations", "20240101120002", 0, "20240101120002_0.json", false))

	if got := testutil.ToFloat64(second.experimentsCreated); got != 3 {
		t.Errorf("experiments_created_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(second.messagesWritten.WithLabelValues("observations")); got != 4 {
		t.Errorf("messages_written_total = %v, want 4", got)
	}
	if got := testutil.ToFloat64(second.failures.WithLabelValues("intervene", "not_found")); got != 1 {
		t.Errorf("round_failures_total = %v, want 1", got)
	}
	// Gauges are recomputed each run.
	if got := testutil.ToFloat64(second.experiments); got != 0 {
		t.Errorf("experiments gauge = %v, want 0", got)
	}
}

func TestRecorder_LoadTextfile_Missing(t *testing.T) {
	r := New()
	if err := r.LoadTextfile(filepath.Join(t.TempDir(), "absent.prom")); err != nil {
		t.Errorf("LoadTextfile(missing) = %v, want nil", err)
	}
}

func TestRecorder_LoadTextfile_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultTextfile)
	if err := os.WriteFile(path, []byte("biobot_experiments_created_total not-a-number\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := New()
	if err := r.LoadTextfile(path); err == nil {
		t.Error("LoadTextfile(corrupt) = nil, want error")
	}
	if got := testutil.ToFloat64(r.experimentsCreated); got != 0 {
		t.Errorf("experiments_created_total = %v after failed load", got)
	}
}

func TestRecorder_LoadTextfile_IgnoresForeignFamilies(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultTextfile)
	text := "# TYPE other_total counter\nother_total 9\n" +
		"# TYPE biobot_id_collisions_total counter\nbiobot_id_collisions_total{bogus=\"x\"} 4\n"
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	r := New()
	if err := r.LoadTextfile(path); err != nil {
		t.Fatalf("LoadTextfile: %v", err)
	}
	if n := testutil.CollectAndCount(r.collisions); n != 0 {
		t.Errorf("collisions series = %d, want 0", n)
	}
}
