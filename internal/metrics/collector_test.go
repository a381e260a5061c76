package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	gwerrors "github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/errors"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	t.Run("with valid config", func(t *testing.T) {
		config := &Config{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "gateway",
			Subsystem: "test",
		}
		collector, err := NewCollector(config)
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		if collector.config != config {
			t.Error("collector.config does not match input config")
		}
		if collector.registry == nil {
			t.Error("collector.registry is nil")
		}
		if !collector.Enabled() {
			t.Error("collector should be enabled")
		}
	})

	t.Run("with nil config uses defaults", func(t *testing.T) {
		collector, err := NewCollector(nil)
		if err != nil {
			t.Fatalf("NewCollector(nil) error = %v, want nil", err)
		}
		if collector.config.Path != "/metrics" {
			t.Errorf("default path = %q, want %q", collector.config.Path, "/metrics")
		}
		if collector.config.Namespace != "gateway" {
			t.Errorf("default namespace = %q, want %q", collector.config.Namespace, "gateway")
		}
	})

	t.Run("with disabled config", func(t *testing.T) {
		collector, err := NewCollector(&Config{Enabled: false})
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		if collector.registry != nil {
			t.Error("disabled collector should not have registry")
		}

		// must not panic
		collector.RecordOperation("upload", "pcap", time.Millisecond, 10, true)
		collector.RecordError("upload", "pcap", errors.New("x"))
		collector.RecordNotification("nats", true)
		collector.RequestStarted()
		collector.RequestFinished()

		rec := httptest.NewRecorder()
		collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("disabled handler status = %d, want 404", rec.Code)
		}
	})
}

func TestRecordOperation(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector.RecordOperation("upload", "pcap", 10*time.Millisecond, 1024, true)
	collector.RecordOperation("upload", "pcap", 30*time.Millisecond, 2048, false)
	collector.RecordOperation("list", "generic", 5*time.Millisecond, 0, true)

	snapshot := collector.GetMetrics()
	upload, ok := snapshot["pcap/upload"]
	if !ok {
		t.Fatal("missing pcap/upload entry")
	}
	if upload.Count != 2 || upload.Errors != 1 || upload.TotalSize != 3072 {
		t.Errorf("unexpected upload totals %+v", upload)
	}
	if upload.AvgDuration != 20*time.Millisecond {
		t.Errorf("avg duration = %v, want 20ms", upload.AvgDuration)
	}

	if got := testutil.ToFloat64(collector.operationCounter.WithLabelValues("upload", "pcap", "success")); got != 1 {
		t.Errorf("success counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.operationCounter.WithLabelValues("upload", "pcap", "error")); got != 1 {
		t.Errorf("error counter = %v, want 1", got)
	}

	collector.ResetMetrics()
	if len(collector.GetMetrics()) != 0 {
		t.Error("ResetMetrics should clear the snapshot")
	}
}

func TestRecordError(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector.RecordError("download", "tstat", gwerrors.NewError(gwerrors.ErrCodeObjectNotFound, "gone"))
	collector.RecordError("download", "tstat", errors.New("plain"))
	collector.RecordError("download", "tstat", nil)

	if got := testutil.ToFloat64(collector.errorCounter.WithLabelValues("download", "tstat", "not_found")); got != 1 {
		t.Errorf("not_found errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.errorCounter.WithLabelValues("download", "tstat", "internal")); got != 1 {
		t.Errorf("internal errors = %v, want 1", got)
	}
}

func TestInFlightAndNotifications(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector.RequestStarted()
	collector.RequestStarted()
	collector.RequestFinished()
	if got := testutil.ToFloat64(collector.inFlight); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}

	collector.RecordNotification("kafka", false)
	if got := testutil.ToFloat64(collector.notifyCounter.WithLabelValues("kafka", "error")); got != 1 {
		t.Errorf("kafka errors = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	config.Labels = map[string]string{"site": "lab"}
	collector, err := NewCollector(config)
	if err != nil {
		t.Fatal(err)
	}
	collector.RecordOperation("metadata", "cicflowmeter", time.Millisecond, 0, true)

	srv := httptest.NewServer(collector.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `gateway_operations_total{namespace="cicflowmeter",operation="metadata",site="lab",status="success"} 1`) {
		t.Errorf("exposition missing operation counter:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("exposition missing runtime collector")
	}
}
