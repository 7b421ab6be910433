package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func TestWriteTextfile_DefaultGatherer(t *testing.T) {
	counter := promauto.NewCounter(prometheus.CounterOpts{
		Name: "eox_test_default_gatherer_total",
		Help: "Test counter on the default registry",
	})
	counter.Inc()

	path := filepath.Join(t.TempDir(), "eox.prom")
	if err := WriteTextfile(path, nil); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "eox_test_default_gatherer_total 1") {
		t.Errorf("nil gatherer should export the default registry, got %q", data)
	}
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eox_test_batches_total",
		Help: "Test counter",
	})
	reg.MustRegister(counter)
	counter.Add(3)

	path := filepath.Join(t.TempDir(), "eox.prom")
	if err := WriteTextfile(path, reg); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "eox_test_batches_total 3") {
		t.Errorf("textfile = %q, want counter value", data)
	}
}

func TestWriteTextfile_BadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no-such-dir", "eox.prom")
	if err := WriteTextfile(path, prometheus.NewRegistry()); err == nil {
		t.Error("WriteTextfile() expected error for missing directory")
	}
}
