package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vetclinic/internal/config"
)

const farDate = "2099-01-05"

type harness struct {
	t   *testing.T
	dir string
	env map[string]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{t: t, dir: dir, env: map[string]string{
		config.EnvStorageDriver: config.StorageSQLite,
		config.EnvSQLitePath:    filepath.Join(dir, "clinic.db"),
		config.EnvBlobDriver:    config.BlobFilesystem,
		config.EnvBlobFSRoot:    filepath.Join(dir, "blobs"),
		config.EnvMetricsFile:   filepath.Join(dir, "metrics.prom"),
		config.EnvTraceFile:     filepath.Join(dir, "trace.jsonl"),
		config.EnvLogLevel:      "warn",
	}}
	orig := loadConfig
	loadConfig = func() (*config.Config, error) {
		return config.FromEnv(func(key string) (string, bool) {
			v, ok := h.env[key]
			return v, ok
		})
	}
	t.Cleanup(func() { loadConfig = orig })
	return h
}

func (h *harness) run(args ...string) (int, string, string) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	code := cli(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	code, out, errOut := h.run(args...)
	if code != 0 {
		h.t.Fatalf("%v exited %d: %s", args, code, errOut)
	}
	return out
}

func TestCLIWorkflow(t *testing.T) {
	h := newHarness(t)

	if out := h.mustRun("migrate"); !strings.Contains(out, "9 doctor(s) added") {
		t.Fatalf("unexpected migrate output %q", out)
	}
	if out := h.mustRun("migrate"); !strings.Contains(out, "0 doctor(s) added") {
		t.Fatalf("expected migrate to be idempotent, got %q", out)
	}
	if out := h.mustRun("seed-medicines"); !strings.Contains(out, "5 medicine(s) added") {
		t.Fatalf("unexpected seed output %q", out)
	}
	if out := h.mustRun("add-patient", "-name", "Rex", "-species", "Dog", "-owner", "Ana Cruz"); !strings.Contains(out, "patient 1 registered") {
		t.Fatalf("unexpected add-patient output %q", out)
	}

	out := h.mustRun("book", "-patient", "1", "-doctor", "3", "-date", farDate, "-time", "9:00 AM")
	fields := strings.Fields(out)
	if len(fields) < 2 || !strings.Contains(out, "scheduled on "+farDate+" at 09:00") {
		t.Fatalf("unexpected book output %q", out)
	}
	apptID := fields[1]

	code, _, errOut := h.run("book", "-patient", "1", "-doctor", "3", "-date", farDate, "-time", "09:00")
	if code != 1 || !strings.Contains(errOut, "[schedule_conflict]") {
		t.Fatalf("expected conflict exit, got %d %q", code, errOut)
	}

	if out := h.mustRun("diagnose", "-appointment", apptID, "-text", "Otitis"); !strings.Contains(out, "diagnosis 1 created") {
		t.Fatalf("unexpected diagnose output %q", out)
	}
	out = h.mustRun("prescribe", "-diagnosis", "1", "-medicine", "Ketamine", "-price", "500", "-qty", "6")
	if !strings.Contains(out, "warning:") || !strings.Contains(out, "= 3000.00") {
		t.Fatalf("expected low stock warning and subtotal, got %q", out)
	}
	code, _, errOut = h.run("prescribe", "-diagnosis", "1", "-medicine", "Ketamine", "-price", "500", "-qty", "10")
	if code != 1 || !strings.Contains(errOut, "[insufficient_stock]") {
		t.Fatalf("expected insufficient stock exit, got %d %q", code, errOut)
	}

	out = h.mustRun("stats", "-date", farDate)
	if !strings.Contains(out, "appointments on date:   1") || !strings.Contains(out, "Ketamine (4)") {
		t.Fatalf("unexpected stats output %q", out)
	}

	out = h.mustRun("export")
	if !strings.Contains(out, "snapshot exports/clinic-") || !strings.Contains(out, "download: file://") {
		t.Fatalf("unexpected export output %q", out)
	}

	if out := h.mustRun("cancel", "-id", apptID); !strings.Contains(out, "cancelled") {
		t.Fatalf("unexpected cancel output %q", out)
	}

	metrics, err := os.ReadFile(h.env[config.EnvMetricsFile])
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(metrics), `vetclinic_operations_total{operation="cancel_appointment",status="success"} 1`) {
		t.Fatalf("expected cancel to be counted, got:\n%s", metrics)
	}
	trace, err := os.ReadFile(h.env[config.EnvTraceFile])
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if !strings.Contains(string(trace), `"operation":"book_appointment"`) {
		t.Fatalf("expected booking spans in trace file")
	}
}

func TestCLIUsageErrors(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"frobnicate"}},
		{"missing flag", []string{"cancel"}},
		{"bad flag", []string{"stats", "-nope"}},
		{"stray argument", []string{"migrate", "extra"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if code, _, _ := h.run(tc.args...); code != 2 {
				t.Fatalf("expected exit 2, got %d", code)
			}
		})
	}
}

func TestCLIReportsConfigAndDomainErrors(t *testing.T) {
	h := newHarness(t)
	h.env[config.EnvStorageDriver] = "mongodb"
	code, _, errOut := h.run("migrate")
	if code != 1 || !strings.Contains(errOut, "config:") {
		t.Fatalf("expected config failure, got %d %q", code, errOut)
	}

	h.env[config.EnvStorageDriver] = config.StorageSQLite
	h.mustRun("migrate")
	code, _, errOut = h.run("book", "-patient", "42", "-doctor", "1", "-date", farDate, "-time", "10:00")
	if code != 1 || !strings.Contains(errOut, "[not_found]") {
		t.Fatalf("expected not found, got %d %q", code, errOut)
	}
	code, _, errOut = h.run("prescribe", "-diagnosis", "1", "-medicine", "Ketamine", "-price", "abc", "-qty", "1")
	if code != 1 || !strings.Contains(errOut, "[validation]") {
		t.Fatalf("expected validation failure, got %d %q", code, errOut)
	}
}

func TestMainUsesExitFunc(t *testing.T) {
	newHarness(t)
	origExit, origArgs := exitFunc, os.Args
	t.Cleanup(func() { exitFunc, os.Args = origExit, origArgs })

	var got *int
	exitFunc = func(code int) { got = &code }
	os.Args = []string{"vetclinic"}
	main()
	if got == nil || *got != 2 {
		t.Fatalf("expected exit 2 from main, got %v", got)
	}
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	report(&buf, errors.New("disk on fire"))
	if buf.String() != "error: disk on fire\n" {
		t.Fatalf("unexpected plain report %q", buf.String())
	}
}
