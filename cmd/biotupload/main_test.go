package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/onalabs/biotupload/internal/trace"
)

// fakeBioT simulates the platform endpoints and counts what got called.
type fakeBioT struct {
	loginStatus int
	orgsStatus  int

	logins     int
	orgCalls   int
	tplCalls   int
	rcCreates  int
	devCreates int
}

func newFakeBioT() *fakeBioT {
	return &fakeBioT{
		loginStatus: http.StatusOK,
		orgsStatus:  http.StatusOK,
	}
}

func (f *fakeBioT) server() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/ums/v2/users/login", func(w http.ResponseWriter, r *http.Request) {
		f.logins++
		if f.loginStatus != http.StatusOK {
			http.Error(w, `{"error":"unauthorized"}`, f.loginStatus)
			return
		}
		w.Write([]byte(`{"accessJwt":{"token":"test-token"}}`))
	})
	mux.HandleFunc("/organization/v1/organizations", func(w http.ResponseWriter, r *http.Request) {
		f.orgCalls++
		if f.orgsStatus != http.StatusOK {
			http.Error(w, `{"error":"boom"}`, f.orgsStatus)
			return
		}
		w.Write([]byte(`{"data":[{"_id":"org-1","_name":"Acme Clinic"}]}`))
	})
	mux.HandleFunc("/settings/v1/templates/minimized", func(w http.ResponseWriter, r *http.Request) {
		f.tplCalls++
		w.Write([]byte(`{"data":[{"id":"tpl-rc-1"}]}`))
	})
	mux.HandleFunc("/settings/v1/portal-builder/MANUFACTURER_PORTAL/views-full-info/TEMPLATE_EXPAND", func(w http.ResponseWriter, r *http.Request) {
		f.tplCalls++
		w.Write([]byte(`{"template":{"id":"tpl-dev-1"}}`))
	})
	mux.HandleFunc("/organization/v1/registration-codes", func(w http.ResponseWriter, r *http.Request) {
		f.rcCreates++
		w.Write([]byte(`{"_id":"rc-42"}`))
	})
	mux.HandleFunc("/device/v2/devices", func(w http.ResponseWriter, r *http.Request) {
		f.devCreates++
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"_id":"1234567890"}`))
	})

	return httptest.NewServer(mux)
}

// writeSettings points both environments at the fake server and disables the
// settle delay so tests run fast.
func writeSettings(t *testing.T, url string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := fmt.Sprintf(`
endpoints:
  production: %s
  development: %s
http:
  timeout_seconds: 5
provision:
  settle_delay_ms: 0
`, url, url)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testArgs(settingsPath, outputDir, serial string) []string {
	return []string{
		"-env", "development",
		"-user", "operator@example.com",
		"-password", "secret",
		"-sn", serial,
		"-org", "Acme Clinic",
		"-rc", "CODE-1",
		"-description", "ONAS0000",
		"-version", "2.0.0",
		"-output", outputDir,
		"-config", settingsPath,
	}
}

// runTool runs the command and returns the trace file path it printed.
func runTool(t *testing.T, args []string) string {
	t.Helper()
	var out bytes.Buffer
	if err := run(&out, &bytes.Buffer{}, args); err != nil {
		t.Fatalf("run() error = %v, want nil", err)
	}
	return strings.TrimSpace(out.String())
}

func readTrace(t *testing.T, path string) trace.Record {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Trace file not readable: %v", err)
	}
	var rec trace.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("Trace file is not a single JSON object: %v", err)
	}
	return rec
}

func TestFullSuccess(t *testing.T) {
	fake := newFakeBioT()
	server := fake.server()
	defer server.Close()

	outputDir := t.TempDir()
	path := runTool(t, testArgs(writeSettings(t, server.URL), outputDir, "1234567890"))

	rec := readTrace(t, path)
	if rec.SerialNumber != "1234567890" {
		t.Errorf("serialNumber = %q, want the literal serial from the command line", rec.SerialNumber)
	}
	if rec.OutputExecutionResult != 0 {
		t.Errorf("outputExecutionResult = %d, want 0", rec.OutputExecutionResult)
	}

	if fake.rcCreates != 1 || fake.devCreates != 1 {
		t.Errorf("Creates = %d/%d, want 1/1", fake.rcCreates, fake.devCreates)
	}

	// One audit line per run
	auditData, err := os.ReadFile(filepath.Join(outputDir, "audit.jsonl"))
	if err != nil {
		t.Fatalf("Audit log not written: %v", err)
	}
	if n := bytes.Count(auditData, []byte("\n")); n != 1 {
		t.Errorf("Audit lines = %d, want 1", n)
	}
}

func TestAuthFailureShortCircuits(t *testing.T) {
	fake := newFakeBioT()
	fake.loginStatus = http.StatusUnauthorized
	server := fake.server()
	defer server.Close()

	outputDir := t.TempDir()
	path := runTool(t, testArgs(writeSettings(t, server.URL), outputDir, "1234567890"))

	rec := readTrace(t, path)
	if rec.OutputExecutionResult != 11 {
		t.Errorf("outputExecutionResult = %d, want 11 (login failure)", rec.OutputExecutionResult)
	}
	if rec.SerialNumber != "1234567890" {
		t.Errorf("serialNumber = %q, want the serial even on failure", rec.SerialNumber)
	}

	if fake.orgCalls != 0 || fake.tplCalls != 0 || fake.rcCreates != 0 || fake.devCreates != 0 {
		t.Errorf("Expected no calls past login, got orgs=%d tpl=%d rc=%d dev=%d",
			fake.orgCalls, fake.tplCalls, fake.rcCreates, fake.devCreates)
	}
}

func TestOrganizationFetchFailureAbortsBeforeCreation(t *testing.T) {
	fake := newFakeBioT()
	fake.orgsStatus = http.StatusInternalServerError
	server := fake.server()
	defer server.Close()

	outputDir := t.TempDir()
	path := runTool(t, testArgs(writeSettings(t, server.URL), outputDir, "1234567890"))

	rec := readTrace(t, path)
	if rec.OutputExecutionResult != 12 {
		t.Errorf("outputExecutionResult = %d, want 12 (organization fetch)", rec.OutputExecutionResult)
	}
	if fake.rcCreates != 0 || fake.devCreates != 0 {
		t.Errorf("Expected no creation calls, got rc=%d dev=%d", fake.rcCreates, fake.devCreates)
	}
}

func TestInvalidSerialSkipsAllNetworkWork(t *testing.T) {
	fake := newFakeBioT()
	server := fake.server()
	defer server.Close()

	outputDir := t.TempDir()
	path := runTool(t, testArgs(writeSettings(t, server.URL), outputDir, "123"))

	rec := readTrace(t, path)
	if rec.OutputExecutionResult != 5 {
		t.Errorf("outputExecutionResult = %d, want 5 (invalid serial)", rec.OutputExecutionResult)
	}
	if rec.SerialNumber != "123" {
		t.Errorf("serialNumber = %q, want the literal invalid value", rec.SerialNumber)
	}

	if fake.logins != 0 {
		t.Errorf("Expected no login attempt, got %d", fake.logins)
	}
}

func TestRerunOverwritesTraceAndAppendsAudit(t *testing.T) {
	fake := newFakeBioT()
	server := fake.server()
	defer server.Close()

	outputDir := t.TempDir()
	args := testArgs(writeSettings(t, server.URL), outputDir, "1234567890")

	first := runTool(t, args)
	second := runTool(t, args)

	if first != second {
		t.Errorf("Rerun produced a different path: %q vs %q", first, second)
	}

	// Still one JSON object, not two concatenated
	rec := readTrace(t, second)
	if rec.OutputExecutionResult != 0 {
		t.Errorf("outputExecutionResult = %d, want 0", rec.OutputExecutionResult)
	}

	f, err := os.Open(filepath.Join(outputDir, "audit.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	if lines != 2 {
		t.Errorf("Audit lines = %d, want 2 (append semantics)", lines)
	}
}

func TestMissingRequiredFlagIsHardFailure(t *testing.T) {
	var out, errOut bytes.Buffer
	err := run(&out, &errOut, []string{"-env", "development"})
	if err == nil {
		t.Error("run() expected error for missing flags, got nil")
	}
	if out.Len() != 0 {
		t.Errorf("No trace path should be printed on parse failure, got %q", out.String())
	}
}
