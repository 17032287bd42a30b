package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/onalabs/biotupload/internal/version"
)

// noSerialPlaceholder keeps the trace file nameable when no serial survived
// argument parsing.
const noSerialPlaceholder = "No_Serial_Number_Available"

// auditFilename is the per-directory JSONL audit log, appended once per run.
const auditFilename = "audit.jsonl"

// Record is the traceability document written once per run. The shipping
// line reads exactly these two fields; do not extend it.
type Record struct {
	SerialNumber          string `json:"serialNumber"`
	OutputExecutionResult int    `json:"outputExecutionResult"`
}

// AuditEntry is one appended line in the audit log.
type AuditEntry struct {
	RunID                 string `json:"runId"`
	Timestamp             string `json:"timestamp"`
	SerialNumber          string `json:"serialNumber"`
	Environment           string `json:"environment"`
	ToolVersion           string `json:"toolVersion"`
	OutputExecutionResult int    `json:"outputExecutionResult"`
}

// Filename returns "{serial}_{YYMMDD}.json" for the given date.
func Filename(serialNumber string, date time.Time) string {
	if serialNumber == "" {
		serialNumber = noSerialPlaceholder
	}
	return fmt.Sprintf("%s_%s.json", serialNumber, date.Format("060102"))
}

// Writer writes the per-run traceability file and the audit log into one
// output directory.
type Writer struct {
	dir      string
	now      func() time.Time
	newRunID func() string
}

// NewWriter creates a writer for the given output directory.
func NewWriter(dir string) *Writer {
	return &Writer{
		dir:      dir,
		now:      time.Now,
		newRunID: func() string { return uuid.New().String() },
	}
}

// Write serializes the record to <dir>/<serial>_<YYMMDD>.json and returns
// the file path. A previous run of the same serial and day is overwritten;
// the file always holds a single JSON object.
func (w *Writer) Write(serialNumber string, result int) (string, error) {
	content, err := json.MarshalIndent(Record{
		SerialNumber:          serialNumber,
		OutputExecutionResult: result,
	}, "", "    ")
	if err != nil {
		return "", fmt.Errorf("marshal trace record: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(w.dir, Filename(serialNumber, w.now()))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write trace file: %w", err)
	}
	return path, nil
}

// Append adds one audit entry line to <dir>/audit.jsonl.
func (w *Writer) Append(serialNumber, environment string, result int) error {
	entry := AuditEntry{
		RunID:                 w.newRunID(),
		Timestamp:             w.now().UTC().Format(time.RFC3339),
		SerialNumber:          serialNumber,
		Environment:           environment,
		ToolVersion:           version.Version,
		OutputExecutionResult: result,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(w.dir, auditFilename), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}
