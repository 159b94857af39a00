// Package runlog provides the durable, append-only event log for agent
// runs. Every state transition of the orchestrator is appended as one
// self-contained JSON line; records are never mutated or deleted. The log
// is the canonical source of truth for post-hoc run analysis.
package runlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EventType classifies a run event.
type EventType string

const (
	EventCycleStart    EventType = "CYCLE_START"
	EventLLMInvocation EventType = "LLM_INVOCATION"
	EventToolCall      EventType = "TOOL_CALL"
	EventCycleEnd      EventType = "CYCLE_END"
)

// Record is a single structured log entry. Field names are part of the
// log file contract; downstream consumers tolerate unknown payload keys
// but depend on these five fields being present.
type Record struct {
	Timestamp   string         `json:"timestamp"` // ISO 8601, UTC
	RunID       string         `json:"run_id"`
	CycleNumber int            `json:"cycle_number"`
	EventType   EventType      `json:"event_type"`
	Payload     map[string]any `json:"payload"`
}

// Logger appends records to a per-run JSONL file.
type Logger struct {
	path string
	file *os.File
}

// Path returns the log file location for a run.
func Path(logDir, runID string) string {
	return filepath.Join(logDir, runID+".jsonl")
}

// New opens (creating directories as needed) the event log for runID
// under logDir in append mode.
func New(logDir, runID string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	path := Path(logDir, runID)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &Logger{path: path, file: file}, nil
}

// FilePath returns the path of the underlying log file.
func (l *Logger) FilePath() string { return l.path }

// Log appends one event record. The record is serialized and written with
// a single write call so that, under the single-writer model, no partial
// or interleaved records can appear in the file. Nothing is buffered in
// the process: the record is durable in the file before Log returns.
func (l *Logger) Log(runID string, cycleNumber int, eventType EventType, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	rec := Record{
		Timestamp:   time.Now().UTC().Format("2006-01-02T15:04:05.000000Z"),
		RunID:       runID,
		CycleNumber: cycleNumber,
		EventType:   eventType,
		Payload:     payload,
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	return l.file.Close()
}

// ReadAll parses every record from a log file. Intended for analysis and
// tests, not for the hot path.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("parse record: %w", err)
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}
