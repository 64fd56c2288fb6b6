// Package audit records every permission decision the gate makes, so a
// session can be reconstructed after the fact: what ran, what was blocked,
// and why. Denials are additionally mirrored to the structured log.
package audit

import (
	"time"
)

// Entry is one recorded permission decision.
type Entry struct {
	ID        string
	Time      time.Time
	SessionID string
	Tool      string
	// Command is set for bash calls; empty otherwise.
	Command  string
	Decision string
	Reason   string
}

// Recorder persists permission decisions. Recording is best-effort: a
// failing audit write must never fail the tool call it describes, so
// Record reports problems through the log instead of an error return.
type Recorder interface {
	Record(e Entry)
	Recent(limit int) ([]Entry, error)
	Denials(limit int) ([]Entry, error)
	Close() error
}

// NopRecorder discards everything. Used when the audit log is disabled.
type NopRecorder struct{}

func (NopRecorder) Record(Entry) {}

func (NopRecorder) Recent(int) ([]Entry, error) { return nil, nil }

func (NopRecorder) Denials(int) ([]Entry, error) { return nil, nil }

func (NopRecorder) Close() error { return nil }
