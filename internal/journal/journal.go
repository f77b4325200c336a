// Package journal records every solve cycle a session performs, so a long
// gradient computation can be audited after the fact.
package journal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/femloop/internal/params"
)

// ErrNotFound is returned by Get for an unknown record id.
var ErrNotFound = errors.New("journal: record not found")

// Record is one solve cycle. Started is in UTC.
type Record struct {
	ID         string
	Session    string
	Run        int
	Job        string
	Inputs     *params.Set
	Outputs    *params.Set
	Mismatches int
	Started    time.Time
	Elapsed    time.Duration
	// Error is the failure message, empty for a completed cycle.
	Error string
}

// Failed reports whether the cycle ended in an error.
func (r Record) Failed() bool {
	return r.Error != ""
}

// Store persists Records.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Record(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// NewID returns a fresh record or session id.
func NewID() string {
	return uuid.NewString()
}

// prepare fills the id and normalizes the timestamp.
func prepare(rec Record) Record {
	if rec.ID == "" {
		rec.ID = NewID()
	}
	if rec.Started.IsZero() {
		rec.Started = time.Now()
	}
	rec.Started = rec.Started.UTC()
	return rec
}

func encodeSet(s *params.Set) string {
	if s == nil {
		return ""
	}
	var buf bytes.Buffer
	_ = params.Format(&buf, s)
	return buf.String()
}

func decodeSet(text string) (*params.Set, error) {
	return params.Parse(strings.NewReader(text))
}
