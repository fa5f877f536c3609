// Package audit appends redacted, timestamped records of credential
// vault operations to a dedicated store namespace. Recording never
// fails the primary operation: internal errors are swallowed and only
// surfaced through the logger.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/credlink/credlink/store"
)

// keyspace is the auditor's namespace inside the shared store.
const keyspace = "audit/"

// keyTimeFormat is a fixed-width UTC timestamp so audit keys sort
// chronologically as bytes. RFC3339Nano is unsuitable here because it
// drops trailing zeros.
const keyTimeFormat = "2006-01-02T15:04:05.000000000Z"

// redactKeep is how many characters survive at each end of a subject id.
const redactKeep = 4

// Record is one audit trail entry.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
	Subject   string    `json:"subject"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Platform  string    `json:"platform,omitempty"`
}

// Auditor writes and reads the audit trail.
type Auditor struct {
	store  store.Store
	logger *slog.Logger
}

// New creates an Auditor over the shared store.
func New(st store.Store, logger *slog.Logger) *Auditor {
	return &Auditor{
		store:  store.Namespaced(st, keyspace),
		logger: logger,
	}
}

// Redact masks the middle of a subject id, keeping the first and last
// four characters. Ids too short to keep anything are fully masked.
func Redact(id string) string {
	if len(id) <= 2*redactKeep {
		return strings.Repeat("*", len(id))
	}

	return id[:redactKeep] + strings.Repeat("*", len(id)-2*redactKeep) + id[len(id)-redactKeep:]
}

// Record appends an audit entry for one vault operation. It never
// returns an error and never panics; store failures are logged at
// debug level and dropped.
func (a *Auditor) Record(ctx context.Context, operation, userID string, success bool, opErr error, platform string) {
	now := time.Now().UTC()

	rec := Record{
		Timestamp: now,
		Operation: operation,
		Subject:   Redact(userID),
		Success:   success,
		Platform:  platform,
	}
	if opErr != nil {
		rec.Error = opErr.Error()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		a.logger.Debug("audit record dropped", slog.String("reason", err.Error()))
		return
	}

	// A uuid suffix keeps keys unique when two operations land on the
	// same nanosecond.
	key := now.Format(keyTimeFormat) + "-" + uuid.NewString()[:8]

	if err := a.store.Set(ctx, key, data, 0); err != nil {
		a.logger.Debug("audit record dropped", slog.String("reason", err.Error()))
	}
}

// Recent returns up to limit audit records, newest first. Records that
// fail to decode are skipped.
func (a *Auditor) Recent(ctx context.Context, limit int) ([]Record, error) {
	entries, err := a.store.List(ctx, "", store.ListOptions{Reverse: true, Limit: limit})
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(entries))

	for _, e := range entries {
		var rec Record
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			a.logger.Debug("skipping undecodable audit record", slog.String("key", e.Key))
			continue
		}

		records = append(records, rec)
	}

	return records, nil
}
