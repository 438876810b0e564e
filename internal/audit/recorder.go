// Package audit builds and appends work order history events.
//
// History is append-only: Append never mutates the slice it was given and
// never drops or reorders existing events. Persisting the result is the
// caller's job.
package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/spec-kit/fleet-workorders/internal/domain"
)

// Recorder stamps and appends history events.
type Recorder struct {
	clock clockwork.Clock
	newID func() string
}

// NewRecorder builds a recorder. A nil clock uses the real clock.
func NewRecorder(clock clockwork.Clock) *Recorder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Recorder{clock: clock, newID: uuid.NewString}
}

// Touch returns a write timestamp strictly later than prev. Timestamps are
// truncated to microseconds to match storage precision.
func (r *Recorder) Touch(prev time.Time) time.Time {
	now := r.clock.Now().UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

// Append returns a copy of wo with ev appended and UpdatedAt refreshed.
func (r *Recorder) Append(wo domain.WorkOrder, ev domain.HistoryEvent) domain.WorkOrder {
	now := r.Touch(wo.UpdatedAt)
	if ev.ID == "" {
		ev.ID = r.newID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = now
	}

	history := make([]domain.HistoryEvent, len(wo.History), len(wo.History)+1)
	copy(history, wo.History)
	wo.History = append(history, ev)
	wo.UpdatedAt = now
	return wo
}

// Creation builds the event every work order starts with.
func Creation(status domain.WorkOrderStatus, actor string) domain.HistoryEvent {
	return domain.HistoryEvent{
		Kind:          domain.HistoryCreation,
		From:          "",
		To:            string(status),
		StatusAtEvent: status,
		Note:          "Work order created",
		Actor:         actor,
	}
}

// StatusChange builds the event for a plain status update. An empty note is
// replaced by a generated sentence naming both statuses.
func StatusChange(from, to domain.WorkOrderStatus, note, actor string) domain.HistoryEvent {
	if strings.TrimSpace(note) == "" {
		note = StatusChangeNote(from, to)
	}
	return domain.HistoryEvent{
		Kind:          domain.HistoryStatusChange,
		From:          string(from),
		To:            string(to),
		StatusAtEvent: to,
		Note:          note,
		Actor:         actor,
	}
}

// StatusChangeNote is the generated note for a status update.
func StatusChangeNote(from, to domain.WorkOrderStatus) string {
	return fmt.Sprintf("Status changed from %s to %s", from, to)
}

// Custody builds a custody handoff event.
func Custody(kind domain.HistoryKind, from, to string, status domain.WorkOrderStatus, note, actor string) domain.HistoryEvent {
	return domain.HistoryEvent{
		Kind:          kind,
		From:          from,
		To:            to,
		StatusAtEvent: status,
		Note:          strings.TrimSpace(note),
		Actor:         actor,
	}
}

// Note builds a free-text note event tagged with the author's sector.
func Note(sector string, status domain.WorkOrderStatus, text, actor string) domain.HistoryEvent {
	return domain.HistoryEvent{
		Kind:          domain.HistoryNote,
		From:          sector,
		To:            sector,
		StatusAtEvent: status,
		Note:          strings.TrimSpace(text),
		Actor:         actor,
	}
}

// IsPrefix reports whether prev is an index-wise prefix of next, i.e. next
// only appends to prev.
func IsPrefix(prev, next []domain.HistoryEvent) bool {
	if len(next) < len(prev) {
		return false
	}
	for i := range prev {
		if prev[i] != next[i] {
			return false
		}
	}
	return true
}
