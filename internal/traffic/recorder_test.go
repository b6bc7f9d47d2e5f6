package traffic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phiphung-web/redirect/internal/storage"
)

type mockWriter struct {
	mu      sync.Mutex
	rows    []storage.EventRow
	err     error
	block   chan struct{} // non-nil: worker parks here before writing
	started chan struct{}
}

func (m *mockWriter) InsertTrafficEvent(_ context.Context, ev storage.EventRow) error {
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, ev)
	return nil
}

func (m *mockWriter) all() []storage.EventRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.EventRow(nil), m.rows...)
}

func TestRecorder_PersistsEvents(t *testing.T) {
	w := &mockWriter{}
	rec := NewRecorder(w, 8)

	id := int64(7)
	rec.Record(Event{
		DomainID:   1,
		CampaignID: &id,
		IP:         "1.2.3.4",
		Country:    "US",
		Device:     "pc",
		OS:         "Windows",
		Browser:    "Chrome",
		UserAgent:  "ua",
		Outcome:    "redirect",
		Meta:       Meta{Referer: "r", RequestURL: "u"},
	})
	rec.Close()

	rows := w.all()
	require.Len(t, rows, 1)
	assert.Equal(t, "redirect", rows[0].Action)
	assert.Equal(t, &id, rows[0].CampaignID)
	assert.Equal(t, "ref=r | url=u", rows[0].Meta)
}

func TestRecorder_DropsOnOverflow(t *testing.T) {
	w := &mockWriter{block: make(chan struct{}), started: make(chan struct{}, 1)}
	rec := NewRecorder(w, 1)

	rec.Record(Event{Outcome: "redirect"}) // picked up by the worker
	<-w.started
	rec.Record(Event{Outcome: "safe_page_inactive"}) // fills the queue
	rec.Record(Event{Outcome: "safe_page_wrong_country"})
	returned := make(chan struct{})
	go func() {
		rec.Record(Event{Outcome: "dropped"}) // queue full: must not block
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full queue")
	}

	close(w.block)
	rec.Close()
	assert.LessOrEqual(t, len(w.all()), 3, "overflow events are dropped, not queued")
}

func TestRecorder_WriteErrorIsIsolated(t *testing.T) {
	w := &mockWriter{err: errors.New("store down")}
	rec := NewRecorder(w, 8)

	// must not panic or surface anywhere
	rec.Record(Event{Outcome: "redirect"})
	rec.Close()
	assert.Empty(t, w.all())
}

func TestRecorder_CloseDrainsQueue(t *testing.T) {
	w := &mockWriter{}
	rec := NewRecorder(w, 16)
	for i := 0; i < 10; i++ {
		rec.Record(Event{Outcome: "redirect"})
	}
	rec.Close()
	assert.Len(t, w.all(), 10)
}
