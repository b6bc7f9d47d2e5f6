package traffic

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/phiphung-web/redirect/internal/observability"
	"github.com/phiphung-web/redirect/internal/storage"
)

// Event is one terminal pipeline outcome to be persisted.
type Event struct {
	DomainID   int64
	CampaignID *int64
	IP         string
	Country    string
	City       string
	Device     string
	OS         string
	Browser    string
	UserAgent  string
	Outcome    string
	Meta       Meta
}

// EventWriter is the slice of the store the recorder needs.
type EventWriter interface {
	InsertTrafficEvent(ctx context.Context, ev storage.EventRow) error
}

// Recorder persists events off the request path. Record never blocks: a
// full queue drops the event and counts the drop. A failed insert is
// logged and counted, never retried.
type Recorder struct {
	ch   chan Event
	wg   sync.WaitGroup
	once sync.Once
}

// NewRecorder starts the background worker. queueSize bounds the number of
// events waiting for the store.
func NewRecorder(st EventWriter, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 1024
	}
	r := &Recorder{ch: make(chan Event, queueSize)}
	r.wg.Add(1)
	go r.run(st)
	return r
}

// Record enqueues one event, fire-and-forget.
func (r *Recorder) Record(ev Event) {
	select {
	case r.ch <- ev:
	default:
		observability.TrafficLogDropped.Inc()
		log.Warn().Str("outcome", ev.Outcome).Msg("traffic log queue full; event dropped")
	}
}

// Close stops accepting events, drains the queue, and waits for the worker.
func (r *Recorder) Close() {
	r.once.Do(func() { close(r.ch) })
	r.wg.Wait()
}

func (r *Recorder) run(st EventWriter) {
	defer r.wg.Done()
	for ev := range r.ch {
		row := storage.EventRow{
			DomainID:   ev.DomainID,
			CampaignID: ev.CampaignID,
			IP:         ev.IP,
			Country:    ev.Country,
			City:       ev.City,
			Device:     ev.Device,
			OS:         ev.OS,
			Browser:    ev.Browser,
			Action:     ev.Outcome,
			Meta:       ev.Meta.Encode(),
			UserAgent:  ev.UserAgent,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := st.InsertTrafficEvent(ctx, row); err != nil {
			observability.TrafficLogErrors.Inc()
			log.Error().Err(err).Str("outcome", ev.Outcome).Msg("traffic log write failed")
		}
		cancel()
	}
}
