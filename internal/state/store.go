package state

import (
	"errors"
	"sync"
	"time"

	"github.com/speedwagon-io/sensorwatch/internal/model"
)

type Stream string

const (
	StreamReadings   Stream = "readings"
	StreamSummary    Stream = "summary"
	StreamPrediction Stream = "prediction"
)

var Streams = []Stream{StreamReadings, StreamSummary, StreamPrediction}

// Policy decides what a failed fetch does to the stream's current value.
type Policy string

const (
	PolicyRetain Policy = "retain"
	PolicyReset  Policy = "reset"
)

var ErrRowNotFound = errors.New("row not found")

type StreamStatus struct {
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at,omitempty"`
	Failures    int64     `json:"failures"`
	// Healthy reports whether the most recent completion succeeded.
	Healthy bool `json:"healthy"`
}

// Snapshot is a point-in-time copy of the store. Callers must not modify
// the slices it carries.
type Snapshot struct {
	Readings          []model.Reading         `json:"readings"`
	Summary           []model.SummaryEntry    `json:"summary"`
	Prediction        *model.Prediction       `json:"prediction"`
	SelectedID        string                  `json:"selected_id,omitempty"`
	LoadingPrediction bool                    `json:"loading_prediction"`
	Streams           map[Stream]StreamStatus `json:"streams"`
	Version           uint64                  `json:"version"`
}

// Store holds the latest successful value of each stream.
//
// Every fetch takes a sequence number from Begin. Completions older than the
// last one applied for the same stream are dropped, so the most recently
// issued fetch wins regardless of arrival order.
type Store struct {
	mu     sync.RWMutex
	policy Policy
	now    func() time.Time

	readings   []model.Reading
	summary    []model.SummaryEntry
	prediction *model.Prediction
	selectedID string
	loading    bool

	issued  map[Stream]uint64
	applied map[Stream]uint64
	status  map[Stream]*StreamStatus
	version uint64

	subs map[chan struct{}]struct{}
}

func New(policy Policy) *Store {
	if policy != PolicyReset {
		policy = PolicyRetain
	}

	s := &Store{
		policy:  policy,
		now:     time.Now,
		loading: true,
		issued:  make(map[Stream]uint64, len(Streams)),
		applied: make(map[Stream]uint64, len(Streams)),
		status:  make(map[Stream]*StreamStatus, len(Streams)),
		subs:    make(map[chan struct{}]struct{}),
	}
	for _, st := range Streams {
		s.status[st] = &StreamStatus{}
	}
	return s
}

func (s *Store) Policy() Policy {
	return s.policy
}

// Begin registers a new fetch for stream and returns its sequence number.
func (s *Store) Begin(stream Stream) uint64 {
	s.mu.Lock()
	s.issued[stream]++
	seq := s.issued[stream]
	changed := false
	if stream == StreamPrediction && !s.loading {
		s.loading = true
		changed = true
	}
	if changed {
		s.version++
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return seq
}

// accept must be called with mu held.
func (s *Store) accept(stream Stream, seq uint64) bool {
	if seq <= s.applied[stream] {
		return false
	}
	s.applied[stream] = seq
	return true
}

// finish must be called with mu held.
func (s *Store) finish(stream Stream, seq uint64) {
	if stream == StreamPrediction && seq == s.issued[stream] {
		s.loading = false
	}
}

func (s *Store) succeed(stream Stream) {
	st := s.status[stream]
	st.LastSuccess = s.now()
	st.Healthy = true
}

func (s *Store) ApplyReadings(seq uint64, readings []model.Reading) bool {
	return s.apply(StreamReadings, seq, func() {
		s.readings = readings
	})
}

func (s *Store) ApplySummary(seq uint64, entries []model.SummaryEntry) bool {
	return s.apply(StreamSummary, seq, func() {
		s.summary = entries
	})
}

func (s *Store) ApplyPrediction(seq uint64, p *model.Prediction) bool {
	return s.apply(StreamPrediction, seq, func() {
		s.prediction = p
	})
}

// NoData completes a fetch that succeeded but carried nothing to show.
// The stream keeps its value.
func (s *Store) NoData(stream Stream, seq uint64) bool {
	return s.apply(stream, seq, nil)
}

func (s *Store) apply(stream Stream, seq uint64, set func()) bool {
	s.mu.Lock()
	ok := s.accept(stream, seq)
	if ok {
		if set != nil {
			set()
		}
		s.succeed(stream)
		s.finish(stream, seq)
		s.version++
	}
	s.mu.Unlock()

	if ok {
		s.notify()
	}
	return ok
}

// Fail records a failed fetch. Under PolicyReset the stream is cleared.
// Stale failures are counted but never touch the value.
func (s *Store) Fail(stream Stream, seq uint64, err error) bool {
	s.mu.Lock()
	st := s.status[stream]
	st.Failures++
	st.LastErrorAt = s.now()
	if err != nil {
		st.LastError = err.Error()
	}

	ok := s.accept(stream, seq)
	if ok {
		st.Healthy = false
		if s.policy == PolicyReset {
			s.reset(stream)
		}
		s.finish(stream, seq)
	}
	s.version++
	s.mu.Unlock()

	s.notify()
	return ok
}

func (s *Store) reset(stream Stream) {
	switch stream {
	case StreamReadings:
		s.readings = nil
	case StreamSummary:
		s.summary = nil
	case StreamPrediction:
		s.prediction = nil
	}
}

// Restore seeds readings from persisted history without touching sequencing.
// It is a no-op once any readings fetch has been applied.
func (s *Store) Restore(readings []model.Reading) bool {
	s.mu.Lock()
	ok := s.applied[StreamReadings] == 0 && len(s.readings) == 0 && len(readings) > 0
	if ok {
		s.readings = readings
		s.version++
	}
	s.mu.Unlock()

	if ok {
		s.notify()
	}
	return ok
}

// Select marks the row with the given id active. Selecting the active row
// again is a no-op.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	if s.selectedID == id {
		s.mu.Unlock()
		return nil
	}

	found := false
	for i := range s.readings {
		if s.readings[i].ID == id {
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return ErrRowNotFound
	}

	s.selectedID = id
	s.version++
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Readings:          append([]model.Reading(nil), s.readings...),
		Summary:           append([]model.SummaryEntry(nil), s.summary...),
		Prediction:        s.prediction,
		SelectedID:        s.selectedID,
		LoadingPrediction: s.loading,
		Streams:           make(map[Stream]StreamStatus, len(s.status)),
		Version:           s.version,
	}
	for k, v := range s.status {
		snap.Streams[k] = *v
	}
	return snap
}

// Subscribe returns a channel that receives a signal after state changes.
// Signals coalesce: a slow reader sees one pending signal, not a backlog.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
