package dedup

import (
	gosync "sync"
)

// ScanPhase is a state of the scan pipeline.
type ScanPhase int

const (
	PhaseIdle ScanPhase = iota
	PhaseEnumerating
	PhaseSizeFiltering
	PhaseQuickHashing
	PhaseFullHashing
	PhaseGrouping
	PhaseCompleted
	PhaseCancelled
	PhaseFailed
)

func (p ScanPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseEnumerating:
		return "enumerating"
	case PhaseSizeFiltering:
		return "size_filtering"
	case PhaseQuickHashing:
		return "quick_hashing"
	case PhaseFullHashing:
		return "full_hashing"
	case PhaseGrouping:
		return "grouping"
	case PhaseCompleted:
		return "completed"
	case PhaseCancelled:
		return "cancelled"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// ScanEventType distinguishes the events a scan emits.
type ScanEventType string

const (
	EventProgress  ScanEventType = "progress"
	EventFileError ScanEventType = "file_error"
	EventFinished  ScanEventType = "finished"
)

// ScanEvent is a status update published to scan subscribers.
type ScanEvent struct {
	Type      ScanEventType     `json:"type"`
	Phase     ScanPhase         `json:"phase"`
	Processed int               `json:"processed"`
	Total     int               `json:"total"`
	Path      string            `json:"path,omitempty"`   // file_error only
	Reason    string            `json:"reason,omitempty"` // file_error only
	Groups    []*DuplicateGroup `json:"groups,omitempty"` // finished only
}

// EventBus broadcasts ScanEvents to all subscribers. The scanner is the
// only publisher; callers consume their channel and unsubscribe when done.
type EventBus struct {
	mu      gosync.RWMutex
	clients map[chan ScanEvent]struct{}
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{clients: make(map[chan ScanEvent]struct{})}
}

// Subscribe registers a new client and returns its buffered event channel.
func (b *EventBus) Subscribe() chan ScanEvent {
	ch := make(chan ScanEvent, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *EventBus) Unsubscribe(ch chan ScanEvent) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
	close(ch)
}

// Publish sends an event to all subscribers. Slow clients are skipped
// rather than blocking the scan.
func (b *EventBus) Publish(event ScanEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- event:
		default:
		}
	}
}
