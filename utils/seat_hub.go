package utils

import "sync"

// SeatUpdate is pushed to live subscribers whenever an event's registrations change.
type SeatUpdate struct {
	EventID         uint   `json:"eventId"`
	Action          string `json:"action"`
	RegisteredCount int    `json:"registeredCount"`
	MaxSeats        int    `json:"maxSeats"`
	AvailableSeats  int    `json:"availableSeats"`
	IsFull          bool   `json:"isFull"`
}

// SeatHub fans seat updates out to subscribers of a single event.
type SeatHub struct {
	mu   sync.RWMutex
	subs map[uint]map[chan SeatUpdate]struct{}
}

func NewSeatHub() *SeatHub {
	return &SeatHub{subs: make(map[uint]map[chan SeatUpdate]struct{})}
}

// Subscribe registers a buffered channel for eventID. The returned func
// removes the subscription and closes the channel.
func (h *SeatHub) Subscribe(eventID uint) (<-chan SeatUpdate, func()) {
	ch := make(chan SeatUpdate, 8)

	h.mu.Lock()
	if h.subs[eventID] == nil {
		h.subs[eventID] = make(map[chan SeatUpdate]struct{})
	}
	h.subs[eventID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[eventID], ch)
			if len(h.subs[eventID]) == 0 {
				delete(h.subs, eventID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers update without blocking; slow subscribers miss it.
func (h *SeatHub) Publish(update SeatUpdate) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[update.EventID] {
		select {
		case ch <- update:
		default:
		}
	}
}

// Subscribers reports how many listeners eventID currently has.
func (h *SeatHub) Subscribers(eventID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[eventID])
}
