package session

import "sync"

// MemoryPublisher stores events in-memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// States extracts the state values from published session_state events, in
// order. Convenience for asserting lifecycle sequences.
func (p *MemoryPublisher) States() []string {
	var out []string
	for _, e := range p.Events() {
		if e.Name != "session_state" {
			continue
		}
		if s, ok := e.Fields["state"].(string); ok {
			out = append(out, s)
		}
	}
	return out
}
