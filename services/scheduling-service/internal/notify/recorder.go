package notify

import (
	"context"
	"errors"
	"sync"
)

var ErrInjected = errors.New("injected send failure")

type Sent struct {
	To     Target
	Kind   TemplateKind
	Fields map[string]string
}

// Recorder is an in-memory Sender for tests and local runs. Sends to profile ids in FailFor
// return ErrInjected.
type Recorder struct {
	mu      sync.Mutex
	sent    []Sent
	failFor map[string]bool
}

func NewRecorder() *Recorder {
	return &Recorder{failFor: map[string]bool{}}
}

func (r *Recorder) FailFor(profileIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range profileIDs {
		r.failFor[id] = true
	}
}

func (r *Recorder) Send(_ context.Context, to Target, kind TemplateKind, fields map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[to.ProfileID] {
		return ErrInjected
	}
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	r.sent = append(r.sent, Sent{To: to, Kind: kind, Fields: copied})
	return nil
}

func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

func (r *Recorder) Count(kind TemplateKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}
