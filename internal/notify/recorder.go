package notify

import (
	"context"
	"sync"

	"dadcircles/pkg/domain"
)

// Recorder is an in-memory Dispatcher for tests. It records every delivery
// and can be told to fail for specific users.
type Recorder struct {
	mu       sync.Mutex
	sent     []Introduction
	failures map[domain.UserID]error
}

func NewRecorder() *Recorder {
	return &Recorder{failures: make(map[domain.UserID]error)}
}

// FailFor makes SendIntroduction return err for the given user. A nil err
// clears the injected failure.
func (r *Recorder) FailFor(userID domain.UserID, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, userID)
		return
	}
	r.failures[userID] = err
}

func (r *Recorder) SendIntroduction(_ context.Context, intro Introduction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failures[intro.UserID]; ok {
		return err
	}
	r.sent = append(r.sent, intro)
	return nil
}

// Sent returns a copy of all recorded deliveries.
func (r *Recorder) Sent() []Introduction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Introduction, len(r.sent))
	copy(out, r.sent)
	return out
}

// SentTo reports whether a delivery for the given user was recorded.
func (r *Recorder) SentTo(userID domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, intro := range r.sent {
		if intro.UserID == userID {
			return true
		}
	}
	return false
}
