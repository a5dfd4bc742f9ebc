package registry

import (
	"fmt"
	"sync"
)

type subscription struct {
	id       int64
	listener func()
}

// Subscribe registers listener to run after every successful mutation. The
// returned func removes it; calling it more than once is harmless.
func (r *Registry) Subscribe(listener func()) (unsubscribe func()) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	sub := &subscription{id: r.nextSubID, listener: listener}
	r.nextSubID++
	r.subs = append(r.subs, sub)

	var once sync.Once
	return func() {
		once.Do(func() { r.unsubscribe(sub.id) })
	}
}

func (r *Registry) unsubscribe(id int64) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	for i, sub := range r.subs {
		if sub.id == id {
			r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
			return
		}
	}
}

// Listeners returns the number of active subscriptions.
func (r *Registry) Listeners() int {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	return len(r.subs)
}

// notify fans out to a snapshot of the current listeners. It must be called
// without r.mu held so listeners can read the registry.
func (r *Registry) notify(op string) {
	r.subMu.Lock()
	subs := make([]*subscription, len(r.subs))
	copy(subs, r.subs)
	r.subMu.Unlock()

	r.logger.Debug("notifying listeners", "op", op, "listeners", len(subs))
	for _, sub := range subs {
		r.call(op, sub)
	}
}

// call runs one listener, containing a panic so the rest still get notified.
func (r *Registry) call(op string, sub *subscription) {
	defer func() {
		if v := recover(); v != nil {
			err := fmt.Errorf("listener %d panicked: %v", sub.id, v)
			r.logger.Error("session listener failed", "op", op, "error", err)
			r.recorder.ListenerFailed(op)
		}
	}()
	sub.listener()
}
