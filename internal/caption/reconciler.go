package caption

import (
	"sync"
	"sync/atomic"
)

// Reconciler owns the authoritative caption list. All mutations flow through
// a single-consumer inbox and are processed strictly in arrival order, so
// recognition events, translation resolutions, and sweep ticks interleave
// without locking games. Readers get copies via Current.
type Reconciler struct {
	inbox   chan func()
	done    chan struct{}
	closed  atomic.Bool
	closeMu sync.RWMutex

	mu       sync.RWMutex
	list     []Caption
	errorMsg string
	subs     []chan struct{}
}

func NewReconciler() *Reconciler {
	r := &Reconciler{
		inbox: make(chan func(), 64),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Reconciler) run() {
	defer close(r.done)
	for fn := range r.inbox {
		fn()
	}
}

// Close shuts the inbox down; pending commands drain before Close returns.
// The write lock excludes in-flight enqueues so the channel never closes
// under a sender.
func (r *Reconciler) Close() {
	r.closeMu.Lock()
	first := r.closed.CompareAndSwap(false, true)
	if first {
		close(r.inbox)
	}
	r.closeMu.Unlock()
	<-r.done
}

func (r *Reconciler) enqueue(fn func()) {
	r.closeMu.RLock()
	defer r.closeMu.RUnlock()
	if r.closed.Load() {
		return
	}
	select {
	case r.inbox <- fn:
	case <-r.done:
	}
}

// ApplyEvent merges a recognition event into the list. A successful event
// implies the recognizer recovered, so any outstanding error state clears.
func (r *Reconciler) ApplyEvent(evt Event) {
	r.enqueue(func() {
		r.mu.Lock()
		r.list = Apply(r.list, evt)
		r.errorMsg = ""
		r.mu.Unlock()
		r.notify()
	})
}

// AttachTranslation patches the caption with the given id in place. Captions
// finalize before their translation resolves, and translations may resolve
// after the record left the window entirely; an unknown id is a no-op.
func (r *Reconciler) AttachTranslation(id, text string) {
	r.enqueue(func() {
		r.mu.Lock()
		patched := false
		for i := range r.list {
			if r.list[i].ID == id {
				r.list[i].TranslatedText = text
				patched = true
				break
			}
		}
		r.mu.Unlock()
		if patched {
			r.notify()
		}
	})
}

// DiscardInterim drops any pending interim record. Stopping recognition
// mid-utterance must not promote a partial hypothesis to final.
func (r *Reconciler) DiscardInterim() {
	r.enqueue(func() {
		r.mu.Lock()
		kept := r.list[:0]
		changed := false
		for _, c := range r.list {
			if c.IsFinal {
				kept = append(kept, c)
			} else {
				changed = true
			}
		}
		r.list = kept
		r.mu.Unlock()
		if changed {
			r.notify()
		}
	})
}

// Clear drops the whole list at a session boundary.
func (r *Reconciler) Clear() {
	r.enqueue(func() {
		r.mu.Lock()
		r.list = nil
		r.errorMsg = ""
		r.mu.Unlock()
		r.notify()
	})
}

// SetError records a recognizer failure for the display layer to surface.
func (r *Reconciler) SetError(msg string) {
	r.enqueue(func() {
		r.mu.Lock()
		r.errorMsg = msg
		r.mu.Unlock()
		r.notify()
	})
}

// ClearError drops the surfaced error, used by the 10s auto-dismiss.
func (r *Reconciler) ClearError() {
	r.enqueue(func() {
		r.mu.Lock()
		changed := r.errorMsg != ""
		r.errorMsg = ""
		r.mu.Unlock()
		if changed {
			r.notify()
		}
	})
}

// Current returns a copy of the authoritative list.
func (r *Reconciler) Current() []Caption {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Caption, len(r.list))
	copy(out, r.list)
	return out
}

// Error returns the outstanding recognizer error message, if any.
func (r *Reconciler) Error() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.errorMsg
}

// Subscribe returns a channel that receives a tick after every state change.
// Ticks coalesce; subscribers re-read Current rather than consuming deltas.
func (r *Reconciler) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return ch
}

func (r *Reconciler) notify() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
