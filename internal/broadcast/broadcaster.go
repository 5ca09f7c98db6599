package broadcast

import (
	"context"
	"log"
	"sync"

	"github.com/ptrckSTL/BoomOrganized/internal/models"
	"github.com/ptrckSTL/BoomOrganized/internal/repository"
)

// Broadcaster is the process-wide observable combining the job runner's
// last broadcast state with the recipient store's live counts. It is an
// explicitly constructed object owned by the composition root; tests
// build isolated instances.
type Broadcaster struct {
	mu     sync.Mutex
	state  WorkState
	counts models.RecipientCounts
	last   Status
	subs   map[uint64]chan Status
	seq    uint64
}

// New creates a broadcaster in the Uninitiated state and hooks it into
// the store's change stream so counts update push-based, never polled.
func New(store repository.RecipientStore) *Broadcaster {
	b := &Broadcaster{
		state: Uninitiated{},
		subs:  map[uint64]chan Status{},
	}
	b.last = Status{State: b.state}
	if store != nil {
		store.AddListener(func() { b.refreshCounts(store) })
	}
	return b
}

func (b *Broadcaster) refreshCounts(store repository.RecipientStore) {
	counts, err := store.Counts(context.Background())
	if err != nil {
		log.Printf("Failed to refresh recipient counts: %v", err)
		return
	}
	b.mu.Lock()
	b.counts = counts
	b.publishLocked()
	b.mu.Unlock()
}

// SetLoading marks the gap before the first send
func (b *Broadcaster) SetLoading() {
	b.set(Loading{})
}

// SetExecuting broadcasts the recipient currently being processed
func (b *Broadcaster) SetExecuting(contact string) {
	b.set(Executing{Contact: contact})
}

// SetPaused marks an explicit user cancellation
func (b *Broadcaster) SetPaused() {
	b.set(Paused{})
}

// SetComplete snapshots the current counts into the terminal state
func (b *Broadcaster) SetComplete() {
	b.mu.Lock()
	b.state = Complete{Counts: b.counts}
	b.publishLocked()
	b.mu.Unlock()
}

// Reset returns to Uninitiated with zero counts. This is the only
// legitimate zeroing point, invoked when the user acknowledges a
// completed job, so a stale Complete banner cannot reappear on the next
// cold start.
func (b *Broadcaster) Reset() {
	b.mu.Lock()
	b.state = Uninitiated{}
	b.counts = models.RecipientCounts{}
	b.publishLocked()
	b.mu.Unlock()
}

func (b *Broadcaster) set(state WorkState) {
	b.mu.Lock()
	b.state = state
	b.publishLocked()
	b.mu.Unlock()
}

// Status returns the current combined view
func (b *Broadcaster) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{State: b.state, Counts: b.counts}
}

// Subscribe returns a buffered status stream and its unsubscribe
// function. Delivery is non-blocking; slow subscribers drop updates and
// catch up on the next emission.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Status, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Status, buffer)

	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// publishLocked emits the combined view to all subscribers unless it is
// structurally identical to the previous emission.
func (b *Broadcaster) publishLocked() {
	status := Status{State: b.state, Counts: b.counts}
	if status.Equal(b.last) {
		return
	}
	b.last = status

	for _, ch := range b.subs {
		select {
		case ch <- status:
		default:
		}
	}
}
