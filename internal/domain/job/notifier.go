// Package job holds job-scoped primitives shared by the log sink and the
// streaming endpoints.
package job

import "sync"

// Notifier wakes readers that are waiting for more of a job's log.
type Notifier interface {
	// Subscribe returns a cancel func and a channel that receives a value
	// whenever jobID gets new output. Cancel closes the channel.
	Subscribe(jobID string) (func(), <-chan struct{})
	Broadcast(jobID string)
	StopAll()
}

// subscription owns one wake-up channel. The channel has a buffer of one, so
// signals coalesce while the reader is busy.
type subscription struct {
	wake chan struct{}
	once sync.Once
}

func (s *subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// stop drops any pending signal so a reader sees the close right away.
func (s *subscription) stop() {
	s.once.Do(func() {
		select {
		case <-s.wake:
		default:
		}
		close(s.wake)
	})
}

// DefaultNotifier is an in-memory Notifier. Broadcast never blocks.
type DefaultNotifier struct {
	mu    sync.Mutex
	byJob map[string]map[*subscription]struct{}
}

func NewNotifier() *DefaultNotifier {
	return &DefaultNotifier{byJob: make(map[string]map[*subscription]struct{})}
}

// Subscribe implements Notifier. The returned cancel func is idempotent.
func (n *DefaultNotifier) Subscribe(jobID string) (func(), <-chan struct{}) {
	sub := &subscription{wake: make(chan struct{}, 1)}

	n.mu.Lock()
	set, ok := n.byJob[jobID]
	if !ok {
		set = make(map[*subscription]struct{})
		n.byJob[jobID] = set
	}
	set[sub] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		n.remove(jobID, sub)
		n.mu.Unlock()
		sub.stop()
	}
	return cancel, sub.wake
}

// remove must be called with mu held.
func (n *DefaultNotifier) remove(jobID string, sub *subscription) {
	set := n.byJob[jobID]
	delete(set, sub)
	if len(set) == 0 {
		delete(n.byJob, jobID)
	}
}

func (n *DefaultNotifier) Broadcast(jobID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for sub := range n.byJob[jobID] {
		sub.signal()
	}
}

// StopAll closes every open subscription. Later cancels are no-ops.
func (n *DefaultNotifier) StopAll() {
	n.mu.Lock()
	all := n.byJob
	n.byJob = make(map[string]map[*subscription]struct{})
	n.mu.Unlock()

	for _, set := range all {
		for sub := range set {
			sub.stop()
		}
	}
}

// Subscribers reports how many subscriptions are open for jobID.
func (n *DefaultNotifier) Subscribers(jobID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.byJob[jobID])
}

var _ Notifier = (*DefaultNotifier)(nil)
