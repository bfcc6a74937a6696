package duties

// Channel signals that validators were added. Signals sent while one is
// already pending are coalesced, so OnValidatorsAdded never blocks.
type Channel struct {
	ch chan struct{}
}

// NewChannel returns a Channel with no pending notification.
func NewChannel() *Channel {
	return &Channel{
		ch: make(chan struct{}, 1),
	}
}

// OnValidatorsAdded records a pending reschedule request.
func (c *Channel) OnValidatorsAdded() {
	select {
	case c.ch <- struct{}{}:
	default:
	}
}

// C returns the receive side of the signal.
func (c *Channel) C() <-chan struct{} {
	return c.ch
}

// Pending drains and reports a pending signal without blocking.
func (c *Channel) Pending() bool {
	select {
	case <-c.ch:
		return true
	default:
		return false
	}
}
