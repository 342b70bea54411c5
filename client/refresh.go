package client

// RefreshHub bridges an external change feed (push channel, poll loop) to
// a single consumer. Notifications carry no payload and coalesce: however
// many remote changes arrive while the consumer is busy, it observes one
// pending signal and re-lists once. This replaces a bare callback racing
// the table state with an explicit single-consumer queue.
type RefreshHub struct {
	ch chan struct{}
}

func NewRefreshHub() *RefreshHub {
	return &RefreshHub{ch: make(chan struct{}, 1)}
}

// Notify signals that remote data may have changed. Never blocks.
func (h *RefreshHub) Notify() {
	select {
	case h.ch <- struct{}{}:
	default:
	}
}

// Pending is the consumer side of the hub.
func (h *RefreshHub) Pending() <-chan struct{} {
	return h.ch
}

// TryConsume drains one pending notification without blocking and reports
// whether there was one.
func (h *RefreshHub) TryConsume() bool {
	select {
	case <-h.ch:
		return true
	default:
		return false
	}
}
