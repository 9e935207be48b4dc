package trace

import (
	"fmt"
	"sync"
	"time"
)

// Heartbeat emits a periodic event saying how many events were traced since
// the previous beat. A run of idle beats inside an open generation span
// points at a stuck stage.
type Heartbeat struct {
	tracer Tracer
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// StartHeartbeat starts beating every interval. It returns nil when t is
// disabled or interval is not positive; Stop on nil is a no-op.
func StartHeartbeat(t Tracer, interval time.Duration) *Heartbeat {
	if t == nil || !t.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{tracer: t, stop: make(chan struct{})}
	h.wg.Add(1)
	go h.run(interval)
	return h
}

func (h *Heartbeat) run(interval time.Duration) {
	defer h.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	beat := 0
	seen := lastSeq()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			beat++
			now := lastSeq()
			detail := "idle"
			if now > seen {
				detail = fmt.Sprintf("+%d events", now-seen)
			}
			h.tracer.Emit(&Event{
				Time:   time.Now(),
				Seq:    NextSeq(),
				Kind:   KindHeartbeat,
				Scope:  ScopeSession,
				Name:   fmt.Sprintf("heartbeat #%d", beat),
				Detail: detail,
			})
			// the heartbeat itself does not count as progress
			seen = lastSeq()
		}
	}
}

// Stop ends the heartbeat and waits for the goroutine to exit.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	h.wg.Wait()
}
