package trace

import (
	"fmt"
	"sync"
	"time"
)

// Heartbeat emits periodic events while an exchange is pending. Heartbeats
// that keep arriving without a matching span end point at a hung
// interpreter.
type Heartbeat struct {
	tracer   Tracer
	interval time.Duration
	parent   uint64
	stopCh   chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// StartHeartbeat starts the heartbeat goroutine. It returns nil when the
// tracer is disabled or interval is not positive; Stop accepts nil.
func StartHeartbeat(tracer Tracer, interval time.Duration, parent uint64) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		tracer:   tracer,
		interval: interval,
		parent:   parent,
		stopCh:   make(chan struct{}),
	}
	h.wg.Add(1)
	go h.run()
	return h
}

func (h *Heartbeat) run() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	start := time.Now()
	var n uint64
	for {
		select {
		case <-ticker.C:
			n++
			h.tracer.Emit(&Event{
				Time:     time.Now(),
				Kind:     KindHeartbeat,
				Scope:    ScopeSession,
				ParentID: h.parent,
				Name:     "heartbeat",
				Detail:   fmt.Sprintf("#%d waiting %s", n, time.Since(start).Round(time.Millisecond)),
			})
		case <-h.stopCh:
			return
		}
	}
}

// Stop stops the goroutine and waits for it to exit.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stopCh) })
	h.wg.Wait()
}
