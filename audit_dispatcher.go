package goOTC

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
)

// auditDispatcher decouples engine calls from sink latency. A nil
// dispatcher is valid and drops everything.
type auditDispatcher struct {
	dropIfFull bool
	sink       AuditSink
	queue      chan AuditEvent
	stop       chan struct{}
	wg         sync.WaitGroup
	dropped    atomic.Uint64
	closed     atomic.Bool
	closeOnce  sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		dropIfFull: cfg.DropIfFull,
		sink:       sink,
		queue:      make(chan AuditEvent, cfg.BufferSize),
		stop:       make(chan struct{}),
	}

	d.wg.Add(1)
	go d.loop()

	return d
}

func (d *auditDispatcher) loop() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

func (d *auditDispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		default:
			return
		}
	}
}

// deliver hands one event to the sink. A panicking sink loses that event
// only; the loop keeps running so blocked emitters are not stranded.
func (d *auditDispatcher) deliver(event AuditEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.dropped.Add(1)
			log.Printf("goOTC: audit sink panic on %s: %v", event.EventType, r)
		}
	}()
	d.sink.Emit(context.Background(), event)
}

// Emit queues event. With DropIfFull a full queue drops and counts the
// event; otherwise Emit blocks until there is room, ctx ends, or the
// dispatcher closes.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
	}
}

// Close stops accepting events, flushes the queue and waits for the sink.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.wg.Wait()
	})
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
