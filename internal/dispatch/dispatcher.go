// Package dispatch mints probe tasks, correlates the asynchronous replies,
// and fans a single task out to the whole fleet.
package dispatch

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minescope/minescope/internal/domain"
	"github.com/minescope/minescope/internal/logger"
	"github.com/minescope/minescope/internal/metrics"
	"github.com/minescope/minescope/internal/probes"
)

// DefaultTaskTimeout is how long a probe gets to answer one task.
const DefaultTaskTimeout = 6 * time.Second

// TimeoutError is the synthesized error string for tasks that never got a
// reply.
const TimeoutError = "Task timeout"

type waiter struct {
	ch    chan domain.TaskResult // buffered; resolver never blocks
	timer *time.Timer
}

// Dispatcher owns the waiter table keyed by task ID. The table is the single
// source of truth for pending tasks: both the reply path and the timeout
// path delete the entry before resolving, so each task resolves exactly
// once and late replies fall through.
type Dispatcher struct {
	registry  *probes.Registry
	timeout   time.Duration
	log       logger.Logger
	collector *metrics.Collector

	mu      sync.Mutex
	waiters map[string]*waiter
}

// New creates a dispatcher over the given registry. collector may be nil.
func New(registry *probes.Registry, timeout time.Duration, log logger.Logger, collector *metrics.Collector) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	return &Dispatcher{
		registry:  registry,
		timeout:   timeout,
		log:       log,
		collector: collector,
		waiters:   make(map[string]*waiter),
	}
}

// Send transmits one ping task to the named probe and blocks until the
// matching reply arrives or the task times out. Every failure mode returns a
// synthesized TaskResult; Send never returns an error.
func (d *Dispatcher) Send(probeID, target string, port uint16, protocol string) domain.TaskResult {
	sess, ok := d.registry.Get(probeID)
	if !ok {
		return domain.TaskResult{Success: false, Error: "Probe " + probeID + " not found"}
	}

	task := domain.Task{
		ID:       uuid.NewString(),
		Type:     "ping",
		Target:   target,
		Port:     port,
		Protocol: protocol,
	}

	w := &waiter{ch: make(chan domain.TaskResult, 1)}
	d.mu.Lock()
	d.waiters[task.ID] = w
	w.timer = time.AfterFunc(d.timeout, func() { d.expire(task.ID) })
	d.mu.Unlock()

	if d.collector != nil {
		d.collector.RecordTaskDispatched()
	}

	if err := sess.SendTask(task); err != nil {
		d.log.Warn("failed to write task to probe",
			logger.String("probe", probeID),
			logger.Error(err))
		if d.take(task.ID) != nil {
			return domain.TaskResult{ID: task.ID, Success: false, Error: err.Error()}
		}
		// The timeout raced the failed write and already resolved the
		// waiter; drain its result.
		return <-w.ch
	}

	return <-w.ch
}

// HandleResult resolves the waiter for a reply frame. Replies whose task is
// no longer pending are dropped.
func (d *Dispatcher) HandleResult(result domain.TaskResult) {
	w := d.take(result.ID)
	if w == nil {
		d.log.Debugf("dropping late reply for task %s", result.ID)
		return
	}
	w.ch <- result
}

// expire resolves a waiter with the timeout result.
func (d *Dispatcher) expire(id string) {
	w := d.take(id)
	if w == nil {
		return
	}
	if d.collector != nil {
		d.collector.RecordTaskTimeout()
	}
	w.ch <- domain.TaskResult{ID: id, Success: false, Error: TimeoutError}
}

// take removes and returns the waiter for id, stopping its timer. The
// delete happens under the lock, making reply and timeout mutually
// exclusive.
func (d *Dispatcher) take(id string) *waiter {
	d.mu.Lock()
	w, ok := d.waiters[id]
	if ok {
		delete(d.waiters, id)
	}
	d.mu.Unlock()
	if !ok {
		return nil
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	return w
}

// Pending returns the number of outstanding tasks.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.waiters)
}

// Broadcast sends the same ping task to every connected probe concurrently
// and waits for all of them to settle. The returned map has exactly one
// entry per probe that was connected at snapshot time; an empty fleet
// yields an empty map.
func (d *Dispatcher) Broadcast(target string, port uint16, protocol string) map[string]domain.TaskResult {
	snapshot := d.registry.Snapshot()
	results := make(map[string]domain.TaskResult, len(snapshot))
	if len(snapshot) == 0 {
		return results
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for id := range snapshot {
		wg.Add(1)
		go func(probeID string) {
			defer wg.Done()
			res := d.Send(probeID, target, port, protocol)
			mu.Lock()
			results[probeID] = res
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return results
}
