package tracing

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asecurityteam/rolling"
)

// Collector is the bounded hand-off queue between the tracing core and
// the external export pipeline. Submit is non-blocking: when the queue
// is full the incoming span is dropped and counted instead of blocking
// the caller. The exporter drains completed spans with Export.
//
// Collector is safe for concurrent use by multiple goroutines.
type Collector struct {
	spans   []*Span
	spansCh chan *Span
	stopCh  chan struct{}
	done    chan struct{}

	dropped atomic.Int64
	closed  atomic.Bool

	mu sync.Mutex

	// window tracks recent span durations for rough health stats.
	window   *rolling.TimePolicy
	windowMu sync.Mutex
}

// CollectorStats is a point-in-time view of the collector.
type CollectorStats struct {
	// Buffered is the number of spans awaiting export.
	Buffered int

	// Dropped is the total number of spans rejected on a full queue.
	Dropped int64

	// AvgDuration is the rolling average duration of recently
	// submitted spans.
	AvgDuration time.Duration
}

// NewCollector creates a Collector whose queue holds up to bufferSize
// spans.
func NewCollector(bufferSize int) *Collector {
	c := &Collector{
		spans:   make([]*Span, 0, 8),
		spansCh: make(chan *Span, bufferSize),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
		window:  rolling.NewTimePolicy(rolling.NewWindow(1000), 10*time.Millisecond),
	}
	go c.run()
	return c
}

func (c *Collector) run() {
	defer close(c.done)

	for {
		select {
		case <-c.stopCh:
			// Drain whatever made it into the queue before shutdown.
			for {
				select {
				case span := <-c.spansCh:
					c.buffer(span)
				default:
					return
				}
			}
		case span := <-c.spansCh:
			c.buffer(span)
		}
	}
}

// Submit enqueues a completed span for export. On a full queue the
// incoming span is dropped (newest-drop) and the drop counter is
// incremented; the caller is never blocked.
func (c *Collector) Submit(span *Span) {
	if span == nil {
		return
	}
	if c.closed.Load() {
		c.dropped.Add(1)
		return
	}

	c.windowMu.Lock()
	c.window.Append(float64(span.Duration().Milliseconds()))
	c.windowMu.Unlock()

	select {
	case c.spansCh <- span:
	default:
		c.dropped.Add(1)
	}
}

func (c *Collector) buffer(span *Span) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = append(c.spans, span)
}

// Export returns all buffered spans and clears the internal buffer.
func (c *Collector) Export() []*Span {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.spans) == 0 {
		return nil
	}

	result := c.spans
	c.spans = make([]*Span, 0, 8)
	return result
}

// Count returns the number of spans currently awaiting export.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.spans)
}

// DroppedCount returns the total number of spans dropped because the
// queue was full or the collector closed.
func (c *Collector) DroppedCount() int64 {
	return c.dropped.Load()
}

// Stats returns a snapshot of the collector's counters.
func (c *Collector) Stats() CollectorStats {
	c.windowMu.Lock()
	avg := c.window.Reduce(rolling.Avg)
	c.windowMu.Unlock()
	if math.IsNaN(avg) {
		avg = 0
	}

	return CollectorStats{
		Buffered:    c.Count(),
		Dropped:     c.DroppedCount(),
		AvgDuration: time.Duration(avg * float64(time.Millisecond)),
	}
}

// close shuts the collector down, waiting briefly for the queue to
// drain into the buffer. Spans submitted after close are dropped.
func (c *Collector) close() {
	if c.closed.Swap(true) {
		return
	}
	close(c.stopCh)
	select {
	case <-c.done:
	case <-time.After(100 * time.Millisecond):
	}
}
