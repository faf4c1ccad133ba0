package tracing

import (
	"testing"
	"time"

	"github.com/asecurityteam/rolling"
)

func endedTestSpan() *Span {
	s := newTestSpan(nil)
	s.End()
	return s
}

// waitForCount polls until the collector buffered n spans, in the
// style of a graceful-shutdown poll loop.
func waitForCount(t testing.TB, c *Collector, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.Count() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("collector buffered %d spans, expected %d", c.Count(), n)
}

func TestCollector_SubmitAndExport(t *testing.T) {
	c := NewCollector(16)
	defer c.close()

	c.Submit(endedTestSpan())
	c.Submit(endedTestSpan())

	waitForCount(t, c, 2)

	spans := c.Export()
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, expected 2", len(spans))
	}
	if c.Count() != 0 {
		t.Fatal("export must clear the buffer")
	}
	if c.Export() != nil {
		t.Fatal("empty export must return nil")
	}
}

// A full queue drops the incoming span and counts it instead of
// blocking the caller.
func TestCollector_FullQueueDropsNewest(t *testing.T) {
	// no run goroutine: the queue can never drain
	c := &Collector{
		spansCh: make(chan *Span, 1),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
		window:  rolling.NewTimePolicy(rolling.NewWindow(1000), 10*time.Millisecond),
	}

	first := endedTestSpan()
	c.Submit(first)
	c.Submit(endedTestSpan())
	c.Submit(endedTestSpan())

	if got := c.DroppedCount(); got != 2 {
		t.Fatalf("dropped %d, expected 2", got)
	}
	if queued := <-c.spansCh; queued != first {
		t.Fatal("the oldest span must survive under newest-drop")
	}
}

func TestCollector_SubmitAfterCloseDrops(t *testing.T) {
	c := NewCollector(16)
	c.close()

	c.Submit(endedTestSpan())
	if c.DroppedCount() != 1 {
		t.Fatalf("dropped %d, expected 1", c.DroppedCount())
	}
}

func TestCollector_NilSpanIgnored(t *testing.T) {
	c := NewCollector(16)
	defer c.close()

	c.Submit(nil)
	if c.DroppedCount() != 0 || c.Count() != 0 {
		t.Fatal("nil spans are ignored, not counted")
	}
}

func TestCollector_Stats(t *testing.T) {
	c := NewCollector(16)
	defer c.close()

	stats := c.Stats()
	if stats.Dropped != 0 || stats.Buffered != 0 || stats.AvgDuration != 0 {
		t.Fatalf("fresh collector stats %+v", stats)
	}

	c.Submit(endedTestSpan())
	waitForCount(t, c, 1)

	stats = c.Stats()
	if stats.Buffered != 1 {
		t.Fatalf("buffered %d, expected 1", stats.Buffered)
	}
	if stats.AvgDuration < 0 {
		t.Fatal("negative average duration")
	}
}

func TestCollector_CloseIdempotent(t *testing.T) {
	c := NewCollector(16)
	c.close()
	c.close()
}
