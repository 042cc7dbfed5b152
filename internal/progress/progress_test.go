package progress

import (
	"sync"
	"testing"
)

func TestCollectSinkRecordsEvents(t *testing.T) {
	t.Parallel()

	sink := NewCollectSink()
	sink.Emit(Event{Type: EventPhaseChanged, ScanID: "s1", Phase: "crawling"})
	sink.Emit(Event{Type: EventPageDiscovered, ScanID: "s1", URL: "https://example.com/"})
	sink.Emit(Event{Type: EventPhaseChanged, ScanID: "s1", Phase: "scanning"})

	if got := len(sink.Events()); got != 3 {
		t.Fatalf("Events() = %d events, want 3", got)
	}

	phases := sink.OfType(EventPhaseChanged)
	if len(phases) != 2 {
		t.Fatalf("OfType(phase-changed) = %d events, want 2", len(phases))
	}
	if phases[0].Phase != "crawling" || phases[1].Phase != "scanning" {
		t.Errorf("phases = %s, %s; want crawling, scanning", phases[0].Phase, phases[1].Phase)
	}
}

// CollectSink is used from errgroup workers, so concurrent emits must
// not race or drop events.
func TestCollectSinkConcurrentEmit(t *testing.T) {
	t.Parallel()

	sink := NewCollectSink()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Emit(Event{Type: EventPageScanned, ScanID: "s1"})
		}()
	}
	wg.Wait()

	if got := len(sink.Events()); got != 50 {
		t.Errorf("Events() = %d events, want 50", got)
	}
}
