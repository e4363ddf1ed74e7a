package dialog

import (
	"io"
	"strings"
	"testing"

	"wayentry/internal/logging"
)

func testBridge() *Bridge {
	return NewBridge(logging.New(&logging.Config{Level: logging.LevelError, Component: "test", Output: io.Discard}))
}

type slowReader struct {
	io.Reader
	release chan struct{}
}

func (r *slowReader) Read(p []byte) (int, error) {
	<-r.release
	return r.Reader.Read(p)
}

func (r *slowReader) Close() error { return nil }

func TestBridgeMirrorsCompletedFetch(t *testing.T) {
	b := testBridge()
	gen := b.beginFetch(io.NopCloser(strings.NewReader("pin-1234")))

	res := <-b.Completions()
	if res.gen != gen || res.err != nil {
		t.Fatalf("completion = %+v", res)
	}
	payload, ok := b.Complete(res)
	if !ok || string(payload) != "pin-1234" {
		t.Fatalf("Complete = %q, %v", payload, ok)
	}
	if latest, g := b.Latest(); g != gen || string(latest) != "pin-1234" {
		t.Errorf("Latest = %q gen %d", latest, g)
	}
	if b.PendingGen() != 0 {
		t.Errorf("pending gen = %d after completion", b.PendingGen())
	}
}

func TestStaleFetchNeverOverwritesNewer(t *testing.T) {
	b := testBridge()

	slow := &slowReader{Reader: strings.NewReader("old"), release: make(chan struct{})}
	oldGen := b.beginFetch(slow)
	newGen := b.beginFetch(io.NopCloser(strings.NewReader("new")))

	// The newer fetch completes first and becomes current.
	res := <-b.Completions()
	if res.gen != newGen {
		t.Fatalf("first completion gen = %d, want %d", res.gen, newGen)
	}
	if _, ok := b.Complete(res); !ok {
		t.Fatal("newer fetch rejected")
	}

	// The older fetch finishes late; its payload must be discarded.
	close(slow.release)
	res = <-b.Completions()
	if res.gen != oldGen {
		t.Fatalf("second completion gen = %d, want %d", res.gen, oldGen)
	}
	if _, ok := b.Complete(res); ok {
		t.Error("stale fetch overwrote newer payload")
	}
	if payload, g := b.Latest(); g != newGen || string(payload) != "new" {
		t.Errorf("Latest = %q gen %d, want new/%d", payload, g, newGen)
	}
}

func TestFetchErrorKeepsPriorPayload(t *testing.T) {
	b := testBridge()

	g1 := b.beginFetch(io.NopCloser(strings.NewReader("kept")))
	if _, ok := b.Complete(<-b.Completions()); !ok {
		t.Fatal("first fetch rejected")
	}

	b.beginFetch(&failReader{})
	res := <-b.Completions()
	if res.err == nil {
		t.Fatal("expected read error")
	}
	if _, ok := b.Complete(res); ok {
		t.Error("failed fetch reported as applied")
	}
	if payload, g := b.Latest(); g != g1 || string(payload) != "kept" {
		t.Errorf("Latest = %q gen %d, want kept/%d", payload, g, g1)
	}
}

type failReader struct{}

func (failReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
func (failReader) Close() error             { return nil }

func TestFetchTruncatesOversizedPayload(t *testing.T) {
	b := testBridge()
	b.beginFetch(io.NopCloser(strings.NewReader(strings.Repeat("x", maxClipboardBytes+100))))

	res := <-b.Completions()
	if res.err != nil {
		t.Fatalf("fetch failed: %v", res.err)
	}
	if len(res.payload) != maxClipboardBytes {
		t.Errorf("payload length = %d, want %d", len(res.payload), maxClipboardBytes)
	}
}

func drainMaxGen(b *Bridge) (maxGen uint64, seen []uint64) {
	for {
		select {
		case r := <-b.completions:
			seen = append(seen, r.gen)
			if r.gen > maxGen {
				maxGen = r.gen
			}
		default:
			return maxGen, seen
		}
	}
}

func TestDeliverFullQueueKeepsNewestGeneration(t *testing.T) {
	b := testBridge()
	for g := uint64(1); g <= uint64(cap(b.completions)); g++ {
		b.deliver(fetchResult{gen: g})
	}

	// The queue is full; the completion a queued paste waits on must
	// still get through, at the cost of the oldest one.
	newest := uint64(cap(b.completions)) + 1
	b.deliver(fetchResult{gen: newest, payload: []byte("new")})

	maxGen, _ := drainMaxGen(b)
	if maxGen != newest {
		t.Errorf("max delivered generation = %d, want %d", maxGen, newest)
	}
}

func TestDeliverFullQueueDropsStaleNotNewest(t *testing.T) {
	b := testBridge()
	for g := uint64(10); g < uint64(10+cap(b.completions)); g++ {
		b.deliver(fetchResult{gen: g})
	}

	b.deliver(fetchResult{gen: 2})

	maxGen, seen := drainMaxGen(b)
	if want := uint64(10 + cap(b.completions) - 1); maxGen != want {
		t.Errorf("max delivered generation = %d, want %d", maxGen, want)
	}
	for _, g := range seen {
		if g == 2 {
			t.Error("stale generation survived instead of a newer one")
		}
	}
}

func TestChooseMimePrefersUTF8(t *testing.T) {
	got := chooseMime([]string{"image/png", "text/plain", "text/plain;charset=utf-8"})
	if got != "text/plain;charset=utf-8" {
		t.Errorf("chooseMime = %q", got)
	}
	if got := chooseMime([]string{"image/png"}); got != "" {
		t.Errorf("chooseMime on non-text = %q, want empty", got)
	}
}
