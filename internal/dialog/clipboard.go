package dialog

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/neurlang/wayland/wl"
	"golang.org/x/sys/unix"
)

// maxClipboardBytes bounds a single clipboard fetch. Anything a user could
// plausibly paste into a PIN field fits well under this.
const maxClipboardBytes = 64 * 1024

// mimePreference is the order in which text offers are accepted.
var mimePreference = []string{
	"text/plain;charset=utf-8",
	"text/plain",
	"UTF8_STRING",
	"STRING",
	"TEXT",
}

// ClipboardState holds the latest mirrored selection payload. It is the
// only state shared between the event loop and the fetch workers, guarded
// by a mutex that is never held across blocking I/O. The generation check
// makes a stale fetch that completes late harmless: a lower generation
// never overwrites a higher one.
type ClipboardState struct {
	mu      sync.Mutex
	payload []byte
	gen     uint64
}

func newClipboardState() *ClipboardState {
	return &ClipboardState{}
}

// update stores payload under gen. Returns false if a payload with an
// equal or higher generation is already present.
func (s *ClipboardState) update(gen uint64, payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen <= s.gen {
		return false
	}
	s.gen = gen
	s.payload = payload
	return true
}

// Latest returns the most recent payload and its generation. Generation 0
// means nothing has been fetched yet.
func (s *ClipboardState) Latest() ([]byte, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload, s.gen
}

// fetchResult is what a fetch worker delivers back to the event loop.
type fetchResult struct {
	gen     uint64
	payload []byte
	err     error
}

// Bridge mirrors compositor selection offers into ClipboardState.
//
// Caveat, by inherited design: a fetch starts on *every* new selection
// offer while the window is open, not only on an explicit paste. The
// dialog therefore reads clipboard contents the user never pastes. This
// keeps Ctrl+V instant, at a privacy cost; restricting fetches to paste
// requests would be a behavior change, not a fix.
type Bridge struct {
	state  *ClipboardState
	logger *slog.Logger

	// nextGen and offers belong to the dispatch pump goroutine, where
	// all selection events arrive. pendingGen crosses to the loop
	// goroutine, which reads it for paste queueing.
	nextGen     uint64
	pendingGen  atomic.Uint64
	offers      map[*wl.DataOffer]*offerMimes
	completions chan fetchResult
}

// NewBridge creates a clipboard bridge.
func NewBridge(logger *slog.Logger) *Bridge {
	return &Bridge{
		state:       newClipboardState(),
		logger:      logger,
		offers:      make(map[*wl.DataOffer]*offerMimes),
		completions: make(chan fetchResult, 8),
	}
}

// Completions delivers finished fetches to the event loop.
func (b *Bridge) Completions() <-chan fetchResult {
	return b.completions
}

// Latest exposes the current clipboard payload and generation.
func (b *Bridge) Latest() ([]byte, uint64) {
	return b.state.Latest()
}

// PendingGen returns the generation of the newest outstanding fetch, or 0.
func (b *Bridge) PendingGen() uint64 {
	return b.pendingGen.Load()
}

// Complete applies a finished fetch through the generation check and
// returns the payload if it became the current one. Fetch errors are
// logged and dropped; the prior state is kept and the session continues.
func (b *Bridge) Complete(res fetchResult) ([]byte, bool) {
	if res.gen >= b.pendingGen.Load() {
		b.pendingGen.Store(0)
	}
	if res.err != nil {
		b.logger.Warn("clipboard fetch failed", "generation", res.gen, "error", res.err)
		return nil, false
	}
	if !b.state.update(res.gen, res.payload) {
		b.logger.Debug("stale clipboard fetch discarded", "generation", res.gen)
		return nil, false
	}
	return res.payload, true
}

// beginFetch starts a worker reading the payload from r under the next
// generation id. Runs on the pump goroutine; only the worker blocks.
func (b *Bridge) beginFetch(r io.ReadCloser) uint64 {
	b.nextGen++
	gen := b.nextGen
	b.pendingGen.Store(gen)

	go func() {
		payload, err := io.ReadAll(io.LimitReader(r, maxClipboardBytes))
		r.Close()
		res := fetchResult{gen: gen, err: err}
		if err == nil {
			res.payload = payload
		}
		b.deliver(res)
	}()
	return gen
}

// deliver hands a completion to the loop without ever blocking a worker.
// When the channel is full the lowest generation in play is the one
// discarded, so a queued paste waiting on the newest fetch always sees
// its completion arrive.
func (b *Bridge) deliver(res fetchResult) {
	for {
		select {
		case b.completions <- res:
			return
		default:
		}
		select {
		case old := <-b.completions:
			if old.gen > res.gen {
				res = old
			}
		default:
		}
	}
}

// offerMimes accumulates the mime types advertised for one data offer.
type offerMimes struct {
	mimes []string
}

func (o *offerMimes) HandleDataOfferOffer(ev wl.DataOfferOfferEvent) {
	o.mimes = append(o.mimes, ev.MimeType)
}

// trackOffer registers for the offer's mime advertisements. Called from
// the wl_data_device data_offer event, before the selection event.
func (b *Bridge) trackOffer(offer *wl.DataOffer) {
	if offer == nil {
		return
	}
	om := &offerMimes{}
	b.offers[offer] = om
	offer.AddOfferHandler(om)
}

// selectionChanged starts a fetch for the new selection offer. A nil
// offer means the selection was cleared.
func (b *Bridge) selectionChanged(offer *wl.DataOffer) {
	if offer == nil {
		return
	}
	om := b.offers[offer]
	delete(b.offers, offer)
	if om == nil {
		return
	}

	mime := chooseMime(om.mimes)
	if mime == "" {
		b.logger.Debug("selection offer has no text mime type")
		return
	}

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		b.logger.Warn("clipboard pipe failed", "error", err)
		return
	}
	if err := offer.Receive(mime, uintptr(fds[1])); err != nil {
		b.logger.Warn("clipboard receive failed", "mime", mime, "error", err)
		unix.Close(fds[0])
		unix.Close(fds[1])
		return
	}
	// The write end travels to the selection owner; our copy must close
	// so the worker sees EOF when the owner finishes.
	unix.Close(fds[1])

	gen := b.beginFetch(os.NewFile(uintptr(fds[0]), "clipboard"))
	b.logger.Debug("clipboard fetch started", "mime", mime, "generation", gen)
}

func chooseMime(offered []string) string {
	for _, want := range mimePreference {
		for _, have := range offered {
			if have == want {
				return want
			}
		}
	}
	return ""
}
