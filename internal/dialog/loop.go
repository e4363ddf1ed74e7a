package dialog

import (
	"image"
	"log/slog"
	"time"

	"github.com/neurlang/wayland/wl"
)

// wl_keyboard.key state value for a press.
const keyStatePressed = 1

// displayConn is what the loop needs from the session. Tests substitute
// a connection whose dispatch never returns.
type displayConn interface {
	Dispatch() error
	Surface() *wl.Surface
}

type eventKind int

const (
	evKey eventKind = iota
	evModifiers
	evConfigured
	evClosing
)

// loopEvent carries one dispatched protocol event from the pump
// goroutine to the loop goroutine.
type loopEvent struct {
	kind eventKind
	key  wl.KeyboardKeyEvent
	mods wl.KeyboardModifiersEvent
}

// loop is the single-owner heart of a dialog session. Protocol events
// are read on a pump goroutine that only forwards them here; every
// mutation of window, entry and blink state happens on the loop
// goroutine, which is also the only one that may block on select.
type loop struct {
	logger *slog.Logger

	session  displayConn
	pool     *BufferPool
	win      *WindowState
	renderer *Renderer
	coord    *Coordinator
	bridge   *Bridge
	slot     *ResultSlot

	params Params
	cancel <-chan struct{}
	events chan loopEvent

	blink      time.Duration
	blinkOn    bool
	configured bool
	closing    bool

	// pendingPaste holds the fetch generation a Ctrl+V is waiting on, or 0.
	pendingPaste uint64
}

func newLoopEvents() chan loopEvent {
	return make(chan loopEvent, 64)
}

// HandleKeyboardKey runs on the pump goroutine; the event crosses to the
// loop goroutine before it touches any state.
func (l *loop) HandleKeyboardKey(ev wl.KeyboardKeyEvent) {
	l.post(loopEvent{kind: evKey, key: ev})
}

// HandleKeyboardModifiers forwards the compositor's modifier state.
func (l *loop) HandleKeyboardModifiers(ev wl.KeyboardModifiersEvent) {
	l.post(loopEvent{kind: evModifiers, mods: ev})
}

// HandleDataDeviceDataOffer must register the mime handler before the
// offer's mime events dispatch, so it stays on the pump goroutine; the
// bridge's offer bookkeeping is pump-owned.
func (l *loop) HandleDataDeviceDataOffer(ev wl.DataDeviceDataOfferEvent) {
	l.bridge.trackOffer(ev.Id)
}

// HandleDataDeviceSelection starts the mirror fetch, pump-side. Only
// the fetch completion crosses into the loop.
func (l *loop) HandleDataDeviceSelection(ev wl.DataDeviceSelectionEvent) {
	l.bridge.selectionChanged(ev.Id)
}

func (l *loop) onConfigured() {
	l.post(loopEvent{kind: evConfigured})
}

func (l *loop) onClosing() {
	l.post(loopEvent{kind: evClosing})
}

// post never blocks: a full queue means the loop is gone or stalled, and
// a dropped input event is recoverable while a stuck pump is not.
func (l *loop) post(ev loopEvent) {
	select {
	case l.events <- ev:
	default:
		l.logger.Warn("event queue full, event dropped", "kind", int(ev.kind))
	}
}

// apply executes one forwarded event on the loop goroutine.
func (l *loop) apply(ev loopEvent) {
	switch ev.kind {
	case evKey:
		l.applyKey(ev.key)
	case evModifiers:
		l.coord.HandleModifierMask(ev.mods.ModsDepressed)
	case evConfigured:
		l.configured = true
		l.win.Dirty = true
	case evClosing:
		l.finish(Cancelled())
	}
}

func (l *loop) applyKey(ev wl.KeyboardKeyEvent) {
	pressed := ev.State == keyStatePressed

	if l.params.ConfirmOnly {
		if !pressed {
			return
		}
		switch ev.Key {
		case keyEnter, keyKPEnter:
			l.finish(Confirmed(nil))
		case keyEsc:
			l.finish(Cancelled())
		}
		return
	}

	switch l.coord.HandleKey(ev.Key, pressed) {
	case ActionDirty:
		l.touch()
	case ActionConfirm:
		l.finish(Confirmed(l.coord.Buffer().Bytes()))
	case ActionCancel:
		l.finish(Cancelled())
	case ActionPaste:
		l.requestPaste()
	}
}

// touch marks the frame dirty and resets the cursor to solid, so the
// cursor never blinks away mid-typing.
func (l *loop) touch() {
	l.blinkOn = true
	l.win.Dirty = true
}

// requestPaste inserts the mirrored clipboard if one is already present,
// or queues the paste against the newest in-flight fetch.
func (l *loop) requestPaste() {
	payload, gen := l.bridge.Latest()
	if gen > 0 {
		l.applyPaste(payload)
		return
	}
	if pg := l.bridge.PendingGen(); pg != 0 {
		l.pendingPaste = pg
		l.logger.Debug("paste queued", "generation", pg)
	}
}

func (l *loop) applyPaste(payload []byte) {
	if n := l.coord.Paste(payload); n > 0 {
		l.logger.Debug("paste applied", "runes", n)
		l.touch()
	}
}

// finish assigns the session outcome. First write wins; a compositor
// close racing a user Enter cannot produce two results.
func (l *loop) finish(res Result) {
	if l.slot.Put(res) {
		l.logger.Debug("session finished", "kind", int(res.Kind))
	}
	l.closing = true
}

// run drives the session until a result is assigned. Dispatch blocks on
// the compositor socket with no deadline, so it lives on its own pump
// goroutine; the loop itself always stays parked on select, where
// cancellation, blink ticks and clipboard completions interleave with
// forwarded protocol events.
func (l *loop) run() {
	ticker := time.NewTicker(l.blink)
	defer ticker.Stop()

	stop := make(chan struct{})
	defer close(stop)
	dispatchErr := make(chan error, 1)
	go func() {
		for {
			if err := l.session.Dispatch(); err != nil {
				select {
				case dispatchErr <- err:
				case <-stop:
				}
				return
			}
			select {
			case <-stop:
				return
			default:
			}
		}
	}()

	for {
		select {
		case <-l.cancel:
			l.finish(Cancelled())
			return
		case <-ticker.C:
			l.blinkOn = !l.blinkOn
			l.win.Dirty = true
		case res := <-l.bridge.Completions():
			payload, ok := l.bridge.Complete(res)
			if ok && l.pendingPaste != 0 && res.gen >= l.pendingPaste {
				l.pendingPaste = 0
				l.applyPaste(payload)
			}
		case ev := <-l.events:
			l.apply(ev)
		case err := <-dispatchErr:
			l.finish(Errored(err))
			return
		}

		if l.closing {
			return
		}
		if l.configured && l.win.Dirty {
			l.redraw()
		}
	}
}

// redraw renders the current frame into a free buffer and commits it.
// If the compositor holds every buffer the frame stays dirty and is
// retried on the next pass.
func (l *loop) redraw() {
	fb, err := l.pool.Acquire()
	if err != nil {
		l.logger.Warn("no free buffer, frame deferred", "error", err)
		return
	}

	l.renderer.DrawFrame(l.win, FrameState{
		Title:         l.params.Title,
		Description:   l.params.Description,
		Prompt:        l.params.Prompt,
		MaskCount:     l.coord.Buffer().Len(),
		CursorIndex:   l.coord.Buffer().Cursor(),
		CursorVisible: l.blinkOn,
	})
	l.win.EncodeBGRA(fb.pix)

	l.pool.Commit(l.session.Surface(), fb, image.Rect(0, 0, l.win.Width, l.win.Height))
	l.win.Dirty = false
}
