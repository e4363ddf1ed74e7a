package dialog

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/neurlang/wayland/wl"

	"wayentry/internal/logging"
)

// stuckConn models an idle compositor socket: dispatch parks until the
// test releases it.
type stuckConn struct {
	unblock chan struct{}
}

func (c *stuckConn) Dispatch() error {
	<-c.unblock
	return errors.New("connection closed")
}

func (c *stuckConn) Surface() *wl.Surface { return nil }

type erroringConn struct{ err error }

func (c *erroringConn) Dispatch() error      { return c.err }
func (c *erroringConn) Surface() *wl.Surface { return nil }

func newTestLoop(conn displayConn) *loop {
	logger := logging.New(&logging.Config{Level: logging.LevelError, Component: "test", Output: io.Discard})
	return &loop{
		logger:  logger,
		session: conn,
		win:     NewWindowState(400, 200),
		coord:   NewCoordinator(NewTextBuffer(0), true),
		bridge:  NewBridge(logger),
		slot:    NewResultSlot(),
		events:  newLoopEvents(),
		cancel:  make(chan struct{}),
		blink:   time.Hour,
		blinkOn: true,
	}
}

func waitResult(t *testing.T, l *loop) Result {
	t.Helper()
	select {
	case <-l.slot.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session produced no result")
	}
	res, _ := l.slot.TryGet()
	return res
}

func TestCancelEndsSessionWhileDispatchBlocked(t *testing.T) {
	conn := &stuckConn{unblock: make(chan struct{})}
	t.Cleanup(func() { close(conn.unblock) })

	l := newTestLoop(conn)
	cancel := make(chan struct{})
	l.cancel = cancel

	go l.run()
	close(cancel)

	if res := waitResult(t, l); res.Kind != ResultCancelled {
		t.Errorf("kind = %v, want cancelled", res.Kind)
	}
}

func TestForwardedKeysConfirmEntry(t *testing.T) {
	conn := &stuckConn{unblock: make(chan struct{})}
	t.Cleanup(func() { close(conn.unblock) })
	l := newTestLoop(conn)

	// Handler calls come from the pump side; each event must cross the
	// queue and apply on the loop goroutine.
	for _, code := range []uint32{30, 48, 46} { // a b c
		l.HandleKeyboardKey(wl.KeyboardKeyEvent{Key: code, State: keyStatePressed})
		l.HandleKeyboardKey(wl.KeyboardKeyEvent{Key: code, State: 0})
	}
	l.HandleKeyboardKey(wl.KeyboardKeyEvent{Key: keyEnter, State: keyStatePressed})

	go l.run()

	res := waitResult(t, l)
	if res.Kind != ResultConfirmed || string(res.Secret) != "abc" {
		t.Errorf("result = %+v, want confirmed abc", res)
	}
}

func TestCompositorCloseCancels(t *testing.T) {
	conn := &stuckConn{unblock: make(chan struct{})}
	t.Cleanup(func() { close(conn.unblock) })
	l := newTestLoop(conn)

	l.onClosing()
	go l.run()

	if res := waitResult(t, l); res.Kind != ResultCancelled {
		t.Errorf("kind = %v, want cancelled", res.Kind)
	}
}

func TestDispatchFailureSurfacesAsError(t *testing.T) {
	cause := errors.New("socket gone")
	l := newTestLoop(&erroringConn{err: cause})

	go l.run()

	res := waitResult(t, l)
	if res.Kind != ResultError || !errors.Is(res.Err, cause) {
		t.Errorf("result = %+v, want error wrapping cause", res)
	}
}

func TestConfirmOnlyIgnoresTyping(t *testing.T) {
	conn := &stuckConn{unblock: make(chan struct{})}
	t.Cleanup(func() { close(conn.unblock) })
	l := newTestLoop(conn)
	l.params.ConfirmOnly = true

	l.HandleKeyboardKey(wl.KeyboardKeyEvent{Key: 30, State: keyStatePressed})
	l.HandleKeyboardKey(wl.KeyboardKeyEvent{Key: keyEnter, State: keyStatePressed})

	go l.run()

	res := waitResult(t, l)
	if res.Kind != ResultConfirmed || res.Secret != nil {
		t.Errorf("result = %+v, want confirmed with no secret", res)
	}
}
