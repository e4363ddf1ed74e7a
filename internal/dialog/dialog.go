// Package dialog implements the Wayland PIN entry window.
//
// One call to Run is one complete window lifetime: connect, bind
// globals, configure a fixed-size toplevel, pump events on a single
// goroutine, and deliver exactly one Result through a one-shot slot.
// Entered characters are never rendered; only mask glyphs reach the
// shared pixel buffers, and the entry buffer is wiped on teardown.
package dialog

import (
	"context"
	"log/slog"
	"time"

	"wayentry/internal/config"
	"wayentry/internal/text"
)

// Params is the per-session dialog content, set by the protocol peer.
type Params struct {
	Title       string
	Description string
	Prompt      string
	ErrorText   string

	// ConfirmOnly shows the dialog without an entry field: Enter confirms,
	// Escape cancels, nothing is typed or returned.
	ConfirmOnly bool
}

// Run shows the dialog and blocks until it produces a result. Cancelling
// ctx dismisses the window as a Cancelled outcome. Every fatal setup
// failure surfaces as an Error result; Run never hangs on one.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, p Params) Result {
	slot := NewResultSlot()
	cancel := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			close(cancel)
		case <-slot.Done():
		}
	}()

	go runWindow(cfg, logger, p, slot, cancel)

	return slot.Wait()
}

// runWindow owns the whole window lifetime on its goroutine.
func runWindow(cfg *config.Config, logger *slog.Logger, p Params, slot *ResultSlot, cancel <-chan struct{}) {
	if p.Title == "" {
		p.Title = cfg.Window.Title
	}
	if p.ErrorText != "" {
		if p.Description != "" {
			p.Description = p.ErrorText + "\n" + p.Description
		} else {
			p.Description = p.ErrorText
		}
	}

	// Font and renderer come first: a missing glyph must fail the session
	// before any surface exists.
	shaper, err := text.LoadFont(cfg.Font.Paths, cfg.Font.LabelSize, cfg.Font.MaskSize)
	if err != nil {
		slot.Put(Errored(err))
		return
	}
	renderer, err := NewRenderer(shaper, cfg)
	if err != nil {
		slot.Put(Errored(err))
		return
	}

	session, err := Connect(logger)
	if err != nil {
		slot.Put(Errored(err))
		return
	}
	defer session.Close()

	pool, err := NewBufferPool(session.Shm(), cfg.Window.Width, cfg.Window.Height)
	if err != nil {
		slot.Put(Errored(err))
		return
	}
	defer pool.Destroy()

	buf := NewTextBuffer(cfg.Input.MaxLength)
	defer buf.Wipe()

	l := &loop{
		logger:   logger,
		session:  session,
		pool:     pool,
		win:      NewWindowState(cfg.Window.Width, cfg.Window.Height),
		renderer: renderer,
		coord:    NewCoordinator(buf, cfg.Input.PasteEnabled),
		bridge:   NewBridge(logger),
		slot:     slot,
		params:   p,
		cancel:   cancel,
		events:   newLoopEvents(),
		blink:    time.Duration(cfg.Input.BlinkIntervalMs) * time.Millisecond,
		blinkOn:  true,
	}
	session.SetSink(l)

	if err := session.CreateWindow(p.Title, cfg.Window.Width, cfg.Window.Height, l.onConfigured, l.onClosing); err != nil {
		slot.Put(Errored(err))
		return
	}
	if err := session.Roundtrip(); err != nil {
		slot.Put(Errored(err))
		return
	}

	l.run()
}
