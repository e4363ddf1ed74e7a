package dialog

import (
	"fmt"
	"log/slog"

	"github.com/neurlang/wayland/wl"
	"github.com/neurlang/wayland/wlclient"
	"github.com/neurlang/wayland/xdg"
)

// surfaceState is the configure handshake state machine. The first frame
// is committed only after the initial configure acknowledgment; Closing
// is compositor-initiated and surfaces as a Cancelled outcome upstream,
// never as an error.
type surfaceState int

const (
	stateUnconfigured surfaceState = iota
	stateConfigured
	stateClosing
)

// requiredGlobals are the registry interfaces the dialog cannot run
// without. Policy is abort, not degrade: a pinentry that silently lost
// input or paste would be worse than a loud failure.
var requiredGlobals = []string{
	"wl_compositor",
	"wl_shm",
	"wl_seat",
	"wl_data_device_manager",
	"xdg_wm_base",
}

// eventSink receives the input and selection events a running dialog
// cares about. The event loop implements it.
type eventSink interface {
	wl.KeyboardKeyHandler
	wl.KeyboardModifiersHandler
	wl.DataDeviceDataOfferHandler
	wl.DataDeviceSelectionHandler
}

// Session owns the display connection, the bound globals, and the window
// surface with its configure state machine.
type Session struct {
	logger *slog.Logger

	display  *wl.Display
	registry *wl.Registry

	compositor *wl.Compositor
	shm        *wl.Shm
	seat       *wl.Seat
	ddm        *wl.DataDeviceManager
	wmBase     *xdg.WmBase

	surface    *wl.Surface
	xdgSurface *xdg.Surface
	toplevel   *xdg.Toplevel
	keyboard   *wl.Keyboard
	dataDevice *wl.DataDevice

	state    surfaceState
	sink     eventSink
	seatCaps uint32

	// onConfigured fires once, after the first ack_configure.
	onConfigured func()
	// onClosing fires when the compositor asks the toplevel to close.
	onClosing func()
}

// Connect establishes the display connection and binds the required
// globals. A dead socket or failed roundtrip is ErrConnection; a missing
// required global is a MissingGlobalError. Both are fatal.
func Connect(logger *slog.Logger) (*Session, error) {
	display, err := wlclient.DisplayConnect(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrConnection, err)
	}

	s := &Session{logger: logger, display: display}

	s.registry, err = display.GetRegistry()
	if err != nil {
		wlclient.DisplayDisconnect(display)
		return nil, fmt.Errorf("%w: get registry: %v", ErrConnection, err)
	}
	s.registry.AddGlobalHandler(s)

	if err := wlclient.DisplayRoundtrip(display); err != nil {
		wlclient.DisplayDisconnect(display)
		return nil, fmt.Errorf("%w: registry roundtrip: %v", ErrConnection, err)
	}

	if err := s.checkRequired(); err != nil {
		wlclient.DisplayDisconnect(display)
		return nil, err
	}
	return s, nil
}

// HandleRegistryGlobal binds the globals the dialog uses as the registry
// advertises them.
func (s *Session) HandleRegistryGlobal(ev wl.RegistryGlobalEvent) {
	switch ev.Interface {
	case "wl_compositor":
		s.compositor = wlclient.RegistryBindCompositorInterface(s.registry, ev.Name, 4)
	case "wl_shm":
		s.shm = wlclient.RegistryBindShmInterface(s.registry, ev.Name, 1)
	case "wl_seat":
		s.seat = wlclient.RegistryBindSeatInterface(s.registry, ev.Name, 5)
		s.seat.AddCapabilitiesHandler(s)
	case "wl_data_device_manager":
		ddm := wl.NewDataDeviceManager(s.registry.Context())
		s.registry.Bind(ev.Name, ev.Interface, 3, ddm)
		s.ddm = ddm
	case "xdg_wm_base":
		wm := xdg.NewWmBase(s.registry.Context())
		s.registry.Bind(ev.Name, ev.Interface, 1, wm)
		wm.AddPingHandler(s)
		s.wmBase = wm
	}
	s.logger.Debug("registry global", "interface", ev.Interface, "name", ev.Name, "version", ev.Version)
}

func (s *Session) checkRequired() error {
	bound := map[string]bool{
		"wl_compositor":          s.compositor != nil,
		"wl_shm":                 s.shm != nil,
		"wl_seat":                s.seat != nil,
		"wl_data_device_manager": s.ddm != nil,
		"xdg_wm_base":            s.wmBase != nil,
	}
	for _, name := range requiredGlobals {
		if !bound[name] {
			return &MissingGlobalError{Name: name}
		}
	}
	return nil
}

// SetSink installs the event sink. Seat capabilities usually arrive
// during the registry roundtrip, before any sink exists, so wiring is
// retried here.
func (s *Session) SetSink(sink eventSink) {
	s.sink = sink
	s.wireSeat()
}

// CreateWindow creates the fixed-size toplevel surface and starts the
// configure handshake. The initial commit carries no buffer; content
// follows only after the compositor's configure is acknowledged.
func (s *Session) CreateWindow(title string, width, height int, onConfigured, onClosing func()) error {
	s.onConfigured = onConfigured
	s.onClosing = onClosing

	surface, err := s.compositor.CreateSurface()
	if err != nil {
		return fmt.Errorf("%w: create surface: %v", ErrConnection, err)
	}
	s.surface = surface

	s.xdgSurface, err = s.wmBase.GetSurface(surface)
	if err != nil {
		return fmt.Errorf("%w: get xdg surface: %v", ErrConnection, err)
	}
	s.xdgSurface.AddConfigureHandler(s)

	s.toplevel, err = s.xdgSurface.GetToplevel()
	if err != nil {
		return fmt.Errorf("%w: get toplevel: %v", ErrConnection, err)
	}
	s.toplevel.AddConfigureHandler(s)
	s.toplevel.AddCloseHandler(s)

	s.toplevel.SetTitle(title)
	s.toplevel.SetAppId("wayentry")
	s.toplevel.SetMinSize(int32(width), int32(height))
	s.toplevel.SetMaxSize(int32(width), int32(height))

	surface.Commit()
	return nil
}

// HandleWmBasePing keeps the compositor's liveness check answered.
func (s *Session) HandleWmBasePing(ev xdg.WmBasePingEvent) {
	s.wmBase.Pong(ev.Serial)
}

// HandleSurfaceConfigure acknowledges the configure and, on the first
// one, unlocks rendering: Unconfigured -> Configured.
func (s *Session) HandleSurfaceConfigure(ev xdg.SurfaceConfigureEvent) {
	s.xdgSurface.AckConfigure(ev.Serial)
	if s.state == stateUnconfigured {
		s.state = stateConfigured
		s.logger.Debug("surface configured", "serial", ev.Serial)
		if s.onConfigured != nil {
			s.onConfigured()
		}
	}
}

// HandleToplevelConfigure is accepted and ignored: the window is fixed
// size, and min/max bounds already tell the compositor so.
func (s *Session) HandleToplevelConfigure(xdg.ToplevelConfigureEvent) {}

// HandleToplevelClose transitions to Closing. Reported upward as a
// Cancelled outcome, not an error.
func (s *Session) HandleToplevelClose(xdg.ToplevelCloseEvent) {
	s.state = stateClosing
	s.logger.Debug("compositor requested close")
	if s.onClosing != nil {
		s.onClosing()
	}
}

// HandleSeatCapabilities records the advertised capabilities and wires
// input objects if the sink is already in place.
func (s *Session) HandleSeatCapabilities(ev wl.SeatCapabilitiesEvent) {
	s.seatCaps = uint32(ev.Capabilities)
	s.wireSeat()
}

// wireSeat creates the keyboard and data device once both the seat
// capabilities and the sink are known. Idempotent.
func (s *Session) wireSeat() {
	if s.sink == nil || s.seatCaps&uint32(wl.SeatCapabilityKeyboard) == 0 {
		return
	}
	if s.keyboard == nil {
		kb, err := s.seat.GetKeyboard()
		if err != nil {
			s.logger.Warn("get keyboard failed", "error", err)
		} else {
			s.keyboard = kb
			kb.AddKeyHandler(s.sink)
			kb.AddModifiersHandler(s.sink)
		}
	}
	if s.dataDevice == nil && s.ddm != nil {
		dd, err := s.ddm.GetDataDevice(s.seat)
		if err != nil {
			s.logger.Warn("get data device failed", "error", err)
		} else {
			s.dataDevice = dd
			dd.AddDataOfferHandler(s.sink)
			dd.AddSelectionHandler(s.sink)
		}
	}
}

// State returns the configure state.
func (s *Session) State() surfaceState {
	return s.state
}

// Surface returns the window surface, nil before CreateWindow.
func (s *Session) Surface() *wl.Surface {
	return s.surface
}

// Shm returns the bound shared-memory global.
func (s *Session) Shm() *wl.Shm {
	return s.shm
}

// Dispatch processes pending display events, blocking briefly when none
// are queued.
func (s *Session) Dispatch() error {
	if err := wlclient.DisplayDispatch(s.display); err != nil {
		return fmt.Errorf("%w: dispatch: %v", ErrConnection, err)
	}
	return nil
}

// Roundtrip flushes and waits for the server to process everything sent.
func (s *Session) Roundtrip() error {
	if err := wlclient.DisplayRoundtrip(s.display); err != nil {
		return fmt.Errorf("%w: roundtrip: %v", ErrConnection, err)
	}
	return nil
}

// Close tears down every protocol object this session created, then the
// connection. Safe to call after partial setup.
func (s *Session) Close() {
	if s.keyboard != nil {
		s.keyboard.Release()
		s.keyboard = nil
	}
	if s.dataDevice != nil {
		s.dataDevice.Release()
		s.dataDevice = nil
	}
	if s.toplevel != nil {
		s.toplevel.Destroy()
		s.toplevel = nil
	}
	if s.xdgSurface != nil {
		s.xdgSurface.Destroy()
		s.xdgSurface = nil
	}
	if s.surface != nil {
		s.surface.Destroy()
		s.surface = nil
	}
	if s.wmBase != nil {
		s.wmBase.Destroy()
		s.wmBase = nil
	}
	if s.seat != nil {
		s.seat.Release()
		s.seat = nil
	}
	// wl_shm.release needs interface version 2; the pool binds 1.
	s.shm = nil
	if s.registry != nil {
		s.registry.RemoveGlobalHandler(s)
		s.registry = nil
	}
	if s.display != nil {
		wlclient.DisplayDisconnect(s.display)
		s.display = nil
	}
}
