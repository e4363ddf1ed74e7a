package dialog

import (
	"errors"
	"testing"

	"github.com/neurlang/wayland/wl"
	"github.com/neurlang/wayland/xdg"
)

// Compile-time pins against the generated protocol surface: a renamed
// handler method here breaks the build, not a live session.
var (
	_ wl.RegistryGlobalHandler     = (*Session)(nil)
	_ wl.SeatCapabilitiesHandler   = (*Session)(nil)
	_ xdg.WmBasePingHandler        = (*Session)(nil)
	_ xdg.SurfaceConfigureHandler  = (*Session)(nil)
	_ xdg.ToplevelConfigureHandler = (*Session)(nil)
	_ xdg.ToplevelCloseHandler     = (*Session)(nil)
	_ wl.BufferReleaseHandler      = (*frameBuffer)(nil)
	_ wl.DataOfferOfferHandler     = (*offerMimes)(nil)
	_ eventSink                    = (*loop)(nil)
)

func TestCheckRequiredReportsMissingInOrder(t *testing.T) {
	s := &Session{}

	expect := func(name string) {
		t.Helper()
		err := s.checkRequired()
		var mg *MissingGlobalError
		if !errors.As(err, &mg) {
			t.Fatalf("checkRequired = %v, want MissingGlobalError", err)
		}
		if mg.Name != name {
			t.Fatalf("missing global = %q, want %q", mg.Name, name)
		}
		if !errors.Is(err, ErrMissingGlobal) {
			t.Error("error does not match ErrMissingGlobal")
		}
	}

	expect("wl_compositor")
	s.compositor = &wl.Compositor{}
	expect("wl_shm")
	s.shm = &wl.Shm{}
	expect("wl_seat")
	s.seat = &wl.Seat{}
	expect("wl_data_device_manager")
	s.ddm = &wl.DataDeviceManager{}
	expect("xdg_wm_base")
	s.wmBase = &xdg.WmBase{}

	if err := s.checkRequired(); err != nil {
		t.Errorf("all globals bound, got %v", err)
	}
}

func TestCloseSafeOnPartialSetup(t *testing.T) {
	(&Session{}).Close()
}
