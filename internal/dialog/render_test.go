package dialog

import (
	"image"
	"image/color"
	"testing"

	"golang.org/x/image/font/basicfont"

	"wayentry/internal/config"
	"wayentry/internal/text"
)

func testRenderer() *Renderer {
	pal, err := PaletteFromConfig(&config.DefaultConfig().Colors)
	if err != nil {
		panic(err)
	}
	// A solid 5x7 mask block makes drawn positions easy to probe.
	mask := image.NewAlpha(image.Rect(0, 0, 5, 7))
	for i := range mask.Pix {
		mask.Pix[i] = 0xff
	}
	return newRenderer(pal, basicfont.Face7x13, 11, 13, text.FromMask(mask, 5))
}

func textPixels(ws *WindowState, pal Palette, rect image.Rectangle) int {
	n := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if ws.Img.RGBAAt(x, y) == pal.Text {
				n++
			}
		}
	}
	return n
}

func TestDrawFrameMasksNotCharacters(t *testing.T) {
	r := testRenderer()
	ws := NewWindowState(400, 200)

	r.DrawFrame(ws, FrameState{Prompt: "PIN:", MaskCount: 3, CursorIndex: 3})

	boxTop := 200 - chromePadding - inputBoxHeight
	box := image.Rect(chromePadding, boxTop, 400-chromePadding, boxTop+inputBoxHeight)

	// Exactly three identical glyph blocks, one per entry, each at the
	// fixed advance from the last.
	adv := r.MaskAdvance()
	startX := box.Min.X + maskInset
	for i := 0; i < 3; i++ {
		col := image.Rect(startX+i*adv, box.Min.Y, startX+i*adv+5, box.Max.Y)
		if got := textPixels(ws, r.pal, col); got != 5*7 {
			t.Errorf("mask %d: %d text pixels, want %d", i, got, 5*7)
		}
	}
	empty := image.Rect(startX+3*adv, box.Min.Y, box.Max.X, box.Max.Y)
	if got := textPixels(ws, r.pal, empty); got != 0 {
		t.Errorf("pixels past last mask: %d, want 0", got)
	}
}

func TestDrawFrameMaskCountMatchesEntryLength(t *testing.T) {
	r := testRenderer()
	ws := NewWindowState(400, 200)
	boxTop := 200 - chromePadding - inputBoxHeight
	box := image.Rect(chromePadding, boxTop, 400-chromePadding, boxTop+inputBoxHeight)

	for _, count := range []int{0, 1, 8} {
		r.DrawFrame(ws, FrameState{MaskCount: count, CursorIndex: count})
		if got := textPixels(ws, r.pal, box); got != count*5*7 {
			t.Errorf("count %d: %d text pixels, want %d", count, got, count*5*7)
		}
	}
}

func TestDrawFrameClipsMasksToBox(t *testing.T) {
	r := testRenderer()
	ws := NewWindowState(400, 200)

	// Far more entries than fit; drawing must stop at the box edge
	// instead of spilling into the border or beyond.
	r.DrawFrame(ws, FrameState{MaskCount: 1000, CursorIndex: 1000})

	boxTop := 200 - chromePadding - inputBoxHeight
	rightOfBox := image.Rect(400-chromePadding, boxTop, 400, boxTop+inputBoxHeight)
	if got := textPixels(ws, r.pal, rightOfBox); got != 0 {
		t.Errorf("%d text pixels outside the box", got)
	}
}

func TestCursorFollowsIndexAndBlinks(t *testing.T) {
	r := testRenderer()
	ws := NewWindowState(400, 200)
	boxTop := 200 - chromePadding - inputBoxHeight
	startX := chromePadding + maskInset

	probe := func(index int) bool {
		x := startX + index*r.MaskAdvance()
		return ws.Img.RGBAAt(x, boxTop+inputBoxHeight/2) == r.pal.Cursor
	}

	r.DrawFrame(ws, FrameState{MaskCount: 2, CursorIndex: 1, CursorVisible: true})
	if !probe(1) {
		t.Error("cursor not drawn at index 1")
	}

	r.DrawFrame(ws, FrameState{MaskCount: 2, CursorIndex: 1, CursorVisible: false})
	if probe(1) {
		t.Error("cursor drawn while blink-off")
	}
}

func TestEncodeBGRASwapsChannels(t *testing.T) {
	ws := NewWindowState(2, 1)
	ws.Img.SetRGBA(0, 0, color.RGBA{R: 0x11, G: 0x22, B: 0x33, A: 0xff})
	ws.Img.SetRGBA(1, 0, color.RGBA{R: 0xaa, G: 0xbb, B: 0xcc, A: 0xff})

	dst := make([]byte, 8)
	ws.EncodeBGRA(dst)

	want := []byte{0x33, 0x22, 0x11, 0xff, 0xcc, 0xbb, 0xaa, 0xff}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst = %x, want %x", dst, want)
		}
	}
}

func TestBlendPixelStraightAlpha(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff})

	blendPixel(img, 0, 0, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, 0x80)

	got := img.RGBAAt(0, 0)
	if got.A != 0xff {
		t.Errorf("alpha = %02x, want ff", got.A)
	}
	// 255*128/255 = 128.
	if got.R != 0x80 || got.G != 0x80 || got.B != 0x80 {
		t.Errorf("blended = %+v, want half gray", got)
	}
}
