package dialog

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"wayentry/internal/config"
	"wayentry/internal/text"
)

// Chrome layout constants, sized for the fixed 400x200 default geometry
// but expressed relative to the window so other sizes stay usable.
const (
	chromePadding  = 20
	inputBoxHeight = 40
	maskInset      = 10
	maskGap        = 4
	cursorWidth    = 2
	cursorInset    = 10
)

// WindowState is the owned pixel state of the dialog window: a fixed-size
// row-major RGBA buffer and a dirty flag. Only the renderer writes the
// pixels, only the event loop reads the flag, both on the loop goroutine.
type WindowState struct {
	Width  int
	Height int
	Img    *image.RGBA
	Dirty  bool
}

// NewWindowState allocates the window pixel buffer.
func NewWindowState(width, height int) *WindowState {
	return &WindowState{
		Width:  width,
		Height: height,
		Img:    image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// EncodeBGRA blits the RGBA pixels into dst as little-endian ARGB8888,
// the layout wl_shm expects.
func (ws *WindowState) EncodeBGRA(dst []byte) {
	src := ws.Img.Pix
	n := ws.Width * ws.Height * 4
	if len(dst) < n {
		n = len(dst)
	}
	for i := 0; i+3 < n; i += 4 {
		dst[i] = src[i+2]   // B
		dst[i+1] = src[i+1] // G
		dst[i+2] = src[i]   // R
		dst[i+3] = src[i+3] // A
	}
}

// Palette is the resolved dialog palette. All colors are opaque.
type Palette struct {
	Background color.RGBA
	Box        color.RGBA
	Border     color.RGBA
	Text       color.RGBA
	Label      color.RGBA
	Cursor     color.RGBA
}

// PaletteFromConfig resolves the configured color strings.
func PaletteFromConfig(cc *config.ColorConfig) (Palette, error) {
	var p Palette
	for _, f := range []struct {
		name string
		src  string
		dst  *color.RGBA
	}{
		{"background", cc.Background, &p.Background},
		{"box", cc.Box, &p.Box},
		{"border", cc.Border, &p.Border},
		{"text", cc.Text, &p.Text},
		{"label", cc.Label, &p.Label},
		{"cursor", cc.Cursor, &p.Cursor},
	} {
		r, g, b, err := config.ParseColor(f.src)
		if err != nil {
			return Palette{}, fmt.Errorf("palette %s: %w", f.name, err)
		}
		*f.dst = color.RGBA{R: r, G: g, B: b, A: 0xff}
	}
	return p, nil
}

// FrameState is everything a frame's content depends on. Drawing is a
// deterministic function of it; the secret itself never reaches the
// renderer, only its length and cursor position.
type FrameState struct {
	Title         string
	Description   string
	Prompt        string
	MaskCount     int
	CursorIndex   int
	CursorVisible bool
}

// Renderer draws dialog frames into a WindowState. The mask glyph is
// rasterized once at construction and reused for every entry position;
// chrome text goes through the label face. All compositing uses straight
// (non-premultiplied) alpha over the opaque background.
type Renderer struct {
	pal         Palette
	labelFace   font.Face
	labelAscent int
	labelHeight int
	mask        *text.Glyph
	maskAdvance int
}

// NewRenderer prepares a renderer from the loaded shaper. Failure to
// rasterize the mask glyph is fatal here, before any window exists: the
// dialog never renders entries with a missing glyph.
func NewRenderer(shaper *text.Shaper, cfg *config.Config) (*Renderer, error) {
	pal, err := PaletteFromConfig(&cfg.Colors)
	if err != nil {
		return nil, err
	}
	labelFace, err := shaper.Face(cfg.Font.LabelSize)
	if err != nil {
		return nil, err
	}
	mask, err := shaper.Glyph(cfg.MaskGlyph(), cfg.Font.MaskSize)
	if err != nil {
		return nil, err
	}
	ascent, height, err := shaper.Metrics(cfg.Font.LabelSize)
	if err != nil {
		return nil, err
	}
	return newRenderer(pal, labelFace, ascent, height, mask), nil
}

// newRenderer assembles a renderer from resolved parts. Tests construct
// fake glyphs through here.
func newRenderer(pal Palette, labelFace font.Face, ascent, height int, mask *text.Glyph) *Renderer {
	return &Renderer{
		pal:         pal,
		labelFace:   labelFace,
		labelAscent: ascent,
		labelHeight: height,
		mask:        mask,
		maskAdvance: mask.Advance + maskGap,
	}
}

// MaskAdvance returns the fixed horizontal advance per masked entry.
func (r *Renderer) MaskAdvance() int {
	return r.maskAdvance
}

// DrawFrame renders one complete frame. Every entered code point becomes
// the same mask glyph at a fixed advance; the literal characters are
// never drawn.
func (r *Renderer) DrawFrame(ws *WindowState, fs FrameState) {
	draw.Draw(ws.Img, ws.Img.Bounds(), image.NewUniform(r.pal.Background), image.Point{}, draw.Src)

	// Title and description above the entry box, prompt just over it.
	y := chromePadding + r.labelAscent
	if fs.Title != "" {
		r.drawLabel(ws, fs.Title, chromePadding, y)
		y += r.labelHeight + 4
	}
	for _, line := range strings.Split(fs.Description, "\n") {
		if line != "" {
			r.drawLabel(ws, line, chromePadding, y)
		}
		y += r.labelHeight
	}

	boxTop := ws.Height - chromePadding - inputBoxHeight
	if fs.Prompt != "" {
		r.drawLabel(ws, fs.Prompt, chromePadding, boxTop-6)
	}

	box := image.Rect(chromePadding, boxTop, ws.Width-chromePadding, boxTop+inputBoxHeight)
	r.fillRect(ws, box, r.pal.Border)
	r.fillRect(ws, box.Inset(1), r.pal.Box)

	r.drawMasks(ws, box, fs)
}

// drawMasks draws the masked entry row and the cursor.
func (r *Renderer) drawMasks(ws *WindowState, box image.Rectangle, fs FrameState) {
	startX := box.Min.X + maskInset
	baseline := box.Min.Y + (inputBoxHeight+r.maskHeight())/2
	limit := box.Max.X - maskInset

	for i := 0; i < fs.MaskCount; i++ {
		x := startX + i*r.maskAdvance
		if x+r.mask.Advance > limit {
			break
		}
		r.compositeGlyph(ws, r.mask, x, baseline, r.pal.Text)
	}

	if fs.CursorVisible {
		cx := startX + fs.CursorIndex*r.maskAdvance
		if cx+cursorWidth <= limit {
			cursor := image.Rect(cx, box.Min.Y+cursorInset, cx+cursorWidth, box.Max.Y-cursorInset)
			r.fillRect(ws, cursor, r.pal.Cursor)
		}
	}
}

func (r *Renderer) maskHeight() int {
	return r.mask.Height
}

func (r *Renderer) drawLabel(ws *WindowState, s string, x, baselineY int) {
	d := &font.Drawer{
		Dst:  ws.Img,
		Src:  image.NewUniform(r.pal.Label),
		Face: r.labelFace,
		Dot:  fixed.P(x, baselineY),
	}
	d.DrawString(s)
}

func (r *Renderer) fillRect(ws *WindowState, rect image.Rectangle, c color.RGBA) {
	draw.Draw(ws.Img, rect.Intersect(ws.Img.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}

// compositeGlyph blends a coverage mask in c onto the frame at the glyph
// origin (x on the baseline). Straight alpha: out = src*a + dst*(1-a).
func (r *Renderer) compositeGlyph(ws *WindowState, g *text.Glyph, x, baselineY int, c color.RGBA) {
	bounds := ws.Img.Bounds()
	for gy := 0; gy < g.Height; gy++ {
		py := baselineY + g.Top + gy
		if py < bounds.Min.Y || py >= bounds.Max.Y {
			continue
		}
		for gx := 0; gx < g.Width; gx++ {
			px := x + g.Left + gx
			if px < bounds.Min.X || px >= bounds.Max.X {
				continue
			}
			a := g.Alpha[gy*g.Width+gx]
			if a == 0 {
				continue
			}
			blendPixel(ws.Img, px, py, c, a)
		}
	}
}

func blendPixel(img *image.RGBA, x, y int, c color.RGBA, coverage uint8) {
	i := img.PixOffset(x, y)
	a := uint16(coverage)
	inv := 255 - a
	img.Pix[i] = uint8((uint16(c.R)*a + uint16(img.Pix[i])*inv) / 255)
	img.Pix[i+1] = uint8((uint16(c.G)*a + uint16(img.Pix[i+1])*inv) / 255)
	img.Pix[i+2] = uint8((uint16(c.B)*a + uint16(img.Pix[i+2])*inv) / 255)
	img.Pix[i+3] = 0xff
}
