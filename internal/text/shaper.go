// Package text provides the shaping and rasterization capability for the
// dialog renderer: font resolution, glyph-to-alpha-mask rasterization, and
// a session-scoped glyph cache.
//
// Layout here is fixed-advance Latin only. Correct shaping of
// variable-width or combining scripts is a non-goal for a PIN dialog; the
// entry itself is always masked, so shaping only affects chrome text.
package text

import (
	"errors"
	"fmt"
	"image"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// ErrFontLoad is wrapped by all font resolution failures. It is fatal at
// startup: the dialog never renders with a missing glyph.
var ErrFontLoad = errors.New("font load failed")

// Bitmap is a rasterized glyph as an 8-bit coverage mask.
type Bitmap struct {
	// Width and Height are the mask dimensions in pixels.
	Width  int
	Height int

	// Alpha holds row-major coverage, one byte per pixel.
	Alpha []byte

	// Left and Top position the mask relative to the glyph origin on the
	// baseline. Top is negative for glyphs extending above the baseline.
	Left int
	Top  int
}

type glyphKey struct {
	r    rune
	size float64
}

// Glyph is a cached rasterization plus its horizontal advance in pixels.
type Glyph struct {
	Bitmap
	Advance int
}

// Shaper rasterizes glyphs from a single resolved font file. It is owned
// by the render loop and is not safe for concurrent use; the cache is
// never invalidated during a session.
type Shaper struct {
	path  string
	faces map[float64]font.Face
	cache map[glyphKey]*Glyph
}

// LoadFont resolves the first readable font in paths and prepares faces
// for the given point sizes. All failures wrap ErrFontLoad.
func LoadFont(paths []string, sizes ...float64) (*Shaper, error) {
	var data []byte
	var path string
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data, path = b, p
			break
		}
	}
	if data == nil {
		return nil, fmt.Errorf("%w: no readable font among %v", ErrFontLoad, paths)
	}

	ttf, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrFontLoad, path, err)
	}

	s := &Shaper{
		path:  path,
		faces: make(map[float64]font.Face, len(sizes)),
		cache: make(map[glyphKey]*Glyph),
	}
	for _, size := range sizes {
		face, err := opentype.NewFace(ttf, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: face %s at %g: %v", ErrFontLoad, path, size, err)
		}
		s.faces[size] = face
	}
	return s, nil
}

// Path returns the resolved font file.
func (s *Shaper) Path() string {
	return s.path
}

// Face returns the prepared face for size.
func (s *Shaper) Face(size float64) (font.Face, error) {
	face, ok := s.faces[size]
	if !ok {
		return nil, fmt.Errorf("%w: no face prepared for size %g", ErrFontLoad, size)
	}
	return face, nil
}

// Glyph rasterizes r at size, serving repeat requests from the cache.
// The returned value is shared; callers must not mutate it.
func (s *Shaper) Glyph(r rune, size float64) (*Glyph, error) {
	key := glyphKey{r: r, size: size}
	if g, ok := s.cache[key]; ok {
		return g, nil
	}

	face, err := s.Face(size)
	if err != nil {
		return nil, err
	}

	dot := fixed.Point26_6{}
	dr, mask, maskp, advance, ok := face.Glyph(dot, r)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no glyph for %q", ErrFontLoad, s.path, r)
	}

	g := &Glyph{
		Bitmap: Bitmap{
			Width:  dr.Dx(),
			Height: dr.Dy(),
			Alpha:  make([]byte, dr.Dx()*dr.Dy()),
			Left:   dr.Min.X,
			Top:    dr.Min.Y,
		},
		Advance: advance.Ceil(),
	}
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			_, _, _, a := mask.At(maskp.X+x, maskp.Y+y).RGBA()
			g.Alpha[y*g.Width+x] = uint8(a >> 8)
		}
	}

	s.cache[key] = g
	return g, nil
}

// Measure returns the advance of text at size, in pixels.
func (s *Shaper) Measure(text string, size float64) (int, error) {
	face, err := s.Face(size)
	if err != nil {
		return 0, err
	}
	return font.MeasureString(face, text).Ceil(), nil
}

// Metrics returns ascent and line height for size, in pixels.
func (s *Shaper) Metrics(size float64) (ascent, height int, err error) {
	face, err := s.Face(size)
	if err != nil {
		return 0, 0, err
	}
	m := face.Metrics()
	return m.Ascent.Ceil(), m.Height.Ceil(), nil
}

// FromMask builds a Glyph from a prerendered coverage mask. The renderer
// tests use it; production glyphs always come from Glyph.
func FromMask(mask image.Image, advance int) *Glyph {
	b := mask.Bounds()
	g := &Glyph{
		Bitmap: Bitmap{
			Width:  b.Dx(),
			Height: b.Dy(),
			Alpha:  make([]byte, b.Dx()*b.Dy()),
			Left:   0,
			Top:    -b.Dy(),
		},
		Advance: advance,
	}
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			_, _, _, a := mask.At(b.Min.X+x, b.Min.Y+y).RGBA()
			g.Alpha[y*g.Width+x] = uint8(a >> 8)
		}
	}
	return g
}
