package text

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

var systemFontPaths = []string{
	"/usr/share/fonts/X11/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
}

func loadSystemFont(t *testing.T, sizes ...float64) *Shaper {
	t.Helper()
	s, err := LoadFont(systemFontPaths, sizes...)
	if err != nil {
		t.Skipf("no system font available: %v", err)
	}
	return s
}

func TestLoadFontNoPaths(t *testing.T) {
	_, err := LoadFont([]string{filepath.Join(t.TempDir(), "missing.ttf")}, 14)
	if err == nil {
		t.Fatal("expected error for unreadable font")
	}
	if !os.IsNotExist(err) && err.Error() == "" {
		t.Error("error should describe the failure")
	}
}

func TestLoadFontGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.ttf")
	if err := os.WriteFile(path, []byte("not a font"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFont([]string{path}, 14); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestGlyphCacheIdentity(t *testing.T) {
	s := loadSystemFont(t, 16)

	g1, err := s.Glyph('*', 16)
	if err != nil {
		t.Fatalf("Glyph: %v", err)
	}
	g2, err := s.Glyph('*', 16)
	if err != nil {
		t.Fatalf("Glyph: %v", err)
	}
	if g1 != g2 {
		t.Error("second lookup should return the cached glyph")
	}
	if g1.Advance <= 0 {
		t.Errorf("advance = %d, want positive", g1.Advance)
	}
	if g1.Width <= 0 || g1.Height <= 0 {
		t.Errorf("empty bitmap %dx%d", g1.Width, g1.Height)
	}
	var coverage int
	for _, a := range g1.Alpha {
		if a > 0 {
			coverage++
		}
	}
	if coverage == 0 {
		t.Error("mask glyph has no coverage")
	}
}

func TestGlyphUnpreparedSize(t *testing.T) {
	s := loadSystemFont(t, 16)
	if _, err := s.Glyph('*', 99); err == nil {
		t.Error("expected error for unprepared size")
	}
}

func TestMeasureMonotonic(t *testing.T) {
	s := loadSystemFont(t, 14)
	short, err := s.Measure("PIN", 14)
	if err != nil {
		t.Fatal(err)
	}
	long, err := s.Measure("PIN entry prompt", 14)
	if err != nil {
		t.Fatal(err)
	}
	if long <= short {
		t.Errorf("Measure not monotonic: %d <= %d", long, short)
	}
}

func TestFromMask(t *testing.T) {
	m := image.NewAlpha(image.Rect(0, 0, 4, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 4; x++ {
			m.SetAlpha(x, y, color.Alpha{A: 0xff})
		}
	}
	g := FromMask(m, 6)
	if g.Width != 4 || g.Height != 6 || g.Advance != 6 {
		t.Errorf("unexpected glyph %+v", g)
	}
	for i, a := range g.Alpha {
		if a != 0xff {
			t.Fatalf("alpha[%d] = %d", i, a)
		}
	}
}
