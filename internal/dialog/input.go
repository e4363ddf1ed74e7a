package dialog

import (
	"unicode"
	"unicode/utf8"

	"wayentry/internal/security"
)

// TextBuffer holds the secret under entry as an ordered sequence of code
// points with a cursor. It is mutated only by the input coordinator on the
// event-loop goroutine, and wiped on session teardown.
type TextBuffer struct {
	runes  []rune
	cursor int
	max    int
}

// NewTextBuffer creates a buffer. max caps the length; 0 means unlimited.
func NewTextBuffer(max int) *TextBuffer {
	return &TextBuffer{max: max}
}

// Insert places r at the cursor and advances it. Returns false when the
// buffer is at its maximum length.
func (b *TextBuffer) Insert(r rune) bool {
	if b.max > 0 && len(b.runes) >= b.max {
		return false
	}
	b.runes = append(b.runes, 0)
	copy(b.runes[b.cursor+1:], b.runes[b.cursor:])
	b.runes[b.cursor] = r
	b.cursor++
	return true
}

// Backspace removes the code point before the cursor. Removing from an
// empty buffer (or at position 0) is a no-op, not an error.
func (b *TextBuffer) Backspace() bool {
	if b.cursor == 0 {
		return false
	}
	b.cursor--
	return b.removeAt(b.cursor)
}

// Delete removes the code point at the cursor.
func (b *TextBuffer) Delete() bool {
	return b.removeAt(b.cursor)
}

func (b *TextBuffer) removeAt(i int) bool {
	if i < 0 || i >= len(b.runes) {
		return false
	}
	copy(b.runes[i:], b.runes[i+1:])
	// Clear the vacated slot so the secret never lingers past Len.
	b.runes[len(b.runes)-1] = 0
	b.runes = b.runes[:len(b.runes)-1]
	return true
}

// MoveLeft, MoveRight, MoveHome and MoveEnd reposition the cursor and
// report whether it moved.
func (b *TextBuffer) MoveLeft() bool {
	if b.cursor == 0 {
		return false
	}
	b.cursor--
	return true
}

func (b *TextBuffer) MoveRight() bool {
	if b.cursor >= len(b.runes) {
		return false
	}
	b.cursor++
	return true
}

func (b *TextBuffer) MoveHome() bool {
	if b.cursor == 0 {
		return false
	}
	b.cursor = 0
	return true
}

func (b *TextBuffer) MoveEnd() bool {
	if b.cursor == len(b.runes) {
		return false
	}
	b.cursor = len(b.runes)
	return true
}

// Len returns the number of entered code points.
func (b *TextBuffer) Len() int {
	return len(b.runes)
}

// Cursor returns the insertion index.
func (b *TextBuffer) Cursor() int {
	return b.cursor
}

// Bytes returns a fresh UTF-8 copy of the buffer contents. The caller
// owns the copy and is responsible for wiping it.
func (b *TextBuffer) Bytes() []byte {
	out := make([]byte, 0, len(b.runes)*utf8.UTFMax)
	for _, r := range b.runes {
		out = utf8.AppendRune(out, r)
	}
	return out
}

// Wipe zeroes the buffer contents and resets the cursor.
func (b *TextBuffer) Wipe() {
	security.WipeRunes(b.runes[:cap(b.runes)])
	b.runes = b.runes[:0]
	b.cursor = 0
}

// Modifiers is the current modifier key state.
type Modifiers uint8

// Modifier bits.
const (
	ModCtrl Modifiers = 1 << iota
	ModShift
	ModAlt
	ModSuper
)

// Has reports whether all bits in m are held.
func (mods Modifiers) Has(m Modifiers) bool {
	return mods&m == m
}

// xkb modifier mask bits as laid out in common keymaps. Used to resync
// our state from wl_keyboard.modifiers events.
const (
	xkbMaskShift = 1 << 0
	xkbMaskCtrl  = 1 << 2
	xkbMaskAlt   = 1 << 3
	xkbMaskSuper = 1 << 6
)

// Action is what a key event asks the event loop to do.
type Action int

const (
	// ActionNone means nothing visible changed.
	ActionNone Action = iota
	// ActionDirty means the frame must be redrawn.
	ActionDirty
	// ActionConfirm ends the session with the current buffer contents.
	ActionConfirm
	// ActionCancel ends the session without a secret.
	ActionCancel
	// ActionPaste requests the current clipboard payload.
	ActionPaste
)

// Linux evdev keycodes, as delivered by wl_keyboard without keymap
// translation. US layout only; see the package non-goals.
const (
	keyEsc        = 1
	keyBackspace  = 14
	keyTab        = 15
	keyEnter      = 28
	keyLeftCtrl   = 29
	keyLeftShift  = 42
	keyRightShift = 54
	keyLeftAlt    = 56
	keySpace      = 57
	keyKPEnter    = 96
	keyRightCtrl  = 97
	keyRightAlt   = 100
	keyHome       = 102
	keyLeft       = 105
	keyRight      = 106
	keyEnd        = 107
	keyDelete     = 111
	keyLeftMeta   = 125
	keyRightMeta  = 126
	keyV          = 47
)

// keycodeRunes maps printable keycodes to their base and shifted runes.
var keycodeRunes = map[uint32][2]rune{
	2: {'1', '!'}, 3: {'2', '@'}, 4: {'3', '#'}, 5: {'4', '$'},
	6: {'5', '%'}, 7: {'6', '^'}, 8: {'7', '&'}, 9: {'8', '*'},
	10: {'9', '('}, 11: {'0', ')'}, 12: {'-', '_'}, 13: {'=', '+'},
	16: {'q', 'Q'}, 17: {'w', 'W'}, 18: {'e', 'E'}, 19: {'r', 'R'},
	20: {'t', 'T'}, 21: {'y', 'Y'}, 22: {'u', 'U'}, 23: {'i', 'I'},
	24: {'o', 'O'}, 25: {'p', 'P'}, 26: {'[', '{'}, 27: {']', '}'},
	30: {'a', 'A'}, 31: {'s', 'S'}, 32: {'d', 'D'}, 33: {'f', 'F'},
	34: {'g', 'G'}, 35: {'h', 'H'}, 36: {'j', 'J'}, 37: {'k', 'K'},
	38: {'l', 'L'}, 39: {';', ':'}, 40: {'\'', '"'}, 41: {'`', '~'},
	43: {'\\', '|'},
	44: {'z', 'Z'}, 45: {'x', 'X'}, 46: {'c', 'C'}, 47: {'v', 'V'},
	48: {'b', 'B'}, 49: {'n', 'N'}, 50: {'m', 'M'},
	51: {',', '<'}, 52: {'.', '>'}, 53: {'/', '?'},
	57: {' ', ' '},
	// Keypad digits; numlock state is not tracked, digits always insert.
	71: {'7', '7'}, 72: {'8', '8'}, 73: {'9', '9'},
	75: {'4', '4'}, 76: {'5', '5'}, 77: {'6', '6'},
	79: {'1', '1'}, 80: {'2', '2'}, 81: {'3', '3'},
	82: {'0', '0'}, 83: {'.', '.'},
}

// modifierBits maps modifier keycodes to their bit.
var modifierBits = map[uint32]Modifiers{
	keyLeftCtrl:   ModCtrl,
	keyRightCtrl:  ModCtrl,
	keyLeftShift:  ModShift,
	keyRightShift: ModShift,
	keyLeftAlt:    ModAlt,
	keyRightAlt:   ModAlt,
	keyLeftMeta:   ModSuper,
	keyRightMeta:  ModSuper,
}

// Coordinator turns raw key events into text-buffer edits or terminal
// actions. Single-threaded: it runs only on the event-loop goroutine.
type Coordinator struct {
	buf          *TextBuffer
	mods         Modifiers
	pasteEnabled bool
}

// NewCoordinator creates a coordinator over buf.
func NewCoordinator(buf *TextBuffer, pasteEnabled bool) *Coordinator {
	return &Coordinator{buf: buf, pasteEnabled: pasteEnabled}
}

// Buffer returns the coordinated text buffer.
func (c *Coordinator) Buffer() *TextBuffer {
	return c.buf
}

// Modifiers returns the current modifier state.
func (c *Coordinator) Modifiers() Modifiers {
	return c.mods
}

// HandleKey processes one key event (pressed or released) and returns the
// action the event loop should take.
func (c *Coordinator) HandleKey(code uint32, pressed bool) Action {
	if bit, ok := modifierBits[code]; ok {
		if pressed {
			c.mods |= bit
		} else {
			c.mods &^= bit
		}
		return ActionNone
	}
	if !pressed {
		return ActionNone
	}

	switch code {
	case keyEnter, keyKPEnter:
		return ActionConfirm
	case keyEsc:
		return ActionCancel
	case keyBackspace:
		if c.buf.Backspace() {
			return ActionDirty
		}
		return ActionNone
	case keyDelete:
		if c.buf.Delete() {
			return ActionDirty
		}
		return ActionNone
	case keyLeft:
		return moved(c.buf.MoveLeft())
	case keyRight:
		return moved(c.buf.MoveRight())
	case keyHome:
		return moved(c.buf.MoveHome())
	case keyEnd:
		return moved(c.buf.MoveEnd())
	case keyTab:
		return ActionNone
	}

	if c.mods.Has(ModCtrl) {
		if code == keyV && c.pasteEnabled {
			return ActionPaste
		}
		return ActionNone
	}
	if c.mods&(ModAlt|ModSuper) != 0 {
		return ActionNone
	}

	pair, ok := keycodeRunes[code]
	if !ok {
		return ActionNone
	}
	r := pair[0]
	if c.mods.Has(ModShift) {
		r = pair[1]
	}
	if c.buf.Insert(r) {
		return ActionDirty
	}
	return ActionNone
}

// HandleModifierMask resyncs modifier state from a compositor
// wl_keyboard.modifiers event (depressed mask).
func (c *Coordinator) HandleModifierMask(depressed uint32) {
	var mods Modifiers
	if depressed&xkbMaskShift != 0 {
		mods |= ModShift
	}
	if depressed&xkbMaskCtrl != 0 {
		mods |= ModCtrl
	}
	if depressed&xkbMaskAlt != 0 {
		mods |= ModAlt
	}
	if depressed&xkbMaskSuper != 0 {
		mods |= ModSuper
	}
	c.mods = mods
}

// Paste inserts clipboard text, dropping control characters. Returns the
// number of code points inserted.
func (c *Coordinator) Paste(payload []byte) int {
	inserted := 0
	for _, r := range string(payload) {
		if r == utf8.RuneError || unicode.IsControl(r) {
			continue
		}
		if !c.buf.Insert(r) {
			break
		}
		inserted++
	}
	return inserted
}

func moved(ok bool) Action {
	if ok {
		return ActionDirty
	}
	return ActionNone
}
