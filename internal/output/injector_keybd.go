package output

import (
	"fmt"
	"runtime"
	"time"
	"unicode"

	"github.com/micmonay/keybd_event"
)

var letterKeys = map[rune]int{
	'a': keybd_event.VK_A, 'b': keybd_event.VK_B, 'c': keybd_event.VK_C, 'd': keybd_event.VK_D,
	'e': keybd_event.VK_E, 'f': keybd_event.VK_F, 'g': keybd_event.VK_G, 'h': keybd_event.VK_H,
	'i': keybd_event.VK_I, 'j': keybd_event.VK_J, 'k': keybd_event.VK_K, 'l': keybd_event.VK_L,
	'm': keybd_event.VK_M, 'n': keybd_event.VK_N, 'o': keybd_event.VK_O, 'p': keybd_event.VK_P,
	'q': keybd_event.VK_Q, 'r': keybd_event.VK_R, 's': keybd_event.VK_S, 't': keybd_event.VK_T,
	'u': keybd_event.VK_U, 'v': keybd_event.VK_V, 'w': keybd_event.VK_W, 'x': keybd_event.VK_X,
	'y': keybd_event.VK_Y, 'z': keybd_event.VK_Z,
	'0': keybd_event.VK_0, '1': keybd_event.VK_1, '2': keybd_event.VK_2, '3': keybd_event.VK_3,
	'4': keybd_event.VK_4, '5': keybd_event.VK_5, '6': keybd_event.VK_6, '7': keybd_event.VK_7,
	'8': keybd_event.VK_8, '9': keybd_event.VK_9,
	' ':  keybd_event.VK_SPACE,
	'\n': keybd_event.VK_ENTER,
	'-':  keybd_event.VK_SP2,
	'=':  keybd_event.VK_SP3,
	';':  keybd_event.VK_SP6,
	'\'': keybd_event.VK_SP7,
	',':  keybd_event.VK_SP9,
	'.':  keybd_event.VK_SP10,
	'/':  keybd_event.VK_SP11,
}

// shiftedKeys are US-layout symbols typed with shift held.
var shiftedKeys = map[rune]int{
	'!': keybd_event.VK_1,
	'(': keybd_event.VK_9,
	')': keybd_event.VK_0,
	'_': keybd_event.VK_SP2,
	'+': keybd_event.VK_SP3,
	':': keybd_event.VK_SP6,
	'"': keybd_event.VK_SP7,
	'?': keybd_event.VK_SP11,
}

// keyFor maps a rune to a virtual key and whether shift is held.
func keyFor(r rune) (key int, shift bool, ok bool) {
	if key, ok = shiftedKeys[r]; ok {
		return key, true, true
	}
	if unicode.IsUpper(r) {
		key, ok = letterKeys[unicode.ToLower(r)]
		return key, ok, ok
	}
	key, ok = letterKeys[r]
	return key, false, ok
}

// KeybdInjector sends key events through the OS input API (uinput on Linux,
// SendInput on Windows, CGEvent on macOS). Letters, digits, whitespace and
// common US-layout punctuation have keys; other runes are skipped and
// reported, and the returned count excludes them.
type KeybdInjector struct {
	kb keybd_event.KeyBonding
}

func NewKeybdInjector() (*KeybdInjector, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("init keyboard: %w", err)
	}
	if runtime.GOOS == "linux" {
		// uinput needs a moment before the new device accepts events.
		time.Sleep(2 * time.Second)
	}
	return &KeybdInjector{kb: kb}, nil
}

func (k *KeybdInjector) TypeText(text string) (int, error) {
	typed := 0
	var skipped []rune
	for _, r := range text {
		key, shift, ok := keyFor(r)
		if !ok {
			skipped = append(skipped, r)
			continue
		}
		if err := k.press(key, shift); err != nil {
			return typed, err
		}
		typed++
	}
	if len(skipped) > 0 {
		return typed, fmt.Errorf("no key for %q", string(skipped))
	}
	return typed, nil
}

func (k *KeybdInjector) Backspace(n int) error {
	for i := 0; i < n; i++ {
		if err := k.press(keybd_event.VK_BACKSPACE, false); err != nil {
			return err
		}
	}
	return nil
}

func (k *KeybdInjector) press(key int, shift bool) error {
	k.kb.Clear()
	k.kb.HasSHIFT(shift)
	k.kb.SetKeys(key)
	if err := k.kb.Launching(); err != nil {
		return fmt.Errorf("send key %d: %w", key, err)
	}
	return nil
}
