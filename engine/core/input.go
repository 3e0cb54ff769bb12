package core

type KeyCode uint16

const (
	KEY_UNKNOWN KeyCode = iota
	KEY_ESCAPE
	KEY_SPACE
	KEY_ENTER
	KEY_TAB
	KEY_BACKSPACE
	KEY_LEFT
	KEY_RIGHT
	KEY_UP
	KEY_DOWN
	KEY_F1
	KEY_F2
	KEY_F3
	KEY_F4
	KEY_F5
	KEYS_MAX_KEYS
)

// Keyboard state structure
type KeyboardState struct {
	Keys [KEYS_MAX_KEYS]bool
}

// Input holds the current and previous keyboard state. The platform feeds it
// from window callbacks and the engine rolls it over once per frame, both on
// the main thread.
type Input struct {
	current  KeyboardState
	previous KeyboardState
}

func NewInput() *Input {
	return &Input{}
}

// Update copies the current state into the previous one.
func (in *Input) Update() {
	in.previous = in.current
}

func (in *Input) IsKeyDown(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && in.current.Keys[key]
}

func (in *Input) IsKeyUp(key KeyCode) bool {
	return !in.IsKeyDown(key)
}

func (in *Input) WasKeyDown(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && in.previous.Keys[key]
}

// Pressed reports a key that went down since the last Update.
func (in *Input) Pressed(key KeyCode) bool {
	return in.IsKeyDown(key) && !in.WasKeyDown(key)
}

// ProcessKey records a key transition and returns true if the state changed.
func (in *Input) ProcessKey(key KeyCode, pressed bool) bool {
	if key == KEY_UNKNOWN || key >= KEYS_MAX_KEYS {
		return false
	}
	if in.current.Keys[key] == pressed {
		return false
	}
	in.current.Keys[key] = pressed
	return true
}
