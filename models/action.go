package models

// ActionKind is the closed set of action types.
type ActionKind string

const (
	KindClick  ActionKind = "CLICK"
	KindDelay  ActionKind = "DELAY"
	KindMove   ActionKind = "MOVE"
	KindKey    ActionKind = "KEY"
	KindScroll ActionKind = "SCROLL"
)

// ActionState applies to CLICK and KEY actions.
type ActionState string

const (
	StateClick ActionState = "click" // press then release
	StateDown  ActionState = "down"  // press only
	StateUp    ActionState = "up"    // release only
)

type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

type LoopMode string

const (
	LoopOnce   LoopMode = "ONCE"
	LoopRepeat LoopMode = "REPEAT" // repeat while the trigger is held
	LoopToggle LoopMode = "TOGGLE"
)

// Action is the flat wire shape of one macro step. Fields that do not apply to
// Type are carried but ignored.
type Action struct {
	ID           string      `json:"id"`
	Type         ActionKind  `json:"type"`
	ActionState  ActionState `json:"actionState"`
	Button       MouseButton `json:"button"`
	Duration     int         `json:"duration"`
	X            int         `json:"x"`
	Y            int         `json:"y"`
	Absolute     bool        `json:"absolute"`
	Key          string      `json:"key"`
	ScrollAmount int         `json:"scrollAmount"`
}

type Macro struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	TriggerKey     string   `json:"triggerKey"`
	LoopMode       LoopMode `json:"loopMode"`
	Actions        []Action `json:"actions"`
	ReleaseActions []Action `json:"releaseActions"`
}

// Clone returns a deep copy so callers can't alias the store's slices.
func (m *Macro) Clone() *Macro {
	c := *m
	c.Actions = append([]Action{}, m.Actions...)
	c.ReleaseActions = append([]Action{}, m.ReleaseActions...)
	return &c
}

// EditTarget selects which of a macro's sequences list mutations apply to.
type EditTarget string

const (
	TargetMain    EditTarget = "main"
	TargetRelease EditTarget = "release"
)

// Sequence returns the list addressed by target.
func (m *Macro) Sequence(target EditTarget) []Action {
	if target == TargetRelease {
		return m.ReleaseActions
	}
	return m.Actions
}

// SetSequence replaces the list addressed by target.
func (m *Macro) SetSequence(target EditTarget, actions []Action) {
	if target == TargetRelease {
		m.ReleaseActions = actions
		return
	}
	m.Actions = actions
}

// ValidLoopMode reports whether mode is one of the known loop modes.
func ValidLoopMode(mode LoopMode) bool {
	switch mode {
	case LoopOnce, LoopRepeat, LoopToggle:
		return true
	}
	return false
}
