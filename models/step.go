package models

// Step is the typed view of an Action: one variant per kind, each carrying only
// the fields that kind uses. The set of implementations is closed.
type Step interface {
	Kind() ActionKind
	isStep()
}

type KeyStep struct {
	Key   string
	State ActionState
}

type ClickStep struct {
	Button MouseButton
	State  ActionState
}

type MoveStep struct {
	X, Y     int
	Absolute bool
}

type DelayStep struct {
	Duration int // milliseconds
}

type ScrollStep struct {
	Amount int // positive scrolls up
}

func (KeyStep) Kind() ActionKind    { return KindKey }
func (ClickStep) Kind() ActionKind  { return KindClick }
func (MoveStep) Kind() ActionKind   { return KindMove }
func (DelayStep) Kind() ActionKind  { return KindDelay }
func (ScrollStep) Kind() ActionKind { return KindScroll }

func (KeyStep) isStep()    {}
func (ClickStep) isStep()  {}
func (MoveStep) isStep()   {}
func (DelayStep) isStep()  {}
func (ScrollStep) isStep() {}

// Step projects the flat action onto its variant. Missing state defaults to
// click and a missing button to left. An unknown kind yields a zero delay.
func (a Action) Step() Step {
	state := a.ActionState
	if state == "" {
		state = StateClick
	}
	switch a.Type {
	case KindKey:
		return KeyStep{Key: a.Key, State: state}
	case KindClick:
		button := a.Button
		if button == "" {
			button = ButtonLeft
		}
		return ClickStep{Button: button, State: state}
	case KindMove:
		return MoveStep{X: a.X, Y: a.Y, Absolute: a.Absolute}
	case KindScroll:
		return ScrollStep{Amount: a.ScrollAmount}
	case KindDelay:
		return DelayStep{Duration: a.Duration}
	}
	return DelayStep{}
}

// FromStep builds the fully populated wire shape for a step.
func FromStep(id string, s Step) Action {
	a := Action{
		ID:          id,
		Type:        s.Kind(),
		ActionState: StateClick,
		Button:      ButtonLeft,
	}
	switch v := s.(type) {
	case KeyStep:
		a.Key = v.Key
		a.ActionState = v.State
	case ClickStep:
		a.Button = v.Button
		a.ActionState = v.State
	case MoveStep:
		a.X, a.Y, a.Absolute = v.X, v.Y, v.Absolute
	case DelayStep:
		a.Duration = v.Duration
	case ScrollStep:
		a.ScrollAmount = v.Amount
	}
	return a
}
