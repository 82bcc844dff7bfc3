package dependent

// FieldState tracks a dependent field through show, fill and refetch.
type FieldState int

const (
	StateVisible FieldState = iota
	StateHidden
	StateFilled
	// StatePending means the value was cleared or kept while a refetch of the
	// options is in flight.
	StatePending
)

func (s FieldState) String() string {
	switch s {
	case StateHidden:
		return "hidden"
	case StateVisible:
		return "visible"
	case StateFilled:
		return "filled"
	case StatePending:
		return "pending"
	default:
		return "unknown"
	}
}

type event int

const (
	evShow event = iota
	evHide
	evFill
	evEmpty
	evFetch
	evSettle
)

func (e event) String() string {
	return [...]string{"show", "hide", "fill", "empty", "fetch", "settle"}[e]
}

// next returns the state reached from s on ev. filled reports whether the
// field holds a value once the event applied. ok is false for transitions
// that are not part of the machine.
func next(s FieldState, ev event, filled bool) (FieldState, bool) {
	settled := StateVisible
	if filled {
		settled = StateFilled
	}
	switch s {
	case StateHidden:
		switch ev {
		case evShow:
			return settled, true
		case evHide, evFill, evEmpty:
			return StateHidden, true
		}
	case StateVisible:
		switch ev {
		case evHide:
			return StateHidden, true
		case evFill:
			return StateFilled, true
		case evEmpty, evShow:
			return StateVisible, true
		case evFetch:
			return StatePending, true
		}
	case StateFilled:
		switch ev {
		case evHide:
			return StateHidden, true
		case evEmpty:
			return StateVisible, true
		case evFill, evShow:
			return StateFilled, true
		case evFetch:
			return StatePending, true
		}
	case StatePending:
		switch ev {
		case evSettle:
			return settled, true
		case evHide:
			return StateHidden, true
		case evFill, evEmpty, evFetch, evShow:
			return StatePending, true
		}
	}
	return s, false
}
