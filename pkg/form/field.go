package form

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the widget backing a field.
type Kind string

const (
	KindSelect   Kind = "select"
	KindText     Kind = "text"
	KindCheckbox Kind = "checkbox"
)

// Cause records who triggered a mutation.
type Cause int

const (
	// CauseUser marks edits made by the operator.
	CauseUser Cause = iota
	// CauseSync marks edits made by a synchronizer reacting to another field.
	CauseSync
	// CauseLoad marks edits made while an existing record is being loaded.
	CauseLoad
)

func (c Cause) String() string {
	switch c {
	case CauseUser:
		return "user"
	case CauseSync:
		return "sync"
	case CauseLoad:
		return "load"
	default:
		return "unknown"
	}
}

// ChangeKind tells subscribers which aspect of a field changed.
type ChangeKind int

const (
	ChangeValue ChangeKind = iota
	ChangeOptions
	ChangeVisibility
)

// Change is delivered to listeners after a field mutation.
type Change struct {
	Field *Field
	Kind  ChangeKind
	Old   string
	New   string
	Cause Cause
}

// Listener receives field changes.
type Listener func(Change)

// ErrInvalidChoice is returned when a select value is not among its options.
var ErrInvalidChoice = errors.New("form: value is not an available choice")

// Spec declares a field when building a form.
type Spec struct {
	Name        string
	Kind        Kind
	Placeholder string
	Options     []Option
	Value       string
	Hidden      bool
}

// Field is a single observable form widget.
type Field struct {
	form        *Form
	name        string
	kind        Kind
	placeholder string
	choices     []Option
	value       string
	visible     bool
	edited      bool
	listeners   []listenerEntry
}

func newField(f *Form, spec Spec) (*Field, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, errors.New("form: field name is required")
	}
	kind := spec.Kind
	if kind == "" {
		kind = KindSelect
	}
	placeholder := spec.Placeholder
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	field := &Field{
		form:        f,
		name:        name,
		kind:        kind,
		placeholder: placeholder,
		choices:     NormalizeOptions(spec.Options),
		visible:     !spec.Hidden,
	}
	if spec.Value != "" {
		if kind == KindSelect && !field.hasChoice(spec.Value) {
			return nil, fmt.Errorf("form: field %s: initial value %q: %w", name, spec.Value, ErrInvalidChoice)
		}
		field.value = spec.Value
	}
	return field, nil
}

// Name returns the full field name (including any formset prefix).
func (f *Field) Name() string { return f.name }

// BaseName strips a formset prefix such as "matricula_set-0-".
func (f *Field) BaseName() string { return baseName(f.name) }

// Kind returns the widget kind.
func (f *Field) Kind() Kind { return f.kind }

// Placeholder returns the label of the empty choice.
func (f *Field) Placeholder() string { return f.placeholder }

// Value returns the current value; empty means nothing selected.
func (f *Field) Value() string {
	f.form.mu.Lock()
	defer f.form.mu.Unlock()
	return f.value
}

// Label returns the display text of the current value. Select fields report
// the label of the selected option, other kinds report the raw value.
func (f *Field) Label() string {
	f.form.mu.Lock()
	defer f.form.mu.Unlock()
	return f.labelLocked()
}

func (f *Field) labelLocked() string {
	if f.kind != KindSelect {
		return f.value
	}
	if f.value == "" {
		return ""
	}
	for _, opt := range f.choices {
		if opt.Value == f.value {
			return opt.Label
		}
	}
	return ""
}

// Options returns the choices with the leading placeholder option.
func (f *Field) Options() []Option {
	f.form.mu.Lock()
	defer f.form.mu.Unlock()
	out := make([]Option, 0, len(f.choices)+1)
	out = append(out, Option{Value: "", Label: f.placeholder})
	return append(out, f.choices...)
}

// Choices returns the options without the placeholder.
func (f *Field) Choices() []Option {
	f.form.mu.Lock()
	defer f.form.mu.Unlock()
	return cloneOptions(f.choices)
}

// Visible reports whether the field's container is shown.
func (f *Field) Visible() bool {
	f.form.mu.Lock()
	defer f.form.mu.Unlock()
	return f.visible
}

// Edited reports whether the operator typed into the field.
func (f *Field) Edited() bool {
	f.form.mu.Lock()
	defer f.form.mu.Unlock()
	return f.edited
}

// Set changes the value as an operator edit.
func (f *Field) Set(value string) error {
	return f.SetWithCause(value, CauseUser)
}

// SetWithCause changes the value recording who triggered it.
func (f *Field) SetWithCause(value string, cause Cause) error {
	value = strings.TrimSpace(value)
	f.form.mu.Lock()
	if f.kind == KindSelect && value != "" && !f.hasChoice(value) {
		f.form.mu.Unlock()
		return fmt.Errorf("form: field %s: %q: %w", f.name, value, ErrInvalidChoice)
	}
	if cause == CauseUser && f.kind != KindSelect {
		f.edited = true
	}
	old := f.value
	if old == value {
		f.form.mu.Unlock()
		return nil
	}
	f.value = value
	f.form.enqueueLocked(Change{Field: f, Kind: ChangeValue, Old: old, New: value, Cause: cause})
	f.form.mu.Unlock()

	f.form.dispatch()
	return nil
}

// Clear empties the value. It reports whether a value was removed.
func (f *Field) Clear(cause Cause) bool {
	f.form.mu.Lock()
	old := f.value
	if old == "" {
		f.form.mu.Unlock()
		return false
	}
	f.value = ""
	f.form.enqueueLocked(Change{Field: f, Kind: ChangeValue, Old: old, Cause: cause})
	f.form.mu.Unlock()

	f.form.dispatch()
	return true
}

// SetOptions replaces the choices. The current selection survives when it is
// still available, otherwise it is cleared. It reports whether the selection
// was cleared.
func (f *Field) SetOptions(opts []Option, cause Cause) bool {
	next := NormalizeOptions(opts)

	f.form.mu.Lock()
	changed := !sameOptions(f.choices, next)
	f.choices = next
	old := f.value
	cleared := old != "" && !f.hasChoice(old)
	if cleared {
		f.value = ""
	}
	if changed {
		f.form.enqueueLocked(Change{Field: f, Kind: ChangeOptions, Cause: cause})
	}
	if cleared {
		f.form.enqueueLocked(Change{Field: f, Kind: ChangeValue, Old: old, Cause: cause})
	}
	f.form.mu.Unlock()

	f.form.dispatch()
	return cleared
}

// Reset leaves only the placeholder and clears the selection.
func (f *Field) Reset(cause Cause) bool {
	return f.SetOptions(nil, cause)
}

// EnsureOption adds opt when its value is missing. Used to keep a selected
// filter value present after the list was recalculated.
func (f *Field) EnsureOption(opt Option) {
	f.form.mu.Lock()
	if opt.Value == "" || f.hasChoice(opt.Value) {
		f.form.mu.Unlock()
		return
	}
	f.choices = append(f.choices, NormalizeOptions([]Option{opt})...)
	f.form.enqueueLocked(Change{Field: f, Kind: ChangeOptions, Cause: CauseSync})
	f.form.mu.Unlock()

	f.form.dispatch()
}

// Show reveals the field's container.
func (f *Field) Show(cause Cause) { f.setVisible(true, cause) }

// Hide hides the field's container. Values are untouched; callers decide
// whether hiding clears.
func (f *Field) Hide(cause Cause) { f.setVisible(false, cause) }

func (f *Field) setVisible(visible bool, cause Cause) {
	f.form.mu.Lock()
	if f.visible == visible {
		f.form.mu.Unlock()
		return
	}
	f.visible = visible
	change := Change{Field: f, Kind: ChangeVisibility, Cause: cause}
	if visible {
		change.New = "visible"
	} else {
		change.Old = "visible"
	}
	f.form.enqueueLocked(change)
	f.form.mu.Unlock()

	f.form.dispatch()
}

// Subscribe registers fn for every change of this field and returns a
// function that removes it.
func (f *Field) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	f.form.mu.Lock()
	defer f.form.mu.Unlock()
	return f.form.addListenerLocked(&f.listeners, fn)
}

func (f *Field) hasChoice(value string) bool {
	for _, opt := range f.choices {
		if opt.Value == value {
			return true
		}
	}
	return false
}

func sameOptions(a, b []Option) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
