package form

import "strings"

// Derive keeps target filled with fn(source) until the operator edits target.
// It returns a function that stops the derivation.
func (f *Form) Derive(target, source string, fn func(string) string) (func(), bool) {
	dst, ok := f.Field(target)
	if !ok {
		return func() {}, false
	}
	src, ok := f.Field(source)
	if !ok {
		return func() {}, false
	}
	return src.Subscribe(func(change Change) {
		if change.Kind != ChangeValue || dst.Edited() {
			return
		}
		_ = dst.SetWithCause(fn(change.New), CauseSync)
	}), true
}

// StudentEmail derives the institutional e-mail from an identification.
func StudentEmail(identification string) string {
	identification = strings.TrimSpace(identification)
	if identification == "" {
		return ""
	}
	return identification + "@est.mep.go.cr"
}

// SelectedLabel is the label given to a filter value that is no longer part
// of the recalculated option list.
const SelectedLabel = "Seleccionado"

// EnsureSelected keeps the value of each named filter present in its options
// so the filter is not hidden when its list comes back empty.
func (f *Form) EnsureSelected(current map[string]string) {
	for name, value := range current {
		field, ok := f.Field(name)
		if !ok || field.Kind() != KindSelect || strings.TrimSpace(value) == "" {
			continue
		}
		field.EnsureOption(Option{Value: value, Label: SelectedLabel})
		_ = field.SetWithCause(value, CauseLoad)
		field.Show(CauseLoad)
	}
}
