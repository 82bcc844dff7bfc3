package form

import (
	"fmt"
	"strings"
	"sync"
)

// Form is a named collection of fields plus its formset rows.
//
// All fields share the form's lock. Changes are queued while the lock is held
// and delivered after it is released, strictly in order and never
// concurrently, so listeners may mutate other fields freely.
type Form struct {
	mu sync.Mutex

	name   string
	fields []*Field
	byName map[string]*Field
	rows   map[string]int
	added  []Row

	queue     []Change
	draining  bool
	idle      *sync.Cond
	listeners []listenerEntry
	rowHooks  []rowEntry
	nextID    int
}

type listenerEntry struct {
	id int
	fn Listener
}

type rowEntry struct {
	id int
	fn RowListener
}

// Row is a formset row added at runtime.
type Row struct {
	Prefix string
	Index  int
	Fields []*Field
}

// Field returns the row field whose base name is name.
func (r Row) Field(name string) (*Field, bool) {
	for _, field := range r.Fields {
		if field.BaseName() == name {
			return field, true
		}
	}
	return nil, false
}

// RowListener is notified when a formset row is added.
type RowListener func(Row)

// New builds a form from field specs.
func New(name string, specs ...Spec) (*Form, error) {
	f := &Form{
		name:   strings.TrimSpace(name),
		byName: make(map[string]*Field, len(specs)),
		rows:   make(map[string]int),
	}
	f.idle = sync.NewCond(&f.mu)
	for _, spec := range specs {
		if _, err := f.AddField(spec); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// MustNew panics when the form cannot be built. Useful for tests.
func MustNew(name string, specs ...Spec) *Form {
	f, err := New(name, specs...)
	if err != nil {
		panic(err)
	}
	return f
}

// Name returns the form name.
func (f *Form) Name() string { return f.name }

// AddField appends a field. Names must be unique within the form.
func (f *Form) AddField(spec Spec) (*Field, error) {
	field, err := newField(f, spec)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byName[field.name]; exists {
		return nil, fmt.Errorf("form: duplicate field %q", field.name)
	}
	f.fields = append(f.fields, field)
	f.byName[field.name] = field
	return field, nil
}

// Field returns the field registered under the exact name.
func (f *Form) Field(name string) (*Field, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	field, ok := f.byName[name]
	return field, ok
}

// Fields returns every field in declaration order, template rows included.
func (f *Form) Fields() []*Field {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Field(nil), f.fields...)
}

// Values snapshots the current values keyed by field name.
func (f *Form) Values() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.fields))
	for _, field := range f.fields {
		if isTemplateName(field.name) {
			continue
		}
		out[field.name] = field.value
	}
	return out
}

// AddRow appends a formset row. Field names become "<prefix>-<index>-<name>".
// Row listeners run after every field of the row exists.
func (f *Form) AddRow(prefix string, specs ...Spec) (Row, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return Row{}, fmt.Errorf("form: row prefix is required")
	}

	f.mu.Lock()
	index := f.rows[prefix]
	f.rows[prefix] = index + 1
	f.mu.Unlock()

	row := Row{Prefix: prefix, Index: index}
	for _, spec := range specs {
		spec.Name = fmt.Sprintf("%s-%d-%s", prefix, index, spec.Name)
		field, err := f.AddField(spec)
		if err != nil {
			return Row{}, err
		}
		row.Fields = append(row.Fields, field)
	}

	f.mu.Lock()
	f.added = append(f.added, row)
	hooks := make([]RowListener, 0, len(f.rowHooks))
	for _, entry := range f.rowHooks {
		hooks = append(hooks, entry.fn)
	}
	f.mu.Unlock()

	for _, hook := range hooks {
		hook(row)
	}
	return row, nil
}

// Rows returns the formset rows added so far, in order.
func (f *Form) Rows() []Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Row(nil), f.added...)
}

// OnRowAdded registers fn for future formset rows of this form only.
func (f *Form) OnRowAdded(fn RowListener) func() {
	if fn == nil {
		return func() {}
	}
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.rowHooks = append(f.rowHooks, rowEntry{id: id, fn: fn})
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, entry := range f.rowHooks {
			if entry.id == id {
				f.rowHooks = append(f.rowHooks[:i], f.rowHooks[i+1:]...)
				return
			}
		}
	}
}

// OnChange registers fn for changes of any field in the form.
func (f *Form) OnChange(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addListenerLocked(&f.listeners, fn)
}

func (f *Form) addListenerLocked(list *[]listenerEntry, fn Listener) func() {
	id := f.nextID
	f.nextID++
	*list = append(*list, listenerEntry{id: id, fn: fn})

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		entries := *list
		for i, entry := range entries {
			if entry.id == id {
				*list = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

func (f *Form) enqueueLocked(change Change) {
	f.queue = append(f.queue, change)
}

// dispatch drains the change queue. Only one goroutine drains at a time;
// changes queued by others while draining are delivered by the drainer.
func (f *Form) dispatch() {
	f.mu.Lock()
	if f.draining {
		f.mu.Unlock()
		return
	}
	f.draining = true
	for len(f.queue) > 0 {
		change := f.queue[0]
		f.queue = f.queue[1:]

		targets := make([]Listener, 0, len(change.Field.listeners)+len(f.listeners))
		for _, entry := range change.Field.listeners {
			targets = append(targets, entry.fn)
		}
		for _, entry := range f.listeners {
			targets = append(targets, entry.fn)
		}

		f.mu.Unlock()
		for _, fn := range targets {
			fn(change)
		}
		f.mu.Lock()
	}
	f.draining = false
	f.idle.Broadcast()
	f.mu.Unlock()
}

// Drain blocks until every queued change has been delivered, including the
// ones another goroutine is delivering. Calling it from a listener deadlocks.
func (f *Form) Drain() {
	f.mu.Lock()
	for f.draining || len(f.queue) > 0 {
		f.idle.Wait()
	}
	f.mu.Unlock()
}
