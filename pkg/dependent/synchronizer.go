package dependent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/goliatone/go-matricula/pkg/form"
	"github.com/goliatone/go-matricula/pkg/options"
	"github.com/goliatone/go-matricula/pkg/visibility"
)

var (
	ErrAlreadyBound = errors.New("dependent: synchronizer already bound")
	ErrNotBound     = errors.New("dependent: synchronizer is not bound")
	ErrUnknownField = errors.New("dependent: no binding uses the field")
	ErrUnknownRule  = errors.New("dependent: unknown visibility rule")
)

// Synchronizer keeps the dependents of a form consistent with their drivers.
type Synchronizer struct {
	form     *form.Form
	edges    []Edge
	rules    []Rule
	logger   *slog.Logger
	reporter Reporter
	extras   map[string]any

	// applyMu serializes applying fetch results so a result checked as
	// current cannot be overtaken by an older one.
	applyMu sync.Mutex

	mu       sync.Mutex
	idle     *sync.Cond
	ctx      context.Context
	cancel   context.CancelFunc
	bound    bool
	loading  bool
	saved    map[string]string
	inflight int
	edgeBind []*edgeBinding
	ruleBind []*ruleBinding
	states   map[*form.Field]FieldState
	unsubs   []func()
}

type edgeBinding struct {
	edge       Edge
	row        *form.Row
	drivers    []*form.Field
	dependents []*form.Field

	// guarded by Synchronizer.mu
	gen      uint64
	cancel   context.CancelFunc
	observed bool
}

type ruleBinding struct {
	rule    Rule
	row     *form.Row
	driver  *form.Field
	targets []*form.Field
	// kept holds the hidden targets whose saved value survived the load,
	// guarded by Synchronizer.mu.
	kept map[*form.Field]keptValue
}

type keptValue struct {
	driver string
	value  string
}

// Option customizes a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		if s == nil || logger == nil {
			return
		}
		s.logger = logger
	}
}

// WithReporter replaces the default log reporter.
func WithReporter(reporter Reporter) Option {
	return func(s *Synchronizer) {
		if s == nil || reporter == nil {
			return
		}
		s.reporter = reporter
	}
}

// WithEdges registers edges.
func WithEdges(edges ...Edge) Option {
	return func(s *Synchronizer) {
		if s == nil {
			return
		}
		s.edges = append(s.edges, edges...)
	}
}

// WithRules registers visibility rules.
func WithRules(rules ...Rule) Option {
	return func(s *Synchronizer) {
		if s == nil {
			return
		}
		s.rules = append(s.rules, rules...)
	}
}

// WithExtras exposes caller data to visibility rules as Context.Extras.
func WithExtras(extras map[string]any) Option {
	return func(s *Synchronizer) {
		if s == nil {
			return
		}
		s.extras = extras
	}
}

// New builds a synchronizer for f. Edges and rules are validated here and
// bound by Bind.
func New(f *form.Form, opts ...Option) (*Synchronizer, error) {
	if f == nil {
		return nil, errors.New("dependent: form is required")
	}
	s := &Synchronizer{
		form:   f,
		logger: slog.Default(),
		states: make(map[*form.Field]FieldState),
	}
	s.idle = sync.NewCond(&s.mu)
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.reporter == nil {
		s.reporter = LogReporter{Logger: s.logger}
	}
	for _, edge := range s.edges {
		if err := edge.validate(); err != nil {
			return nil, err
		}
	}
	for _, rule := range s.rules {
		if err := rule.validate(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Bind subscribes every edge and rule to the form, for the top-level fields,
// the rows that already exist and every row added later. Fetches started by
// field changes inherit ctx.
func (s *Synchronizer) Bind(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.bound {
		s.mu.Unlock()
		return ErrAlreadyBound
	}
	s.bound = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.bindScope(nil)
	for _, row := range s.form.Rows() {
		row := row
		s.bindScope(&row)
	}
	stop := s.form.OnRowAdded(func(row form.Row) {
		s.bindScope(&row)
	})
	s.addUnsub(stop)
	return nil
}

// Close unsubscribes everything and cancels in-flight fetches.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	if s.cancel != nil {
		s.cancel()
	}
	for _, b := range s.edgeBind {
		if b.cancel != nil {
			b.cancel()
		}
		b.gen++
	}
	s.mu.Unlock()
	for _, stop := range unsubs {
		stop()
	}
}

func (s *Synchronizer) addUnsub(stop func()) {
	s.mu.Lock()
	s.unsubs = append(s.unsubs, stop)
	s.mu.Unlock()
}

func (s *Synchronizer) bindScope(row *form.Row) {
	for _, edge := range s.edges {
		b, ok := s.resolveEdge(edge, row)
		if !ok {
			continue
		}
		s.mu.Lock()
		s.edgeBind = append(s.edgeBind, b)
		s.mu.Unlock()
		for _, dep := range b.dependents {
			s.track(dep)
		}
		for _, driver := range b.drivers {
			b := b
			s.addUnsub(driver.Subscribe(func(change form.Change) {
				if change.Kind != form.ChangeValue {
					return
				}
				s.driverChanged(s.baseContext(), b, change)
			}))
		}
	}

	for _, rule := range s.rules {
		rb, ok := s.resolveRule(rule, row)
		if !ok {
			continue
		}
		s.mu.Lock()
		s.ruleBind = append(s.ruleBind, rb)
		s.mu.Unlock()
		for _, target := range rb.targets {
			s.track(target)
		}
		s.addUnsub(rb.driver.Subscribe(func(change form.Change) {
			if change.Kind == form.ChangeVisibility {
				return
			}
			_, _ = s.evaluate(rb, rb.driver.Value(), change.Cause)
		}))
	}
}

func (s *Synchronizer) resolveEdge(edge Edge, row *form.Row) (*edgeBinding, bool) {
	b := &edgeBinding{edge: edge, row: row}
	for _, p := range edge.Drivers {
		field, ok := s.form.LocateIn(row, p)
		if !ok {
			s.logger.Debug("edge driver not found", "edge", edge.Name, "driver", string(p))
			return nil, false
		}
		b.drivers = append(b.drivers, field)
	}
	for _, p := range edge.Optional {
		if field, ok := s.form.LocateIn(row, p); ok {
			b.drivers = append(b.drivers, field)
		}
	}
	for _, p := range edge.Dependents {
		if field, ok := s.form.LocateIn(row, p); ok {
			b.dependents = append(b.dependents, field)
		}
	}
	if len(b.dependents) == 0 {
		s.logger.Debug("edge has no dependents in scope", "edge", edge.Name)
		return nil, false
	}
	if row != nil && !touchesRow(row, b.drivers, b.dependents) {
		return nil, false
	}
	return b, true
}

func (s *Synchronizer) resolveRule(rule Rule, row *form.Row) (*ruleBinding, bool) {
	driver, ok := s.form.LocateIn(row, rule.Driver)
	if !ok {
		return nil, false
	}
	rb := &ruleBinding{rule: rule, row: row, driver: driver}
	for _, p := range rule.Targets {
		if field, ok := s.form.LocateIn(row, p); ok {
			rb.targets = append(rb.targets, field)
		}
	}
	if len(rb.targets) == 0 {
		return nil, false
	}
	if row != nil && !touchesRow(row, []*form.Field{driver}, rb.targets) {
		return nil, false
	}
	return rb, true
}

func touchesRow(row *form.Row, groups ...[]*form.Field) bool {
	for _, group := range groups {
		for _, field := range group {
			for _, rowField := range row.Fields {
				if field == rowField {
					return true
				}
			}
		}
	}
	return false
}

func (s *Synchronizer) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

func (s *Synchronizer) isLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// OnDriverChange reacts to the current value of the named driver as if it
// had just changed. Fetches started here inherit ctx.
func (s *Synchronizer) OnDriverChange(ctx context.Context, driver string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p := form.Pattern(driver)
	s.mu.Lock()
	edges := append([]*edgeBinding(nil), s.edgeBind...)
	rules := append([]*ruleBinding(nil), s.ruleBind...)
	s.mu.Unlock()

	matched := false
	for _, b := range edges {
		for _, field := range b.drivers {
			if field.Name() != driver && !p.Match(field.Name()) {
				continue
			}
			matched = true
			s.driverChanged(ctx, b, form.Change{Field: field, Kind: form.ChangeValue, New: field.Value(), Cause: form.CauseSync})
			break
		}
	}
	for _, rb := range rules {
		if rb.driver.Name() != driver && !p.Match(rb.driver.Name()) {
			continue
		}
		matched = true
		if _, err := s.evaluate(rb, rb.driver.Value(), form.CauseSync); err != nil {
			return err
		}
	}
	if !matched {
		return fmt.Errorf("%w: %s", ErrUnknownField, driver)
	}
	return nil
}

func (s *Synchronizer) driverChanged(ctx context.Context, b *edgeBinding, change form.Change) {
	s.mu.Lock()
	first := !b.observed
	b.observed = true
	cause := form.CauseSync
	if s.loading || change.Cause == form.CauseLoad {
		cause = form.CauseLoad
	}
	s.mu.Unlock()

	view := scopeView{form: s.form, row: b.row, first: first}
	shouldClear := cause != form.CauseLoad && b.edge.policy().ShouldClear(view, change)

	if b.edge.Fetcher == nil {
		if shouldClear {
			s.clearDependents(b, cause)
		}
		return
	}

	values, complete := b.values()
	if !complete {
		s.resetDependents(b, cause)
		return
	}
	s.fetch(ctx, b, values, cause, shouldClear)
}

// values snapshots the drivers keyed by base name. complete is false when a
// required driver is empty.
func (b *edgeBinding) values() (map[string]string, bool) {
	values := make(map[string]string, len(b.drivers))
	filled := 0
	for _, driver := range b.drivers {
		v := driver.Value()
		values[driver.BaseName()] = v
		if v != "" {
			filled++
		}
	}
	if b.edge.AllowPartial {
		return values, filled > 0
	}
	return values, filled == len(b.drivers)
}

func (s *Synchronizer) clearDependents(b *edgeBinding, cause form.Cause) {
	for _, dep := range b.dependents {
		if dep.Clear(cause) {
			s.reporter.FieldCleared(dep.Name(), cause)
		}
	}
}

// resetDependents drops any in-flight fetch and leaves only the placeholder.
func (s *Synchronizer) resetDependents(b *edgeBinding, cause form.Cause) {
	s.mu.Lock()
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.gen++
	s.settleLocked(b)
	s.mu.Unlock()

	for _, dep := range b.dependents {
		if dep.Reset(cause) {
			s.reporter.FieldCleared(dep.Name(), cause)
		}
	}
}

// fetch loads the options of b's dependents. A policy clear is applied with
// the result, so a failed or stale fetch leaves value and options untouched.
func (s *Synchronizer) fetch(parent context.Context, b *edgeBinding, values map[string]string, cause form.Cause, clearFirst bool) {
	s.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.gen++
	gen := b.gen
	ctx, cancel := context.WithCancel(parent)
	b.cancel = cancel
	s.inflight++
	for _, dep := range b.dependents {
		s.transitionLocked(dep, evFetch)
	}
	s.mu.Unlock()

	req := options.Request{Edge: b.edge.Name, Values: values}
	go func() {
		defer s.done()
		// Follow-on changes may be delivered by another goroutine.
		defer s.form.Drain()
		opts, err := b.edge.Fetcher.Fetch(ctx, req)

		s.applyMu.Lock()
		defer s.applyMu.Unlock()

		s.mu.Lock()
		current := b.gen == gen
		if current {
			b.cancel = nil
		}
		s.mu.Unlock()
		cancel()

		if !current {
			s.reporter.StaleDropped(b.edge.Name)
			return
		}
		if err != nil {
			s.reporter.FetchFailed(b.edge.Name, req, err)
			s.settle(b)
			return
		}
		if clearFirst {
			s.clearDependents(b, cause)
		}
		for _, dep := range b.dependents {
			if dep.SetOptions(opts, cause) {
				s.reporter.FieldCleared(dep.Name(), cause)
			}
			s.restoreSaved(dep)
		}
		s.settle(b)
	}()
}

func (s *Synchronizer) settle(b *edgeBinding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleLocked(b)
}

func (s *Synchronizer) settleLocked(b *edgeBinding) {
	for _, dep := range b.dependents {
		if s.states[dep] == StatePending {
			s.transitionLocked(dep, evSettle)
		}
	}
}

// restoreSaved selects the saved value of dep during the initial load once
// its options contain it.
func (s *Synchronizer) restoreSaved(dep *form.Field) {
	s.mu.Lock()
	if !s.loading || dep.Value() != "" {
		s.mu.Unlock()
		return
	}
	value, ok := s.saved[dep.Name()]
	if !ok {
		value, ok = s.saved[dep.BaseName()]
	}
	s.mu.Unlock()
	if !ok || value == "" {
		return
	}
	if err := dep.SetWithCause(value, form.CauseLoad); err != nil {
		s.logger.Debug("saved value not available", "field", dep.Name(), "value", value)
	}
}

func (s *Synchronizer) done() {
	s.mu.Lock()
	s.inflight--
	if s.inflight <= 0 {
		s.inflight = 0
		s.idle.Broadcast()
	}
	s.mu.Unlock()
}

// Wait blocks until no fetch is in flight, cascades included. It must not
// be called from a form listener.
func (s *Synchronizer) Wait() {
	s.mu.Lock()
	for s.inflight > 0 {
		s.idle.Wait()
	}
	s.mu.Unlock()
}

// Load runs the initial-load phase: visibility rules are evaluated without
// clearing and every edge whose drivers have values is fetched, keeping the
// values the form was rendered with.
func (s *Synchronizer) Load(ctx context.Context) error {
	return s.LoadSaved(ctx, nil)
}

// LoadSaved is Load for forms whose saved dependent values are not yet among
// their options. Each saved value is selected as soon as a fetch brings it,
// which in turn loads the next level of the cascade. Keys are full field
// names or base names.
func (s *Synchronizer) LoadSaved(ctx context.Context, saved map[string]string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if !s.bound {
		s.mu.Unlock()
		return ErrNotBound
	}
	s.loading = true
	s.saved = make(map[string]string, len(saved))
	for k, v := range saved {
		s.saved[k] = v
	}
	rules := append([]*ruleBinding(nil), s.ruleBind...)
	edges := append([]*edgeBinding(nil), s.edgeBind...)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.saved = nil
		s.mu.Unlock()
	}()

	for _, rb := range rules {
		_, _ = s.evaluate(rb, rb.driver.Value(), form.CauseLoad)
	}
	for _, b := range edges {
		if b.edge.Fetcher == nil {
			continue
		}
		if _, complete := b.values(); !complete {
			continue
		}
		s.driverChanged(ctx, b, form.Change{Kind: form.ChangeValue, Cause: form.CauseLoad})
	}
	s.Wait()
	for _, rb := range rules {
		_, _ = s.evaluate(rb, rb.driver.Value(), form.CauseLoad)
	}
	return ctx.Err()
}

// ToggleVisibility evaluates the named rule for driverValue and shows or
// hides its section. The label is looked up among the driver's options.
func (s *Synchronizer) ToggleVisibility(rule, driverValue string) (bool, error) {
	s.mu.Lock()
	var matches []*ruleBinding
	for _, rb := range s.ruleBind {
		if rb.rule.Name == rule {
			matches = append(matches, rb)
		}
	}
	s.mu.Unlock()
	if len(matches) == 0 {
		return false, fmt.Errorf("%w: %s", ErrUnknownRule, rule)
	}
	var visible bool
	for i, rb := range matches {
		v, err := s.evaluate(rb, driverValue, form.CauseSync)
		if err != nil {
			return false, err
		}
		if i == 0 {
			visible = v
		}
	}
	return visible, nil
}

func (s *Synchronizer) evaluate(rb *ruleBinding, value string, cause form.Cause) (bool, error) {
	label := ""
	if value == rb.driver.Value() {
		label = rb.driver.Label()
	} else {
		for _, opt := range rb.driver.Choices() {
			if opt.Value == value {
				label = opt.Label
				break
			}
		}
	}
	vctx := visibility.DriverContext(value, label, s.form.Values())
	vctx.Extras = s.extras
	visible, err := rb.rule.Predicate.Visible(vctx)
	if err != nil {
		s.logger.Warn("visibility rule failed", "rule", rb.rule.Name, "value", value, "error", err)
		return false, fmt.Errorf("dependent: rule %s: %w", rb.rule.Name, err)
	}

	loading := cause == form.CauseLoad || s.isLoading()
	if loading {
		cause = form.CauseLoad
	}
	stale := s.trackKept(rb, value, visible, loading)
	for _, target := range rb.targets {
		if stale[target] {
			if target.Clear(cause) {
				s.reporter.FieldCleared(target.Name(), cause)
			}
		}
		if visible {
			target.Show(cause)
			continue
		}
		target.Hide(cause)
		if rb.rule.KeepOnHide || loading {
			continue
		}
		if target.Clear(cause) {
			s.reporter.FieldCleared(target.Name(), cause)
		}
	}
	return visible, nil
}

// trackKept records the hidden targets that keep their value during a load.
// Outside a load it returns the recorded targets whose driver has moved
// since, which must not reappear with the value saved for another driver.
func (s *Synchronizer) trackKept(rb *ruleBinding, value string, visible, loading bool) map[*form.Field]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loading {
		for _, target := range rb.targets {
			if visible || rb.rule.KeepOnHide || target.Value() == "" {
				delete(rb.kept, target)
				continue
			}
			if rb.kept == nil {
				rb.kept = make(map[*form.Field]keptValue)
			}
			rb.kept[target] = keptValue{driver: value, value: target.Value()}
		}
		return nil
	}
	var stale map[*form.Field]bool
	for target, kept := range rb.kept {
		if kept.driver == value {
			continue
		}
		delete(rb.kept, target)
		if target.Value() != kept.value {
			continue
		}
		if stale == nil {
			stale = make(map[*form.Field]bool)
		}
		stale[target] = true
	}
	return stale
}

// State returns the tracked state of a dependent or rule target.
func (s *Synchronizer) State(name string) (FieldState, bool) {
	field, ok := s.form.Field(name)
	if !ok {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[field]
	return state, ok
}

func (s *Synchronizer) track(field *form.Field) {
	s.mu.Lock()
	if _, ok := s.states[field]; ok {
		s.mu.Unlock()
		return
	}
	state := StateVisible
	switch {
	case !field.Visible():
		state = StateHidden
	case field.Value() != "":
		state = StateFilled
	}
	s.states[field] = state
	s.mu.Unlock()

	s.addUnsub(field.Subscribe(func(change form.Change) {
		var ev event
		switch change.Kind {
		case form.ChangeVisibility:
			ev = evHide
			if change.New != "" {
				ev = evShow
			}
		case form.ChangeValue:
			ev = evEmpty
			if change.New != "" {
				ev = evFill
			}
		default:
			return
		}
		s.mu.Lock()
		s.transitionLocked(field, ev)
		s.mu.Unlock()
	}))
}

func (s *Synchronizer) transitionLocked(field *form.Field, ev event) {
	state, ok := s.states[field]
	if !ok {
		return
	}
	nextState, valid := next(state, ev, field.Value() != "")
	if !valid {
		s.logger.Debug("ignored field transition", "field", field.Name(), "state", state.String(), "event", ev.String())
		return
	}
	s.states[field] = nextState
}
