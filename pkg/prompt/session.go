// Package prompt fills a form interactively in the terminal.
//
// Fields are asked in declaration order. After every answer the session waits
// for dependent fields to settle, so a select driven by the previous answer
// already offers its fresh options when it is asked.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goliatone/go-matricula/pkg/form"
)

// Checked is the value stored in a ticked checkbox.
const Checked = "on"

type Session struct {
	form   *form.Form
	driver Driver
	settle func()
	labels map[string]string
	skip   map[string]bool
	logger *slog.Logger
}

type Option func(*Session)

// WithSettle sets the function called after every answer, typically the
// synchronizer's Wait.
func WithSettle(fn func()) Option {
	return func(s *Session) {
		s.settle = fn
	}
}

// WithLabels sets the prompt message per field base name.
func WithLabels(labels map[string]string) Option {
	return func(s *Session) {
		for name, label := range labels {
			s.labels[name] = label
		}
	}
}

// WithSkip excludes fields, by name or base name, from the session.
func WithSkip(names ...string) Option {
	return func(s *Session) {
		for _, name := range names {
			s.skip[name] = true
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(f *form.Form, driver Driver, opts ...Option) (*Session, error) {
	if f == nil {
		return nil, errors.New("prompt: missing form")
	}
	if driver == nil {
		return nil, errors.New("prompt: missing driver")
	}
	s := &Session{
		form:   f,
		driver: driver,
		settle: func() {},
		labels: make(map[string]string),
		skip:   make(map[string]bool),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.settle == nil {
		s.settle = func() {}
	}
	return s, nil
}

// Run asks every visible field once and returns the resulting values.
// Fields revealed by an answer are asked in a later pass.
func (s *Session) Run(ctx context.Context) (map[string]string, error) {
	asked := make(map[string]bool)
	for {
		field, ok := s.next(asked)
		if !ok {
			return s.form.Values(), nil
		}
		asked[field.Name()] = true
		if err := s.ask(ctx, field); err != nil {
			return nil, err
		}
		s.settle()
	}
}

func (s *Session) next(asked map[string]bool) (*form.Field, bool) {
	live := s.form.Values()
	for _, field := range s.form.Fields() {
		name := field.Name()
		if _, ok := live[name]; !ok || asked[name] {
			continue
		}
		if s.skip[name] || s.skip[field.BaseName()] || !field.Visible() {
			continue
		}
		return field, true
	}
	return nil, false
}

func (s *Session) message(field *form.Field) string {
	if label, ok := s.labels[field.BaseName()]; ok {
		return label
	}
	return field.BaseName()
}

func (s *Session) ask(ctx context.Context, field *form.Field) error {
	switch field.Kind() {
	case form.KindSelect:
		return s.askSelect(ctx, field)
	case form.KindCheckbox:
		checked, err := s.driver.Confirm(ctx, ConfirmConfig{
			Message: s.message(field),
			Default: field.Value() == Checked,
		})
		if err != nil {
			return err
		}
		value := ""
		if checked {
			value = Checked
		}
		return field.Set(value)
	default:
		value, err := s.driver.Input(ctx, InputConfig{
			Message: s.message(field),
			Default: field.Value(),
		})
		if err != nil {
			return err
		}
		return field.Set(value)
	}
}

func (s *Session) askSelect(ctx context.Context, field *form.Field) error {
	opts := field.Options()
	if len(opts) == 1 {
		s.logger.Debug("prompt skipped empty select", "field", field.Name())
		return s.driver.Info(ctx, fmt.Sprintf("%s: %s", s.message(field), opts[0].Label))
	}
	labels := make([]string, len(opts))
	current := 0
	for i, opt := range opts {
		labels[i] = opt.Label
		if opt.Value != "" && opt.Value == field.Value() {
			current = i
		}
	}
	idx, err := s.driver.Select(ctx, SelectConfig{
		Message:      s.message(field),
		Options:      labels,
		DefaultIndex: current,
		PageSize:     10,
	})
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(opts) {
		return fmt.Errorf("prompt: field %s: selection %d out of range", field.Name(), idx)
	}
	return field.Set(opts[idx].Value)
}

// Summary prints the label of every visible field with a value.
func (s *Session) Summary(ctx context.Context) error {
	live := s.form.Values()
	for _, field := range s.form.Fields() {
		if _, ok := live[field.Name()]; !ok || !field.Visible() || field.Value() == "" {
			continue
		}
		if err := s.driver.Info(ctx, fmt.Sprintf("%s: %s", s.message(field), field.Label())); err != nil {
			return err
		}
	}
	return nil
}
