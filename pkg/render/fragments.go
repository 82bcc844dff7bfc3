package render

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	theme "github.com/goliatone/go-theme"
	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-matricula/pkg/form"
)

//go:embed templates/*.tpl
var embedded embed.FS

// Select is the data of an <option> fragment.
type Select struct {
	Field       string
	Placeholder string
	Options     []form.Option
	Selected    string
}

// Message is an operator alert. Kind picks the alert theme token.
type Message struct {
	Kind  string
	Title string
	Body  string
}

// Option configures Fragments.
type Option func(*config)

type config struct {
	engine   Engine
	selector theme.ThemeSelector
	theme    string
	variant  string
	policy   *bluemonday.Policy
}

// WithEngine replaces the embedded pongo2 templates.
func WithEngine(engine Engine) Option {
	return func(c *config) {
		c.engine = engine
	}
}

// WithTheme selects a theme and variant from selector.
func WithTheme(selector theme.ThemeSelector, name, variant string) Option {
	return func(c *config) {
		if selector != nil {
			c.selector = selector
		}
		c.theme = name
		c.variant = variant
	}
}

// WithPolicy replaces the label sanitizer. Default: bluemonday.StrictPolicy.
func WithPolicy(policy *bluemonday.Policy) Option {
	return func(c *config) {
		if policy != nil {
			c.policy = policy
		}
	}
}

// Fragments renders option lists and alerts.
type Fragments struct {
	engine Engine
	policy *bluemonday.Policy
	tokens map[string]string
}

// New resolves the theme and loads the templates.
func New(opts ...Option) (*Fragments, error) {
	cfg := config{
		selector: staticSelector{manifest: DefaultManifest()},
		policy:   bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.engine == nil {
		files, err := fs.Sub(embedded, "templates")
		if err != nil {
			return nil, fmt.Errorf("render: templates: %w", err)
		}
		engine, err := NewPongoEngine(files)
		if err != nil {
			return nil, err
		}
		cfg.engine = engine
	}
	selection, err := cfg.selector.Select(cfg.theme, cfg.variant)
	if err != nil {
		return nil, fmt.Errorf("render: select theme: %w", err)
	}
	return &Fragments{engine: cfg.engine, policy: cfg.policy, tokens: tokens(selection)}, nil
}

// Token returns a resolved theme token.
func (f *Fragments) Token(name string) string { return f.tokens[name] }

// Options writes the <option> list of a select, placeholder first.
func (f *Fragments) Options(w io.Writer, sel Select) error {
	placeholder := sel.Placeholder
	if placeholder == "" {
		placeholder = form.DefaultPlaceholder
	}
	items := make([]map[string]any, 0, len(sel.Options))
	for _, opt := range form.NormalizeOptions(sel.Options) {
		items = append(items, map[string]any{
			"id":    opt.Value,
			"label": f.clean(opt.Label),
		})
	}
	err := f.engine.Execute(w, "options", map[string]any{
		"field":        sel.Field,
		"placeholder":  f.clean(placeholder),
		"options":      items,
		"selected":     strings.TrimSpace(sel.Selected),
		"option_class": f.tokens[TokenOptionClass],
	})
	if err != nil {
		return fmt.Errorf("render: options %s: %w", sel.Field, err)
	}
	return nil
}

// Alert writes an operator alert.
func (f *Fragments) Alert(w io.Writer, msg Message) error {
	class, ok := f.tokens[TokenAlertPrefix+msg.Kind]
	if !ok {
		return fmt.Errorf("render: alert: %w: %q", ErrUnknownKind, msg.Kind)
	}
	err := f.engine.Execute(w, "alert", map[string]any{
		"class": class,
		"title": f.clean(msg.Title),
		"body":  f.clean(msg.Body),
	})
	if err != nil {
		return fmt.Errorf("render: alert: %w", err)
	}
	return nil
}

// ErrUnknownKind is returned for alert kinds without a theme token.
var ErrUnknownKind = errors.New("unknown alert kind")

func (f *Fragments) clean(s string) string {
	return strings.TrimSpace(f.policy.Sanitize(s))
}
