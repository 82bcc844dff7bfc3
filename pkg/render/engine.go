package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	gotemplate "github.com/goliatone/go-template"
)

// Engine executes a named template.
type Engine interface {
	Execute(w io.Writer, name string, data map[string]any) error
}

// PongoEngine executes pongo2 templates read from an fs.FS. Parsed templates
// are cached by name.
type PongoEngine struct {
	set  *pongo2.TemplateSet
	ext  string
	opts []gotemplate.Option

	mu    sync.Mutex
	cache map[string]*pongo2.Template
}

var _ Engine = (*PongoEngine)(nil)

type EngineOption func(*PongoEngine)

// WithExtension sets the file extension appended to template names.
// Default ".tpl".
func WithExtension(ext string) EngineOption {
	return func(e *PongoEngine) {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			return
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		e.ext = ext
	}
}

// WithGlobals makes values available to every template.
func WithGlobals(globals map[string]any) EngineOption {
	return func(e *PongoEngine) {
		if len(globals) == 0 {
			return
		}
		if e.set.Globals == nil {
			e.set.Globals = make(pongo2.Context, len(globals))
		}
		e.set.Globals.Update(pongo2.Context(globals))
	}
}

// WithTemplateOptions records go-template options for hosts that render the
// same templates through a go-template renderer.
func WithTemplateOptions(opts ...gotemplate.Option) EngineOption {
	return func(e *PongoEngine) {
		e.opts = append(e.opts, opts...)
	}
}

func NewPongoEngine(files fs.FS, opts ...EngineOption) (*PongoEngine, error) {
	if files == nil {
		return nil, errors.New("render: template files are required")
	}
	e := &PongoEngine{
		set:   pongo2.NewSet("matricula", pongo2.NewFSLoader(files)),
		ext:   ".tpl",
		cache: make(map[string]*pongo2.Template),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// TemplateOptions returns the recorded go-template options.
func (e *PongoEngine) TemplateOptions() []gotemplate.Option {
	return append([]gotemplate.Option(nil), e.opts...)
}

// Execute renders name into w. Nothing is written when rendering fails.
func (e *PongoEngine) Execute(w io.Writer, name string, data map[string]any) error {
	tmpl, err := e.lookup(name)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteWriter(pongo2.Context(data), &buf); err != nil {
		return fmt.Errorf("render: execute %s: %w", name, err)
	}
	_, err = buf.WriteTo(w)
	return err
}

func (e *PongoEngine) lookup(name string) (*pongo2.Template, error) {
	file := strings.TrimSpace(name)
	if !strings.HasSuffix(file, e.ext) {
		file += e.ext
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if tmpl, ok := e.cache[file]; ok {
		return tmpl, nil
	}
	tmpl, err := e.set.FromFile(file)
	if err != nil {
		return nil, fmt.Errorf("render: load %s: %w", file, err)
	}
	e.cache[file] = tmpl
	return tmpl, nil
}
