package catalogs

import (
	"log/slog"
	"net/http"

	"github.com/goliatone/go-matricula/pkg/catalog"
)

type GuardFunc func(r *http.Request) error

// InstitutionFunc resolves the active institution of a request.
type InstitutionFunc func(r *http.Request) (int64, error)

type Options struct {
	Store  catalog.Store
	Logger *slog.Logger
	Guard  GuardFunc

	// Institution overrides the header based resolver.
	Institution        InstitutionFunc
	InstitutionHeader  string
	DefaultInstitution int64

	SearchParam  string
	ForwardParam string
	MaxResults   int
}

type OptionFn func(*Options)

func DefaultOptions() Options {
	return Options{
		InstitutionHeader: "X-Institucion-ID",
		SearchParam:       "q",
		ForwardParam:      "forward",
		MaxResults:        50,
	}
}

func NewOptions(fns ...OptionFn) Options {
	opts := DefaultOptions()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.InstitutionHeader == "" {
		opts.InstitutionHeader = "X-Institucion-ID"
	}
	if opts.SearchParam == "" {
		opts.SearchParam = "q"
	}
	if opts.ForwardParam == "" {
		opts.ForwardParam = "forward"
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 50
	}
	if opts.DefaultInstitution < 0 {
		opts.DefaultInstitution = 0
	}
	if opts.Institution == nil {
		opts.Institution = HeaderInstitution(opts.InstitutionHeader, opts.DefaultInstitution)
	}
	return opts
}

func WithStore(store catalog.Store) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Store = store
	}
}

func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Logger = logger
	}
}

func WithGuard(guard GuardFunc) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Guard = guard
	}
}

func WithInstitution(resolve InstitutionFunc) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Institution = resolve
	}
}

func WithInstitutionHeader(name string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.InstitutionHeader = name
	}
}

// WithDefaultInstitution sets the institution used when a request carries
// none, the way superusers fall back to the first institution.
func WithDefaultInstitution(id int64) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.DefaultInstitution = id
	}
}

func WithSearchParam(name string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.SearchParam = name
	}
}

func WithMaxResults(limit int) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.MaxResults = limit
	}
}
