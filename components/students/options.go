package students

import (
	"log/slog"
	"net/http"

	"github.com/goliatone/go-matricula/components/catalogs"
	"github.com/goliatone/go-matricula/pkg/catalog"
)

type GuardFunc func(r *http.Request) error

type Options struct {
	Store  catalog.Store
	Logger *slog.Logger
	Guard  GuardFunc

	Institution        catalogs.InstitutionFunc
	InstitutionHeader  string
	DefaultInstitution int64

	// CSRFHeader and CSRFCookie implement the double submit check of the
	// link endpoint. An empty cookie name disables the check.
	CSRFHeader string
	CSRFCookie string
}

type OptionFn func(*Options)

func DefaultOptions() Options {
	return Options{
		InstitutionHeader: "X-Institucion-ID",
		CSRFHeader:        "X-CSRFToken",
		CSRFCookie:        "csrftoken",
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
	if opts.CSRFHeader == "" {
		opts.CSRFHeader = "X-CSRFToken"
	}
	if opts.DefaultInstitution < 0 {
		opts.DefaultInstitution = 0
	}
	if opts.Institution == nil {
		opts.Institution = catalogs.HeaderInstitution(opts.InstitutionHeader, opts.DefaultInstitution)
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

func WithInstitution(resolve catalogs.InstitutionFunc) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Institution = resolve
	}
}

func WithDefaultInstitution(id int64) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.DefaultInstitution = id
	}
}

// WithCSRF sets the header and cookie compared by the link endpoint.
func WithCSRF(header, cookie string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.CSRFHeader = header
		o.CSRFCookie = cookie
	}
}
