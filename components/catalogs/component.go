package catalogs

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Component wraps the catalog endpoints and their configuration.
type Component struct {
	opts Options
}

// New constructs a component with default options plus any overrides.
func New(fns ...OptionFn) *Component {
	return &Component{opts: NewOptions(fns...)}
}

// Options returns a copy of the component configuration.
func (c *Component) Options() Options {
	if c == nil {
		return DefaultOptions()
	}
	return NewOptions(func(o *Options) { *o = c.opts })
}

// Handler returns a router with the component routes.
func (c *Component) Handler() (http.Handler, error) {
	r := chi.NewRouter()
	if err := c.RegisterRoutes(r); err != nil {
		return nil, err
	}
	return r, nil
}

// RegisterRoutes registers the component routes on r.
func (c *Component) RegisterRoutes(r chi.Router) error {
	if c == nil {
		return RegisterRoutes(r)
	}
	return RegisterRoutesWithOptions(r, c.opts)
}
