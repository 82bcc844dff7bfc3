package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-matricula/internal/config"
	"github.com/goliatone/go-matricula/pkg/dependent"
	"github.com/goliatone/go-matricula/pkg/form"
	"github.com/goliatone/go-matricula/pkg/options"
	"github.com/goliatone/go-matricula/pkg/visibility"
	"github.com/goliatone/go-matricula/pkg/visibility/expr"
)

// Options configure Wire.
type Options struct {
	Logger     *slog.Logger
	Reporter   dependent.Reporter
	Observer   options.Observer
	HTTPClient *http.Client
	// Fetchers replace the HTTP fetcher of the named edges.
	Fetchers map[string]options.Fetcher
	// Extras are exposed to configured rules under "extras.".
	Extras map[string]any
}

type Option func(*Options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

func WithReporter(reporter dependent.Reporter) Option {
	return func(o *Options) {
		o.Reporter = reporter
	}
}

func WithObserver(observer options.Observer) Option {
	return func(o *Options) {
		o.Observer = observer
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = client
	}
}

// WithFetcher serves the named edge from fetcher instead of HTTP.
func WithFetcher(edge string, fetcher options.Fetcher) Option {
	return func(o *Options) {
		if o.Fetchers == nil {
			o.Fetchers = make(map[string]options.Fetcher)
		}
		o.Fetchers[edge] = fetcher
	}
}

func WithExtras(extras map[string]any) Option {
	return func(o *Options) {
		o.Extras = extras
	}
}

// Session is a bound synchronizer plus the derived fields of the form.
type Session struct {
	*dependent.Synchronizer
	stops []func()
}

// Close stops derivations and unbinds the synchronizer.
func (s *Session) Close() {
	for _, stop := range s.stops {
		stop()
	}
	s.stops = nil
	s.Synchronizer.Close()
}

// Wire binds the canonical edges and rules plus those declared in cfg.Form
// to f. Fetch edges call the server at cfg.Client.BaseURL on behalf of
// cfg.Client.Institution.
func Wire(ctx context.Context, f *form.Form, cfg config.Config, opts ...Option) (*Session, error) {
	o := Options{Logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	fetchers, err := Fetchers(cfg, o)
	if err != nil {
		return nil, err
	}
	edges := Edges(fetchers)
	extra, err := ConfigEdges(cfg.Form.Edges, cfg, o)
	if err != nil {
		return nil, err
	}
	edges = append(edges, extra...)

	rules := Rules()
	extraRules, err := ConfigRules(cfg.Form.Rules)
	if err != nil {
		return nil, err
	}
	rules = append(rules, extraRules...)

	syncOpts := []dependent.Option{
		dependent.WithLogger(o.Logger),
		dependent.WithEdges(edges...),
		dependent.WithRules(rules...),
		dependent.WithExtras(o.Extras),
	}
	if o.Reporter != nil {
		syncOpts = append(syncOpts, dependent.WithReporter(dependent.MultiReporter{
			dependent.LogReporter{Logger: o.Logger},
			o.Reporter,
		}))
	}
	sync, err := dependent.New(f, syncOpts...)
	if err != nil {
		return nil, fmt.Errorf("enrollment: %w", err)
	}
	if err := sync.Bind(ctx); err != nil {
		return nil, fmt.Errorf("enrollment: %w", err)
	}

	session := &Session{Synchronizer: sync}
	if stop, ok := f.Derive("correo", "identificacion", form.StudentEmail); ok {
		session.stops = append(session.stops, stop)
	}
	return session, nil
}

// Fetchers builds the HTTP fetchers of the canonical edges. Fetchers given
// in o take precedence.
func Fetchers(cfg config.Config, o Options) (map[string]options.Fetcher, error) {
	out := make(map[string]options.Fetcher)
	for name, endpoint := range Endpoints() {
		if fetcher, ok := o.Fetchers[name]; ok {
			out[name] = options.Instrument(fetcher, o.Observer, o.Logger)
			continue
		}
		fetcher, err := newHTTP(endpoint, cfg, o)
		if err != nil {
			return nil, fmt.Errorf("enrollment: edge %s: %w", name, err)
		}
		out[name] = fetcher
	}
	return out, nil
}

func newHTTP(endpoint options.Endpoint, cfg config.Config, o Options) (options.Fetcher, error) {
	httpOpts := []options.HTTPOption{
		options.WithClient(o.HTTPClient),
		options.WithBaseURL(cfg.Client.BaseURL),
		options.WithTimeout(cfg.Client.Timeout),
	}
	if cfg.Client.Institution > 0 {
		header := cfg.Server.InstitutionHeader
		if header == "" {
			header = config.Default().Server.InstitutionHeader
		}
		httpOpts = append(httpOpts, options.WithHeader(header, strconv.FormatInt(cfg.Client.Institution, 10)))
	}
	if token := strings.TrimSpace(cfg.Client.CSRFToken); token != "" {
		cookie := cfg.Server.CSRFCookie
		if cookie == "" {
			cookie = config.Default().Server.CSRFCookie
		}
		httpOpts = append(httpOpts,
			options.WithCSRFToken(func() string { return token }),
			options.WithHeader("Cookie", (&http.Cookie{Name: cookie, Value: token}).String()),
		)
	}
	fetcher, err := options.NewHTTP(endpoint, httpOpts...)
	if err != nil {
		return nil, err
	}
	return options.Instrument(fetcher, o.Observer, o.Logger), nil
}

// ConfigEdges converts declared edges. An edge with an endpoint fetches,
// otherwise it only clears.
func ConfigEdges(decl []config.Edge, cfg config.Config, o Options) ([]dependent.Edge, error) {
	var out []dependent.Edge
	for _, d := range decl {
		edge := dependent.Edge{
			Name:         d.Name,
			Drivers:      patterns(d.Drivers),
			Optional:     patterns(d.Optional),
			Dependents:   patterns(d.Dependents),
			AllowPartial: d.AllowPartial,
		}
		switch d.Clear {
		case config.ClearAlways:
			edge.Policy = dependent.ClearAlways
		case config.ClearNever:
			edge.Policy = dependent.ClearNever
		}
		if fetcher, ok := o.Fetchers[d.Name]; ok {
			edge.Fetcher = options.Instrument(fetcher, o.Observer, o.Logger)
		} else if d.Endpoint != nil {
			fetcher, err := newHTTP(*d.Endpoint, cfg, o)
			if err != nil {
				return nil, fmt.Errorf("enrollment: edge %s: %w", d.Name, err)
			}
			edge.Fetcher = fetcher
		}
		out = append(out, edge)
	}
	return out, nil
}

// ConfigRules converts declared rules. Expressions are compiled up front so
// a typo fails at startup instead of on the first change.
func ConfigRules(decl []config.Rule) ([]dependent.Rule, error) {
	if len(decl) == 0 {
		return nil, nil
	}
	evaluator := expr.New()
	var out []dependent.Rule
	var errs []error
	for _, d := range decl {
		if err := evaluator.Compile(d.When); err != nil {
			errs = append(errs, fmt.Errorf("enrollment: rule %s: %w", d.Name, err))
			continue
		}
		out = append(out, dependent.Rule{
			Name:       d.Name,
			Driver:     form.Pattern(d.Driver),
			Targets:    patterns(d.Targets),
			Predicate:  visibility.Rule(evaluator, d.Driver, d.When),
			KeepOnHide: d.KeepOnHide,
		})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func patterns(names []string) []form.Pattern {
	out := make([]form.Pattern, 0, len(names))
	for _, name := range names {
		out = append(out, form.Pattern(name))
	}
	return out
}
