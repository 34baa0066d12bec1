package cache

import (
	"fmt"
	"maps"

	"github.com/jonwraymond/cacheproxy/observe"
)

// Option configures Wrap.
type Option func(*options)

type options struct {
	name        string
	logger      observe.Logger
	observer    observe.Observer
	policies    map[string]Policy
	policyFile  string
	scanWorkers int
	err         error
}

func defaultOptions() options {
	return options{
		policies:    make(map[string]Policy),
		scanWorkers: DefaultScanWorkers,
	}
}

// middleware builds the telemetry middleware for the options. WithLogger
// overrides the observer's logger.
func (o options) middleware() (*observe.Middleware, error) {
	var mw *observe.Middleware
	if o.observer != nil {
		var err error
		mw, err = observe.MiddlewareFromObserver(o.observer)
		if err != nil {
			return nil, err
		}
	} else {
		mw = observe.NewMiddleware(nil, nil, nil)
	}
	if o.logger != nil {
		mw = mw.WithLogger(o.logger)
	}
	return mw, nil
}

// WithName names the wrapped object in logs, spans and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver enables tracing and metrics through obs.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithPolicy sets the policy for one operation.
func WithPolicy(op string, p Policy) Option {
	return func(o *options) {
		if op == "" {
			o.err = fmt.Errorf("%w: empty operation name", ErrInvalidPolicy)
			return
		}
		o.policies[op] = p
	}
}

// WithPolicies sets policies for several operations.
func WithPolicies(policies map[string]Policy) Option {
	return func(o *options) { maps.Copy(o.policies, policies) }
}

// WithPolicyFile loads policies from a YAML document at Wrap time. Options
// setting policies directly win over the file.
func WithPolicyFile(path string) Option {
	return func(o *options) { o.policyFile = path }
}

// WithScanWorkers bounds the parallel decoders used while the file tier
// rebuilds its index.
func WithScanWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.scanWorkers = n
		}
	}
}
