package cache

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"sort"

	"github.com/jonwraymond/cacheproxy/observe"
)

// Operation is one entry of an object's capability set.
type Operation func(ctx context.Context, args ...any) (any, error)

// Object is anything whose calls can be cached: it exposes its operations as
// a table keyed by operation name.
type Object interface {
	Operations() map[string]Operation
}

// Operations is a literal operation table that satisfies Object.
type Operations map[string]Operation

// Operations returns o.
func (o Operations) Operations() map[string]Operation { return o }

// Declarer is implemented by objects that carry their own cache policies.
// Policies passed to Wrap take precedence over declared ones.
type Declarer interface {
	CachePolicies() map[string]Policy
}

// Proxy dispatches calls to a wrapped Object, serving operations that carry a
// Policy from the memory or file tier.
//
// Contract:
//   - Concurrency: safe for concurrent use. For a fixed key at most one
//     underlying call runs while the key is uncached.
//   - Errors: errors returned by an operation reach the caller unchanged and
//     are never cached.
//   - Context: ctx reaches the operation and telemetry. Waiting for another
//     caller's computation is not cancellable.
type Proxy struct {
	name     string
	ops      map[string]Operation
	policies map[string]Policy

	memory *MemoryStore
	files  *FileStore
	locks  lockTable

	mw     *observe.Middleware
	logger observe.Logger
}

// Wrap builds a Proxy for obj with its file tier rooted at dir.
// It fails with ErrInvalidDirectory when dir is not an existing directory,
// and with ErrInvalidPolicy when a policy is malformed or names an operation
// obj does not expose.
func Wrap(obj Object, dir string, opts ...Option) (*Proxy, error) {
	if obj == nil || isNil(obj) {
		return nil, ErrNilObject
	}
	if err := checkDir(dir); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.err != nil {
		return nil, o.err
	}

	ops := maps.Clone(obj.Operations())
	if ops == nil {
		ops = make(map[string]Operation)
	}

	policies, err := resolvePolicies(obj, ops, o)
	if err != nil {
		return nil, err
	}

	mw, err := o.middleware()
	if err != nil {
		return nil, err
	}
	logger := mw.Logger()

	files, err := NewFileStore(dir, WithStoreLogger(logger), WithStoreScanWorkers(o.scanWorkers))
	if err != nil {
		return nil, err
	}

	p := &Proxy{
		name:     o.name,
		ops:      ops,
		policies: policies,
		memory:   NewMemoryStore(),
		files:    files,
		mw:       mw,
		logger:   logger,
	}

	for _, op := range sortedNames(policies) {
		pol := policies[op]
		logger.WithOperation(p.meta(op, pol)).Debug(context.Background(), "cache policy resolved",
			observe.Field{Key: "exclude", Value: pol.Exclude},
			observe.Field{Key: "limit", Value: pol.Limit},
			observe.Field{Key: "compress", Value: pol.Compress})
	}
	return p, nil
}

// resolvePolicies merges declared, file and explicit policies, later sources
// replacing earlier ones per operation.
func resolvePolicies(obj Object, ops map[string]Operation, o options) (map[string]Policy, error) {
	merged := make(map[string]Policy)
	if d, ok := obj.(Declarer); ok {
		maps.Copy(merged, d.CachePolicies())
	}
	if o.policyFile != "" {
		fromFile, err := LoadPolicyFile(o.policyFile)
		if err != nil {
			return nil, err
		}
		maps.Copy(merged, fromFile)
	}
	maps.Copy(merged, o.policies)

	resolved := make(map[string]Policy, len(merged))
	for op, pol := range merged {
		if _, ok := ops[op]; !ok {
			return nil, fmt.Errorf("%w: operation %q: %w", ErrInvalidPolicy, op, ErrUnknownOperation)
		}
		if err := pol.Validate(); err != nil {
			return nil, fmt.Errorf("operation %q: %w", op, err)
		}
		if pol.Tier == TierFile {
			if err := validatePrefix(pol.prefix(op)); err != nil {
				return nil, fmt.Errorf("operation %q: %w", op, err)
			}
		}
		resolved[op] = pol.clone()
	}
	return resolved, nil
}

// Invoke calls operation op with args. Operations without a policy are
// forwarded directly.
func (p *Proxy) Invoke(ctx context.Context, op string, args ...any) (any, error) {
	fn, ok := p.ops[op]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}

	policy, ok := p.policies[op]
	if !ok {
		return fn(ctx, args...)
	}

	key, err := BuildKey(policy, op, args)
	if err != nil {
		p.logger.WithOperation(p.meta(op, policy)).Warn(ctx, "calling uncached",
			observe.Field{Key: "error", Value: err})
		return fn(ctx, args...)
	}

	return p.getOrCompute(ctx, op, policy, key, fn, args)
}

func (p *Proxy) getOrCompute(ctx context.Context, op string, policy Policy, key Key, fn Operation, args []any) (any, error) {
	meta := p.meta(op, policy)
	b := p.backend(policy.Tier)

	if v, ok := p.load(ctx, b, key, meta); ok {
		p.mw.Lookup(ctx, meta, true)
		return v, nil
	}

	mu := p.locks.lock(key)
	defer mu.Unlock()

	// A caller that waited on the key counts as a hit when the computing
	// caller stored a result.
	if v, ok := p.load(ctx, b, key, meta); ok {
		p.mw.Lookup(ctx, meta, true)
		return v, nil
	}
	p.mw.Lookup(ctx, meta, false)

	compute := p.mw.Wrap(func(ctx context.Context, _ observe.OperationMeta, args []any) (any, error) {
		return fn(ctx, args...)
	})
	result, err := compute(ctx, meta, args)
	if err != nil || isNil(result) {
		return result, err
	}

	if err := b.put(key, storedForm(result, policy.Limit), policy); err != nil {
		p.logger.WithOperation(meta).Error(ctx, "failed to store result",
			observe.Field{Key: "error", Value: err})
	}
	return result, nil
}

func (p *Proxy) load(ctx context.Context, b backend, key Key, meta observe.OperationMeta) (any, bool) {
	v, err := b.get(key)
	if err == nil {
		return v, true
	}
	if !errors.Is(err, ErrMiss) {
		p.logger.WithOperation(meta).Warn(ctx, "discarding unreadable entry",
			observe.Field{Key: "error", Value: err})
	}
	return nil, false
}

func (p *Proxy) meta(op string, policy Policy) observe.OperationMeta {
	return observe.OperationMeta{
		Object: p.name,
		Name:   op,
		Tier:   policy.Tier.String(),
		Key:    policy.Key,
	}
}

func (p *Proxy) backend(t Tier) backend {
	if t == TierFile {
		return fileBackend{p.files}
	}
	return memoryBackend{p.memory}
}

// Policy returns the resolved policy for op.
func (p *Proxy) Policy(op string) (Policy, bool) {
	pol, ok := p.policies[op]
	if !ok {
		return Policy{}, false
	}
	return pol.clone(), true
}

// Operations returns the names of every operation the Proxy dispatches.
func (p *Proxy) Operations() []string {
	return sortedNames(p.ops)
}

// Memory returns the memory tier.
func (p *Proxy) Memory() *MemoryStore { return p.memory }

// Files returns the file tier.
func (p *Proxy) Files() *FileStore { return p.files }

// Call invokes op through p and asserts the result to R. A nil result yields
// the zero R.
func Call[R any](ctx context.Context, p *Proxy, op string, args ...any) (R, error) {
	var zero R
	v, err := p.Invoke(ctx, op, args...)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	r, ok := v.(R)
	if !ok {
		return zero, fmt.Errorf("%w: %s returned %T, want %T", ErrResultType, op, v, zero)
	}
	return r, nil
}

// backend adapts a store to the get-or-compute protocol.
type backend interface {
	get(key Key) (any, error)
	put(key Key, value any, policy Policy) error
}

type memoryBackend struct{ s *MemoryStore }

func (b memoryBackend) get(key Key) (any, error) { return b.s.Get(key) }

func (b memoryBackend) put(key Key, value any, _ Policy) error {
	b.s.Put(key, value)
	return nil
}

type fileBackend struct{ s *FileStore }

func (b fileBackend) get(key Key) (any, error) { return b.s.Get(key) }

func (b fileBackend) put(key Key, value any, policy Policy) error {
	return b.s.Put(key, value, policy.Compress)
}

// storedForm returns the value to store for result v. Slices and maps are
// copied so the computing caller cannot change the entry. A slice other than
// []byte holds at most limit elements when limit is positive. Any other value
// is returned as is.
func storedForm(v any, limit int) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		n := rv.Len()
		if limit > 0 && n > limit && rv.Type().Elem().Kind() != reflect.Uint8 {
			n = limit
		}
		out := reflect.MakeSlice(rv.Type(), n, n)
		reflect.Copy(out, rv)
		return out.Interface()
	case reflect.Map:
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), iter.Value())
		}
		return out.Interface()
	default:
		return v
	}
}

// isNil reports whether v is nil or a typed nil.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
