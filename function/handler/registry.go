// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package handler

import (
	"strings"
	"sync"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/gosimple/slug"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"

	"github.com/confighub/remotefunc/function/api"
)

var (
	// ErrDuplicatePath marks a registration whose path is already taken. The
	// first registration is kept.
	ErrDuplicatePath = errors.New("duplicate function path")
	// ErrInvalidFunction marks a descriptor that cannot be registered.
	ErrInvalidFunction = errors.New("invalid function")
)

// Registration is a function as stored in a Registry. It is immutable once
// registered.
type Registration struct {
	Function
	Path         string
	EnforceTypes bool
	// Auth overrides the dispatcher's secret for this function when set.
	Auth *AuthConfig
}

// Info describes the registration for discovery.
func (r *Registration) Info(defaultAuth *AuthConfig) api.FunctionInfo {
	auth := r.Auth
	if auth == nil {
		auth = defaultAuth
	}
	params := r.Parameters
	if params == nil {
		params = []api.FunctionParameter{}
	}
	return api.FunctionInfo{
		Path:          r.Path,
		OwnerName:     r.OwnerName,
		FunctionName:  r.FunctionName,
		Description:   r.Description,
		Parameters:    params,
		EnforceTypes:  r.EnforceTypes,
		Authenticated: auth.Required(),
	}
}

type registerOptions struct {
	ownerName    string
	functionName string
	enforceTypes bool
	auth         *AuthConfig
	description  string
}

// RegisterOption customizes a single registration.
type RegisterOption func(*registerOptions)

// WithOwner sets the owner name. The name is slugified, so "My Counter" becomes
// "my-counter". It is the way to tell two instances of the same type apart.
func WithOwner(name string) RegisterOption {
	return func(o *registerOptions) {
		o.ownerName = slug.Make(name)
	}
}

// WithName sets the function name, which is required for closures.
func WithName(name string) RegisterOption {
	return func(o *registerOptions) {
		o.functionName = name
	}
}

// WithEnforceTypes turns argument type checking on or off. It is on by default.
func WithEnforceTypes(enforce bool) RegisterOption {
	return func(o *registerOptions) {
		o.enforceTypes = enforce
	}
}

// WithAuth gives the registration its own secret instead of the dispatcher's.
func WithAuth(auth *AuthConfig) RegisterOption {
	return func(o *registerOptions) {
		o.auth = auth
	}
}

// WithDescription sets the description shown in detailed discovery.
func WithDescription(description string) RegisterOption {
	return func(o *registerOptions) {
		o.description = description
	}
}

// Registry maps function paths to registrations, in registration order.
// It is safe for concurrent use, so functions may be registered while serving.
type Registry struct {
	mu         sync.RWMutex
	functions  *orderedmap.OrderedMap[string, *Registration]
	logger     *zap.Logger
	defaultOps []RegisterOption
}

// NewRegistry returns an empty registry. The default options apply to every
// registration before the registration's own options.
func NewRegistry(logger *zap.Logger, defaults ...RegisterOption) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		functions:  orderedmap.New[string, *Registration](),
		logger:     logger.Named("registry"),
		defaultOps: defaults,
	}
}

// Register adds fn under owner/name, both lower-cased. The owner defaults to
// main. A path that is already registered is rejected with ErrDuplicatePath and
// the existing registration is left untouched.
func (r *Registry) Register(fn Function, opts ...RegisterOption) (*Registration, error) {
	o := registerOptions{
		ownerName:    fn.OwnerName,
		functionName: fn.FunctionName,
		enforceTypes: true,
		description:  fn.Description,
	}
	for _, opt := range r.defaultOps {
		opt(&o)
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ownerName == "" {
		o.ownerName = api.MainOwner
	}

	reg := &Registration{
		Function:     fn,
		EnforceTypes: o.enforceTypes,
		Auth:         o.auth,
	}
	reg.OwnerName = api.Lower(o.ownerName)
	reg.FunctionName = api.Lower(o.functionName)
	reg.Description = o.description
	if err := validateRegistration(reg); err != nil {
		return nil, err
	}
	reg.Path = api.JoinPath(reg.OwnerName, reg.FunctionName)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.functions.Get(reg.Path); exists {
		return nil, errors.Wrapf(ErrDuplicatePath, "function %s already registered", reg.Path)
	}
	r.functions.Set(reg.Path, reg)
	r.logger.Debug("registered function", zap.String("path", reg.Path), zap.Int("parameters", len(reg.Parameters)))
	return reg, nil
}

// reservedRune reports runes that would break the path or a NATS subject
// token built from a name.
func reservedRune(r rune) bool {
	switch r {
	case '/', '.', '*', '>':
		return true
	}
	return unicode.IsSpace(r)
}

func validateRegistration(reg *Registration) error {
	switch {
	case reg.FunctionName == "":
		return errors.Wrap(ErrInvalidFunction, "function name is empty; use WithName for closures")
	case strings.ContainsFunc(reg.FunctionName, reservedRune) || strings.ContainsFunc(reg.OwnerName, reservedRune):
		return errors.Wrapf(ErrInvalidFunction, "%q/%q: names may not contain whitespace or any of '/', '.', '*', '>'", reg.OwnerName, reg.FunctionName)
	case reg.Implementation == nil:
		return errors.Wrapf(ErrInvalidFunction, "%s has no implementation", reg.FunctionName)
	}
	seen := make(map[string]struct{}, len(reg.Parameters))
	for _, p := range reg.Parameters {
		if p.ParameterName == "" {
			return errors.Wrapf(ErrInvalidFunction, "%s has an unnamed parameter", reg.FunctionName)
		}
		if _, dup := seen[p.ParameterName]; dup {
			return errors.Wrapf(ErrInvalidFunction, "%s declares parameter %s twice", reg.FunctionName, p.ParameterName)
		}
		seen[p.ParameterName] = struct{}{}
	}
	return nil
}

// RegisterFunc binds fn with Bind and registers it.
func (r *Registry) RegisterFunc(fn any, paramNames []string, opts ...RegisterOption) (*Registration, error) {
	f, err := Bind(fn, paramNames...)
	if err != nil {
		return nil, err
	}
	return r.Register(f, opts...)
}

// RegisterAll registers every exported method of instance under the owner
// named after its type. Owner naming is per type: a second instance of the
// same type collides with the first unless WithOwner is given. Colliding
// methods are skipped with a warning, and only the added registrations are
// returned. Methods that cannot be bound are skipped with a warning as well.
//
// WithName must not be passed: every method would get the same path.
func (r *Registry) RegisterAll(instance any, opts ...RegisterOption) ([]*Registration, error) {
	functions, skipped, err := BindMethods(instance)
	if err != nil {
		return nil, err
	}
	for _, err := range skipped {
		r.logger.Warn("skipping method that cannot be bound", zap.Error(err))
	}
	added := make([]*Registration, 0, len(functions))
	for _, fn := range functions {
		reg, err := r.Register(fn, opts...)
		if errors.Is(err, ErrDuplicatePath) {
			r.logger.Warn("skipping already registered method", zap.Error(err))
			continue
		}
		if err != nil {
			return added, err
		}
		added = append(added, reg)
	}
	return added, nil
}

// Resolve looks up a path exactly as given.
func (r *Registry) Resolve(path string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.functions.Get(path)
}

// ListPaths returns all paths in registration order.
func (r *Registry) ListPaths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, r.functions.Len())
	for pair := r.functions.Oldest(); pair != nil; pair = pair.Next() {
		paths = append(paths, pair.Key)
	}
	return paths
}

// Registrations returns all registrations in registration order.
func (r *Registry) Registrations() []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	regs := make([]*Registration, 0, r.functions.Len())
	for pair := r.functions.Oldest(); pair != nil; pair = pair.Next() {
		regs = append(regs, pair.Value)
	}
	return regs
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.functions.Len()
}
