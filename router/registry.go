package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/diskordpkg/engine/gate"
)

// Invocation is one parsed request to run a command, either from a message
// or from an interaction. Message invocations carry Content; interaction
// invocations carry the command Path and named Options instead.
type Invocation struct {
	Source    Source
	Prefix    string
	Content   string
	Path      []string
	Options   map[string]string
	UserID    string
	GuildID   string
	ChannelID string
}

// Registry holds the command tree and runs invocations end to end:
// resolution, argument binding, checks, gating and the handler itself.
// Every failure surfaces as a *CommandError.
type Registry struct {
	root      Definition
	gate      *gate.Gate
	log       zerolog.Logger
	responder Responder
}

type RegistryOption func(*Registry)

func WithGate(g *gate.Gate) RegistryOption {
	return func(r *Registry) {
		r.gate = g
	}
}

func WithLogger(log zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.log = log
	}
}

func WithResponder(responder Responder) RegistryOption {
	return func(r *Registry) {
		r.responder = responder
	}
}

func NewRegistry(options ...RegistryOption) *Registry {
	r := &Registry{
		log: zerolog.Nop(),
	}
	for _, option := range options {
		option(r)
	}
	if r.gate == nil {
		r.gate = gate.New()
	}
	return r
}

// Add registers a top level command or group.
func (r *Registry) Add(def *Definition) error {
	return r.root.AddChild(def)
}

// Commands returns the top level definitions in registration order.
func (r *Registry) Commands() []*Definition {
	return r.root.Children()
}

// Lookup resolves a full qualified name such as "shop buy". Unlike resolve
// it also returns groups without handlers, for help style introspection.
func (r *Registry) Lookup(qualified string) (*Definition, bool) {
	node := &r.root
	for _, name := range strings.Fields(qualified) {
		child, ok := node.Child(name)
		if !ok {
			return nil, false
		}
		node = child
	}
	if node == &r.root {
		return nil, false
	}
	return node, true
}

// resolve walks the tree as far as the tokens lead. The deepest matched
// definition wins and the remaining tokens become arguments.
func (r *Registry) resolve(tokens []string) (*Definition, []string, error) {
	if len(tokens) == 0 {
		return nil, nil, &CommandError{Kind: KindCommandNotFound}
	}

	node := &r.root
	consumed := 0
	for consumed < len(tokens) {
		child, ok := node.Child(tokens[consumed])
		if !ok {
			break
		}
		node = child
		consumed++
	}

	if node == &r.root {
		return nil, nil, &CommandError{Kind: KindCommandNotFound, Command: tokens[0]}
	}
	if node.Handler == nil {
		// A bare group name is not executable; report it with the path the
		// caller actually typed.
		return nil, nil, &CommandError{Kind: KindCommandNotFound, Command: strings.Join(tokens[:consumed], " ")}
	}
	return node, tokens[consumed:], nil
}

// bindPositional maps leftover tokens onto declared parameters in order,
// applying defaults for trailing optionals and folding a rest parameter.
func bindPositional(cctx *Context, def *Definition, tokens []string) error {
	for i, param := range def.Params {
		if param.Rest {
			if len(tokens) <= i {
				if param.Required {
					return &CommandError{Kind: KindMissingRequiredArgument, Command: def.QualifiedName(), Param: param.Name}
				}
				cctx.args[param.Name] = defaultValue(param)
				return nil
			}
			cctx.args[param.Name] = strings.Join(tokens[i:], " ")
			return nil
		}

		if i >= len(tokens) {
			if param.Required {
				return &CommandError{Kind: KindMissingRequiredArgument, Command: def.QualifiedName(), Param: param.Name}
			}
			cctx.args[param.Name] = defaultValue(param)
			continue
		}

		value, ok := convert(tokens[i], param.Type)
		if !ok {
			return &CommandError{Kind: KindBadArgument, Command: def.QualifiedName(), Param: param.Name, Value: tokens[i]}
		}
		cctx.args[param.Name] = value
	}
	return nil
}

// bindNamed maps interaction options onto declared parameters by name.
func bindNamed(cctx *Context, def *Definition, options map[string]string) error {
	for _, param := range def.Params {
		raw, ok := options[param.Name]
		if !ok {
			if param.Required {
				return &CommandError{Kind: KindMissingRequiredArgument, Command: def.QualifiedName(), Param: param.Name}
			}
			cctx.args[param.Name] = defaultValue(param)
			continue
		}

		value, converted := convert(raw, param.Type)
		if !converted {
			return &CommandError{Kind: KindBadArgument, Command: def.QualifiedName(), Param: param.Name, Value: raw}
		}
		cctx.args[param.Name] = value
	}
	return nil
}

func defaultValue(param Param) interface{} {
	if param.Default != nil {
		return param.Default
	}
	switch param.Type {
	case Int:
		return int64(0)
	case Float:
		return float64(0)
	case Bool:
		return false
	default:
		return ""
	}
}

// Invoke runs one invocation to completion. The returned error, when not
// nil, is always a *CommandError whose Kind states what went wrong.
func (r *Registry) Invoke(ctx context.Context, inv Invocation) error {
	tokens := inv.Path
	if inv.Source == SourceMessage {
		tokens = Tokenize(inv.Content)
	}

	def, rest, err := r.resolve(tokens)
	if err != nil {
		return err
	}

	cctx := newContext(ctx, r.log, r.responder)
	cctx.Source = inv.Source
	cctx.Command = def
	cctx.Prefix = inv.Prefix
	cctx.UserID = inv.UserID
	cctx.GuildID = inv.GuildID
	cctx.ChannelID = inv.ChannelID
	cctx.RawContent = inv.Content

	if inv.Source == SourceInteraction {
		err = bindNamed(cctx, def, inv.Options)
	} else {
		err = bindPositional(cctx, def, rest)
	}
	if err != nil {
		return err
	}

	for _, check := range def.allChecks() {
		if checkErr := check(cctx); checkErr != nil {
			return &CommandError{Kind: KindCheckFailure, Command: def.QualifiedName(), Err: checkErr}
		}
	}

	release, err := r.gate.Acquire(ctx, def.QualifiedName(), def.Cooldown, def.Concurrency, cctx.Keys())
	if err != nil {
		return gateError(def, err)
	}
	defer release()

	return r.run(cctx, def)
}

// run invokes the handler with panic containment so one faulty command can
// never take down the event loop.
func (r *Registry) run(cctx *Context, def *Definition) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			cctx.Log.Error().Interface("panic", recovered).Str("command", def.QualifiedName()).Msg("command handler panicked")
			err = &CommandError{Kind: KindHandlerError, Command: def.QualifiedName(), Err: fmt.Errorf("panic: %v", recovered)}
		}
	}()

	if handlerErr := def.Handler(cctx); handlerErr != nil {
		return &CommandError{Kind: KindHandlerError, Command: def.QualifiedName(), Err: handlerErr}
	}
	return nil
}

func gateError(def *Definition, err error) error {
	var cooldownErr *gate.CooldownError
	if errors.As(err, &cooldownErr) {
		return &CommandError{
			Kind:       KindCommandOnCooldown,
			Command:    def.QualifiedName(),
			RetryAfter: cooldownErr.RetryAfter,
			Err:        err,
		}
	}

	var concurrencyErr *gate.ConcurrencyError
	if errors.As(err, &concurrencyErr) {
		return &CommandError{Kind: KindMaxConcurrencyReached, Command: def.QualifiedName(), Err: err}
	}

	return &CommandError{Kind: KindUnknown, Command: def.QualifiedName(), Err: err}
}
