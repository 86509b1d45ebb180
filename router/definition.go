package router

import (
	"errors"
	"fmt"

	"github.com/diskordpkg/engine/gate"
)

// ParamType declares how a raw token is converted before it is handed to
// the handler.
type ParamType int

const (
	String ParamType = iota
	Int
	Float
	Bool
	// Snowflake accepts a numeric id, optionally wrapped in a mention such
	// as <@123>, <#123> or <@&123>.
	Snowflake
)

// Param describes one declared parameter. Optional parameters carry a
// default; a Rest parameter swallows all remaining tokens into one string
// and must be declared last.
type Param struct {
	Name     string
	Type     ParamType
	Required bool
	Default  interface{}
	Rest     bool
}

// Check is a predicate evaluated before invocation. Returning a non-nil
// error aborts the invocation with a check failure.
type Check func(ctx *Context) error

// HandlerFunc executes a resolved invocation.
type HandlerFunc func(ctx *Context) error

// Definition is one node in the command tree: either an executable command
// or a group holding subcommands (a group may be both).
type Definition struct {
	Name        string
	Description string
	Params      []Param
	Checks      []Check
	Cooldown    *gate.Cooldown
	Concurrency *gate.MaxConcurrency
	Handler     HandlerFunc

	parent     *Definition
	children   map[string]*Definition
	childOrder []string
}

// AddChild attaches a subcommand. Sibling names must be unique and a
// definition can only ever have one parent, which keeps the tree acyclic.
func (d *Definition) AddChild(child *Definition) error {
	if child == nil || child.Name == "" {
		return errors.New("child definition requires a name")
	}
	if child.parent != nil {
		return fmt.Errorf("command %q is already attached to %q", child.Name, child.parent.QualifiedName())
	}
	if err := validateParams(child.Params); err != nil {
		return fmt.Errorf("command %q: %w", child.Name, err)
	}

	if d.children == nil {
		d.children = make(map[string]*Definition)
	}
	if _, exists := d.children[child.Name]; exists {
		return &CommandError{Kind: KindDuplicateCommand, Command: child.qualifiedChildName(child.Name)}
	}

	child.parent = d
	d.children[child.Name] = child
	d.childOrder = append(d.childOrder, child.Name)
	return nil
}

// Child returns the direct subcommand with the given name.
func (d *Definition) Child(name string) (*Definition, bool) {
	child, ok := d.children[name]
	return child, ok
}

// Children returns subcommands in registration order.
func (d *Definition) Children() []*Definition {
	children := make([]*Definition, 0, len(d.childOrder))
	for _, name := range d.childOrder {
		children = append(children, d.children[name])
	}
	return children
}

// QualifiedName is the full invocation path, e.g. "shop buy item".
func (d *Definition) QualifiedName() string {
	if d.parent == nil {
		return d.Name
	}
	return d.parent.QualifiedName() + " " + d.Name
}

func (d *Definition) qualifiedChildName(name string) string {
	if d.Name == "" {
		return name
	}
	return d.QualifiedName() + " " + name
}

// allChecks returns the checks to evaluate, ancestors first.
func (d *Definition) allChecks() []Check {
	if d.parent == nil {
		return d.Checks
	}
	inherited := d.parent.allChecks()
	checks := make([]Check, 0, len(inherited)+len(d.Checks))
	checks = append(checks, inherited...)
	checks = append(checks, d.Checks...)
	return checks
}

func validateParams(params []Param) error {
	seenOptional := false
	for i, p := range params {
		if p.Name == "" {
			return fmt.Errorf("parameter %d has no name", i)
		}
		if p.Rest {
			if i != len(params)-1 {
				return fmt.Errorf("rest parameter %q must be declared last", p.Name)
			}
			if p.Type != String {
				return fmt.Errorf("rest parameter %q must be a string", p.Name)
			}
		}
		if p.Required && seenOptional {
			return fmt.Errorf("required parameter %q follows an optional one", p.Name)
		}
		if !p.Required {
			seenOptional = true
		}
	}
	return nil
}
