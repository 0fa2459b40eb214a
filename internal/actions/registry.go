// Package actions maps the action tag carried in a request envelope to the handler that
// serves it. Each endpoint owns one Registry; the Dispatcher authenticates the caller before
// any non-public command runs.
package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/orderdesk/pkg/auth"
)

// Request is one decoded action envelope. Body holds the raw envelope so each handler can
// decode the fields it owns.
type Request struct {
	Action string
	Token  string
	Body   json.RawMessage
}

// Result is what a handler returns on success. Message defaults to "ok".
type Result struct {
	Message string
	Data    any
	Total   *int64
	Stats   any
}

// HandlerFunc serves one action. The principal is zero for public commands.
type HandlerFunc func(ctx context.Context, principal auth.Principal, req Request) (*Result, error)

// Command binds an action tag to its handler.
type Command struct {
	Name string
	// Public commands run without a session token.
	Public  bool
	Handler HandlerFunc
}

// Registry holds the commands served by one endpoint.
type Registry struct {
	commands map[string]Command
}

// NewRegistry builds a registry from cmds, rejecting duplicates and empty names.
func NewRegistry(cmds ...Command) (*Registry, error) {
	r := &Registry{commands: make(map[string]Command, len(cmds))}
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds cmd to the registry.
func (r *Registry) Register(cmd Command) error {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return fmt.Errorf("command name required")
	}
	if cmd.Handler == nil {
		return fmt.Errorf("command %q has no handler", name)
	}
	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("command %q registered twice", name)
	}
	cmd.Name = name
	r.commands[name] = cmd
	return nil
}

// Lookup returns the command registered under name.
func (r *Registry) Lookup(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names lists the registered action tags in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
