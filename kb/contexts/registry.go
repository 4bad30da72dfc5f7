package contexts

import (
	"sort"
	"strings"

	"github.com/teranos/doxa/errors"
)

// Registry holds named context expressions. Names are normalized
// upper-case. Not safe for concurrent use; hosts serialize access.
type Registry struct {
	contexts map[string]Node
	seq      map[string]int
	next     int
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		contexts: make(map[string]Node),
		seq:      make(map[string]int),
	}
}

// NormalizeName trims and upper-cases a context name.
func NormalizeName(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Define registers or replaces a named context. References to not yet
// defined names are allowed; a definition that would close a reference
// cycle is rejected with a structural error naming the cycle path.
func (r *Registry) Define(rawName string, node Node) error {
	name := NormalizeName(rawName)
	if name == "" {
		return errors.NewStructural("context name must not be empty")
	}
	if node == nil {
		return errors.NewStructural("context %s: node must not be nil", name)
	}

	// Walk refs with the candidate definition in place of any previous one.
	if path := r.findCycle(name, node, []string{name}); path != nil {
		return errors.NewStructural("context cycle: %s", strings.Join(path, " -> "))
	}

	if _, exists := r.contexts[name]; !exists {
		r.next++
		r.seq[name] = r.next
	}
	r.contexts[name] = node
	return nil
}

// findCycle walks refs depth-first looking for a path back to target.
// It returns the offending path when found.
func (r *Registry) findCycle(target string, node Node, path []string) []string {
	switch v := node.(type) {
	case Ref:
		name := NormalizeName(v.Name)
		next := append(path, name)
		if name == target {
			return next
		}
		for _, seen := range path {
			if seen == name {
				// A cycle among other contexts; it does not involve
				// target, and its own Define already rejected it.
				return nil
			}
		}
		if body, ok := r.contexts[name]; ok {
			return r.findCycle(target, body, next)
		}
		return nil
	case Op:
		for _, kid := range v.Kids {
			if p := r.findCycle(target, kid, path); p != nil {
				return p
			}
		}
		return nil
	case Quantified:
		return r.findCycle(target, v.Body, path)
	default:
		return nil
	}
}

// Resolve looks up a named context.
func (r *Registry) Resolve(rawName string) (Node, error) {
	name := NormalizeName(rawName)
	node, ok := r.contexts[name]
	if !ok {
		return nil, errors.NewStructural("context %s is not defined", name)
	}
	return node, nil
}

// Remove deletes a named context. Removing an undefined name is an
// error so REPL typos surface.
func (r *Registry) Remove(rawName string) error {
	name := NormalizeName(rawName)
	if _, ok := r.contexts[name]; !ok {
		return errors.NewStructural("context %s is not defined", name)
	}
	delete(r.contexts, name)
	delete(r.seq, name)
	return nil
}

// Names returns all defined context names in definition order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.contexts))
	for name := range r.contexts {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return r.seq[out[i]] < r.seq[out[j]] })
	return out
}

// Len returns the number of defined contexts.
func (r *Registry) Len() int {
	return len(r.contexts)
}
