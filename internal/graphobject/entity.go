// Package graphobject defines the minimal contract graph objects must
// satisfy to be accepted by the object store: §3 of the integration
// runtime's specification. It deliberately does not define or validate
// per-_class wire schemas — that is the embedder's schema validator,
// consulted only through the SchemaValidator interface in
// internal/objectstore (hooks.go).
package graphobject

import "fmt"

// Entity is a mapping of string keys to scalar/array/object values. It must
// carry at minimum _key, _type, and _class.
type Entity map[string]any

// Key returns the entity's _key, or "" if absent/not a string.
func (e Entity) Key() string {
	return stringField(e, "_key")
}

// Type returns the entity's _type, or "" if absent/not a string.
func (e Entity) Type() string {
	return stringField(e, "_type")
}

// Class returns the entity's _class, normalized to a slice of strings
// regardless of whether it was stored as a single string or a sequence.
func (e Entity) Class() []string {
	return classField(e, "_class")
}

// Validate performs the minimal structural check §3 requires of every
// entity: non-empty _key, _type, and _class. It is not a substitute for the
// embedder's schema/class validator (spec.md Non-goals) — it only keeps
// malformed objects out of the store's indices.
func (e Entity) Validate() error {
	if e.Key() == "" {
		return fmt.Errorf("entity missing required _key")
	}
	if e.Type() == "" {
		return fmt.Errorf("entity %q missing required _type", e.Key())
	}
	if len(e.Class()) == 0 {
		return fmt.Errorf("entity %q missing required _class", e.Key())
	}
	return nil
}

func stringField(m map[string]any, name string) string {
	v, ok := m[name]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func classField(m map[string]any, name string) []string {
	v, ok := m[name]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
