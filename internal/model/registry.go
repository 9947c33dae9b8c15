package model

import (
	"strings"

	"github.com/google/uuid"
)

// IDLength is the fixed length of entity ids.
const IDLength = 8

// IdRegistry tracks every entity id in one Config during a Sanitize pass and
// hands out fresh ids on demand. It is a locally scoped builder: each pass
// starts from an empty registry so independent configs never collide.
type IdRegistry struct {
	used map[string]bool
}

// NewIdRegistry returns an empty registry.
func NewIdRegistry() *IdRegistry {
	return &IdRegistry{used: make(map[string]bool)}
}

// Register claims id. It reports false when the id is empty, malformed, or
// already claimed; the caller then assigns a generated one.
func (r *IdRegistry) Register(id string) bool {
	if len(id) != IDLength || r.used[id] {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] > 0x7f {
			return false
		}
	}
	r.used[id] = true
	return true
}

// Generate returns a fresh 8-char ascii id and claims it.
func (r *IdRegistry) Generate() string {
	for {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:IDLength]
		if !r.used[id] {
			r.used[id] = true
			return id
		}
	}
}

// Ensure validates id against the registry, generating a replacement when it
// is missing or collides.
func (r *IdRegistry) Ensure(id string) string {
	if r.Register(id) {
		return id
	}
	return r.Generate()
}

// TagRegistry is the union of all items' tags, used to validate TagPredicate
// references. Like IdRegistry it is rebuilt from scratch on every Sanitize.
type TagRegistry struct {
	tags map[string]bool
}

// NewTagRegistry returns an empty registry.
func NewTagRegistry() *TagRegistry {
	return &TagRegistry{tags: make(map[string]bool)}
}

// Add records a tag. Case-sensitive, matching item tag dedup.
func (r *TagRegistry) Add(tag string) {
	r.tags[tag] = true
}

// Has reports whether any item carries tag.
func (r *TagRegistry) Has(tag string) bool {
	return r.tags[tag]
}

// Missing returns the subset of tags not present in the registry.
func (r *TagRegistry) Missing(tags []string) []string {
	var missing []string
	for _, t := range tags {
		if !r.tags[t] {
			missing = append(missing, t)
		}
	}
	return missing
}
