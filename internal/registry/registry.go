// Package registry records the plugins a library declares: their names,
// the trampoline slot each one occupies and whether it has been handed to
// the host yet.
package registry

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
)

// Error codes returned by Add and Publish.
const (
	CodeNameInvalid    = "MMIO_NAME_INVALID"
	CodeNameDuplicate  = "MMIO_NAME_DUPLICATE"
	CodeSlotsExhausted = "MMIO_SLOTS_EXHAUSTED"
	CodePublishFailed  = "MMIO_PUBLISH_FAILED"
)

// MaxNameLen bounds plugin names. Names travel to the host as C strings.
const MaxNameLen = 63

var validate = validator.New()

// nameRule is a plugin name as the host will see it: printable ASCII, which
// also rules out embedded NUL bytes.
type nameRule struct {
	Name string `validate:"required,printascii,max=63"`
}

// Entry is one declared plugin.
type Entry struct {
	Name        string
	Description string
	Slot        int
	Args        any
	Published   bool
}

// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	entries  []*Entry
	byName   map[string]*Entry
	capacity int
}

// New creates a registry with room for capacity plugins.
func New(capacity int) *Registry {
	return &Registry{
		byName:   make(map[string]*Entry),
		capacity: capacity,
	}
}

// ValidateName reports whether name can be registered with the host.
func ValidateName(name string) error {
	if err := validate.Struct(nameRule{Name: name}); err != nil {
		return oops.In("registry").Code(CodeNameInvalid).With("plugin", name).Wrapf(err, "invalid plugin name %q", name)
	}
	return nil
}

// Add declares a plugin and assigns it the next free slot. Names are unique
// within one registry; uniqueness across libraries is the host's concern.
func (r *Registry) Add(name, description string, args any) (Entry, error) {
	if err := ValidateName(name); err != nil {
		return Entry{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	errb := oops.In("registry").With("plugin", name)
	if _, exists := r.byName[name]; exists {
		return Entry{}, errb.Code(CodeNameDuplicate).Errorf("plugin %q already declared", name)
	}
	if len(r.entries) >= r.capacity {
		return Entry{}, errb.Code(CodeSlotsExhausted).With("capacity", r.capacity).
			Errorf("cannot declare %q: all %d plugin slots in use", name, r.capacity)
	}

	e := &Entry{
		Name:        name,
		Description: description,
		Slot:        len(r.entries),
		Args:        args,
	}
	r.entries = append(r.entries, e)
	r.byName[name] = e
	return *e, nil
}

// Remove drops an entry that was never published, for rollback when a
// later registration step fails. The slot is not reused.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byName[name]; ok && !e.Published {
		delete(r.byName, name)
	}
}

// Publish calls fn for every entry not yet published, in slot order, and
// marks each entry published once fn succeeds. The first error stops the
// walk; remaining entries stay pending for a later call.
func (r *Registry) Publish(fn func(Entry) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.Published {
			continue
		}
		if !r.live(e) {
			continue
		}
		if err := fn(*e); err != nil {
			return oops.In("registry").Code(CodePublishFailed).With("plugin", e.Name).With("slot", e.Slot).Wrap(err)
		}
		e.Published = true
	}
	return nil
}

// live reports whether e is the current entry for its name. Callers hold mu.
func (r *Registry) live(e *Entry) bool {
	return r.byName[e.Name] == e
}

// Get returns the entry declared under name.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byName[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns a snapshot of all declared plugins in slot order.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, len(r.byName))
	for _, e := range r.entries {
		if r.live(e) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// PluginManifest describes one declared plugin.
type PluginManifest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Slot        int             `json:"slot"`
	Published   bool            `json:"published"`
	ArgsSchema  json.RawMessage `json:"args_schema,omitempty"`
}

// argsReflector inlines the args struct at the top level. Devices ignore
// keys they do not know, so additional properties stay allowed.
var argsReflector = &jsonschema.Reflector{
	ExpandedStruct:            true,
	DoNotReference:            true,
	AllowAdditionalProperties: true,
}

// Manifest lists every declared plugin, with a JSON schema for those that
// described their argument format.
func (r *Registry) Manifest() ([]PluginManifest, error) {
	entries := r.Entries()
	out := make([]PluginManifest, 0, len(entries))
	for _, e := range entries {
		pm := PluginManifest{
			Name:        e.Name,
			Description: e.Description,
			Slot:        e.Slot,
			Published:   e.Published,
		}
		if e.Args != nil {
			schema, err := json.Marshal(argsReflector.Reflect(e.Args))
			if err != nil {
				return nil, oops.In("registry").With("plugin", e.Name).Wrapf(err, "marshal args schema")
			}
			pm.ArgsSchema = schema
		}
		out = append(out, pm)
	}
	return out, nil
}
