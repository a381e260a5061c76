// Package namespace binds the gateway's logical namespaces to storage buckets.
package namespace

import (
	"fmt"
	"strings"
)

// Generic is the namespace label used for the admin path, where the caller
// names the bucket on every request.
const Generic = "generic"

// Binding ties a fixed namespace to its URL prefix and bucket.
type Binding struct {
	Name   string
	Prefix string
	Bucket string
}

// Registry is an immutable, ordered table of fixed namespace bindings.
type Registry struct {
	bindings []Binding
	byName   map[string]Binding
}

// Default returns the registry with the four fixed namespaces. Each one is
// bound to a bucket of the same name.
func Default() *Registry {
	r, err := New([]Binding{
		{Name: "pcap", Prefix: "/pcap", Bucket: "pcap"},
		{Name: "tstat", Prefix: "/analytics/tstat", Bucket: "tstat"},
		{Name: "pfcpflowmeter", Prefix: "/analytics/pfcpflowmeter", Bucket: "pfcpflowmeter"},
		{Name: "cicflowmeter", Prefix: "/analytics/cicflowmeter", Bucket: "cicflowmeter"},
	})
	if err != nil {
		panic(err)
	}
	return r
}

// New builds a registry from bindings, rejecting duplicates and malformed prefixes.
func New(bindings []Binding) (*Registry, error) {
	r := &Registry{
		bindings: make([]Binding, 0, len(bindings)),
		byName:   make(map[string]Binding, len(bindings)),
	}
	prefixes := make(map[string]bool, len(bindings))

	for _, b := range bindings {
		if b.Name == "" || b.Bucket == "" {
			return nil, fmt.Errorf("namespace binding %q: name and bucket are required", b.Name)
		}
		if b.Name == Generic {
			return nil, fmt.Errorf("namespace name %q is reserved", Generic)
		}
		if !strings.HasPrefix(b.Prefix, "/") || strings.HasSuffix(b.Prefix, "/") {
			return nil, fmt.Errorf("namespace %s: prefix %q must start and not end with /", b.Name, b.Prefix)
		}
		if _, dup := r.byName[b.Name]; dup {
			return nil, fmt.Errorf("duplicate namespace %s", b.Name)
		}
		if prefixes[b.Prefix] {
			return nil, fmt.Errorf("duplicate namespace prefix %s", b.Prefix)
		}
		prefixes[b.Prefix] = true
		r.byName[b.Name] = b
		r.bindings = append(r.bindings, b)
	}
	return r, nil
}

// Resolve returns the bucket bound to a fixed namespace.
func (r *Registry) Resolve(name string) (string, bool) {
	b, ok := r.byName[name]
	return b.Bucket, ok
}

// Generic is the identity mapping used on the admin path.
func (r *Registry) Generic(bucket string) string {
	return bucket
}

// Bindings returns the fixed bindings in registration order.
func (r *Registry) Bindings() []Binding {
	out := make([]Binding, len(r.bindings))
	copy(out, r.bindings)
	return out
}

// Buckets returns the bucket of every fixed binding, in order.
func (r *Registry) Buckets() []string {
	out := make([]string, 0, len(r.bindings))
	for _, b := range r.bindings {
		out = append(out, b.Bucket)
	}
	return out
}
