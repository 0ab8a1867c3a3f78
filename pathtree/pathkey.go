// Package pathtree implements PathKey and TreePathMap, the wildcard-aware
// prefix-tree primitives shared by hostname (SNI) lookup and URI-path
// mount lookup (spec §4.2).
package pathtree

import "strings"

// PathKey is an ordered list of path components plus a wildcard marker.
// PathKey values are immutable once constructed; every operation that
// would mutate one instead returns a new one.
//
// The same PathKey shape backs two different wire renderings:
//   - hostname keys are rendered back-to-front ("www.example.com" becomes
//     the component list [com, example, www]);
//   - URI-path keys are rendered front-to-back ("/a/b" becomes
//     [a, b]).
//
// Internally PathKey always stores components in the canonical forward
// order used for trie traversal; callers pick the rendering on I/O via
// NewHostnameKey/String or NewURIKey/String.
type PathKey struct {
	components []string
	wildcard   bool
}

// NewPathKey constructs a PathKey directly from already-ordered
// components. The returned key is marked wildcard when wildcard is true.
func NewPathKey(components []string, wildcard bool) PathKey {
	cp := make([]string, len(components))
	copy(cp, components)
	return PathKey{components: cp, wildcard: wildcard}
}

// NewHostnameKey parses a hostname (optionally with a leading "*."
// wildcard component) into its canonical reversed PathKey, e.g.
// "www.example.com" becomes components [com, example, www], and
// "*.example.com" becomes the wildcard key [com, example].
func NewHostnameKey(hostname string) PathKey {
	hostname = strings.TrimSuffix(hostname, ".")
	parts := strings.Split(hostname, ".")

	wildcard := false
	if len(parts) > 0 && parts[0] == "*" {
		wildcard = true
		parts = parts[1:]
	}

	reversed := make([]string, len(parts))
	for i, p := range parts {
		reversed[len(parts)-1-i] = strings.ToLower(p)
	}

	return PathKey{components: reversed, wildcard: wildcard}
}

// NewURIKey parses a "/"-delimited URI path into its canonical forward
// PathKey. A trailing "/*" marks the key as wildcard; a bare trailing "/"
// is preserved as an empty trailing component (used to distinguish
// directory dispatch, spec §4.4).
func NewURIKey(path string) PathKey {
	path = strings.TrimPrefix(path, "/")

	wildcard := false
	if path == "*" {
		return PathKey{wildcard: true}
	}

	if strings.HasSuffix(path, "/*") {
		wildcard = true
		path = strings.TrimSuffix(path, "/*")
	}

	if path == "" {
		return PathKey{wildcard: wildcard}
	}

	return PathKey{components: strings.Split(path, "/"), wildcard: wildcard}
}

// Components returns the ordered components of the key. The returned
// slice must not be mutated by the caller.
func (k PathKey) Components() []string {
	return k.components
}

// Len returns the number of components in the key.
func (k PathKey) Len() int {
	return len(k.components)
}

// Wildcard reports whether the key carries the wildcard marker.
func (k PathKey) Wildcard() bool {
	return k.wildcard
}

// Slice returns a new, always non-wildcard PathKey over components
// [start, end) of k.
func (k PathKey) Slice(start, end int) PathKey {
	cp := make([]string, end-start)
	copy(cp, k.components[start:end])
	return PathKey{components: cp}
}

// Equal reports whether k and other have identical components and an
// identical wildcard marker.
func (k PathKey) Equal(other PathKey) bool {
	if k.wildcard != other.wildcard || len(k.components) != len(other.components) {
		return false
	}

	for i := range k.components {
		if k.components[i] != other.components[i] {
			return false
		}
	}

	return true
}

// HostnameString renders the key back to a dotted hostname, most-specific
// component last, the inverse of NewHostnameKey. A wildcard key is
// rendered with a leading "*.".
func (k PathKey) HostnameString() string {
	parts := make([]string, len(k.components))
	for i, c := range k.components {
		parts[len(k.components)-1-i] = c
	}

	if k.wildcard {
		return "*." + strings.Join(parts, ".")
	}

	return strings.Join(parts, ".")
}

// URIString renders the key back to a "/"-prefixed URI path, the inverse
// of NewURIKey. A wildcard key is rendered with a trailing "/*".
func (k PathKey) URIString() string {
	s := "/" + strings.Join(k.components, "/")
	if k.wildcard {
		if s == "/" {
			return "/*"
		}
		return s + "/*"
	}

	return s
}
