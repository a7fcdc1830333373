package querycache

import "strings"

// Key names one cached value of type T. Keys are slash separated paths whose
// first segment is the invalidation root, e.g. "products/list/page=1".
type Key[T any] struct {
	path string
}

// NewKey joins parts into a key path.
func NewKey[T any](parts ...string) Key[T] {
	return Key[T]{path: strings.Join(parts, "/")}
}

// String returns the key path.
func (k Key[T]) String() string {
	return k.path
}

// Root returns the first path segment.
func (k Key[T]) Root() string {
	return rootOf(k.path)
}

func rootOf(path string) string {
	root, _, _ := strings.Cut(path, "/")
	return root
}
