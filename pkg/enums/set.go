package enums

import "slices"

// set is the closed list of values for one string enum.
type set[T ~string] struct {
	values []T
}

func newSet[T ~string](values ...T) set[T] {
	return set[T]{values: values}
}

func (s set[T]) contains(v T) bool {
	return slices.Contains(s.values, v)
}
