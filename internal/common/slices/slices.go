package slices

// Map returns a slice of the same length as s containing f applied to every element of s, in order.
func Map[S ~[]E, E any, V any](s S, f func(E) V) []V {
	if s == nil {
		return nil
	}
	rv := make([]V, len(s))
	for i, e := range s {
		rv[i] = f(e)
	}
	return rv
}

// Filter returns the elements of s for which keep returns true, in order.
func Filter[S ~[]E, E any](s S, keep func(E) bool) S {
	if s == nil {
		return nil
	}
	rv := make(S, 0, len(s))
	for _, e := range s {
		if keep(e) {
			rv = append(rv, e)
		}
	}
	return rv
}

// Unique returns a copy of s with duplicate elements removed, keeping only the first occurrence.
func Unique[S ~[]E, E comparable](s S) S {
	if s == nil {
		return nil
	}
	rv := make(S, 0)
	seen := make(map[E]bool)
	for _, v := range s {
		if !seen[v] {
			rv = append(rv, v)
			seen[v] = true
		}
	}
	return rv
}
