// Package slice has the generic helpers the slices package lacks.
package slice

// Map returns fn applied to every element, in order.
func Map[T any, U any](input []T, fn func(T) U) []U {
	result := make([]U, len(input))
	for i, v := range input {
		result[i] = fn(v)
	}
	return result
}

// All reports whether pred holds for every element. It is true for an
// empty slice.
func All[T any](input []T, pred func(T) bool) bool {
	for _, v := range input {
		if !pred(v) {
			return false
		}
	}
	return true
}
