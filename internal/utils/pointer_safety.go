package utils

// Value dereferences v, returning the zero value for nil. Used when scanning nullable columns.
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

func Ptr[T any](v T) *T {
	return &v
}

// NonZeroPtr maps a zero value (as reported by IsZero, e.g. time.Time) to nil so it is stored as
// SQL NULL or omitted from JSON.
func NonZeroPtr[T interface{ IsZero() bool }](v T) *T {
	if v.IsZero() {
		return nil
	}
	return &v
}
