package util

// Ptr returns a pointer to v. Handy for optional struct fields that
// take a *T, like the server port in configuration.
func Ptr[T any](v T) *T {
	return &v
}
