// Package options implements the functional-option pattern this repo's
// write-time placement flags are built from: gif.WithLegacyPlacement and
// jpeg.WithLegacyPlacement are both Option[*writeConfig] values applied to a
// zero-valued config struct before a WriteTags call does anything else.
// Neither of those options can fail, but Option's apply returns an error so
// a future option (e.g. one that validates a combination of flags) isn't
// blocked by the signature.
package options

// Option mutates a *writeConfig (or any other target type T) when applied.
type Option[T any] interface {
	apply(T) error
}

// Func adapts a plain function into an Option.
type Func[T any] struct {
	applyFunc func(T) error
}

func (f *Func[T]) apply(target T) error {
	return f.applyFunc(target)
}

// New wraps a fallible function as an Option.
func New[T any](fn func(T) error) *Func[T] {
	return &Func[T]{applyFunc: fn}
}

// Apply runs every option against target in order, stopping at the first
// error.
func Apply[T any](target T, opts ...Option[T]) error {
	for _, opt := range opts {
		if err := opt.apply(target); err != nil {
			return err
		}
	}

	return nil
}

// NoError wraps a function that cannot fail as an Option — the shape
// WithLegacyPlacement uses, since flipping a boolean never errors.
func NoError[T any](fn func(T)) *Func[T] {
	return &Func[T]{
		applyFunc: func(target T) error {
			fn(target)
			return nil
		},
	}
}
