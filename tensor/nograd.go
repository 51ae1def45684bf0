package tensor

var gradEnabled = true

// WithNoGrad runs fn with autograd graph construction disabled: operations
// still compute forward results but record no creators, so nothing inside
// the region can be backpropagated through. The previous mode is restored on
// exit, including when fn fails.
func WithNoGrad(fn func() error) error {
	prev := gradEnabled
	gradEnabled = false
	defer func() { gradEnabled = prev }()
	return fn()
}

// GradEnabled reports whether operations currently record the autograd graph.
func GradEnabled() bool {
	return gradEnabled
}
