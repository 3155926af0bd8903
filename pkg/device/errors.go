package device

import "fmt"

// SetupError is the fatal setup taxonomy: missing mandatory parameter,
// dangling cross-reference, or a structurally required nonzero parameter set
// to zero. It always identifies model, instance and field.
type SetupError struct {
	Model  string
	Idx    string
	Field  string
	Reason string
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s <%s> %s: %s", e.Model, e.Idx, e.Field, e.Reason)
}

func errMissingParam(model, idx, field string) error {
	return &SetupError{Model: model, Idx: idx, Field: field, Reason: "missing mandatory parameter"}
}

func errZeroParam(model, idx, field string) error {
	return &SetupError{Model: model, Idx: idx, Field: field, Reason: "parameter must be nonzero"}
}

func errMissingRef(model, idx, field string) error {
	return &SetupError{Model: model, Idx: idx, Field: field, Reason: "missing mandatory device reference"}
}

func errDanglingRef(model, idx, field, target, key string) error {
	return &SetupError{
		Model: model, Idx: idx, Field: field,
		Reason: fmt.Sprintf("reference to unknown %s instance %q", target, key),
	}
}
