package contracts

// Response is the wire form of a capability result: exactly one of Ok or
// Refuse is set.
type Response[T any] struct {
	SchemaVersion string   `json:"schema_version"`
	Ok            *T       `json:"ok,omitempty"`
	Refuse        *Refusal `json:"refuse,omitempty"`
}

// NewResponse folds a capability's (value, error) result into a Response.
// Refusals become the Refuse arm. Any other error, notably an InternalError,
// is returned unchanged so that it is never reported as a user refusal.
func NewResponse[T any](v *T, err error) (Response[T], error) {
	if err != nil {
		if r, ok := AsRefusal(err); ok {
			return Response[T]{SchemaVersion: SchemaVersion, Refuse: r}, nil
		}
		return Response[T]{}, err
	}
	if v == nil {
		return Response[T]{}, Internal(CapabilityKernel, "ok response without payload")
	}
	return Response[T]{SchemaVersion: SchemaVersion, Ok: v}, nil
}

// IsOk reports whether r carries an Ok payload.
func (r Response[T]) IsOk() bool { return r.Ok != nil && r.Refuse == nil }
