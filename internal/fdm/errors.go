package fdm

import (
	"errors"
	"fmt"
	"math"
)

// Domain errors for FDM operations.
var (
	// ErrUnknownProperty indicates a name that is not registered with the engine.
	ErrUnknownProperty = errors.New("fdm: unknown property")

	// ErrInvalidValue indicates the engine rejected a value or produced NaN/Inf.
	ErrInvalidValue = errors.New("fdm: invalid value")

	// ErrInitialCondition indicates the settle step could not converge.
	ErrInitialCondition = errors.New("fdm: initial condition failure")

	// ErrInvalidConfiguration indicates malformed call arguments.
	ErrInvalidConfiguration = errors.New("fdm: invalid configuration")

	// ErrNonConvergence is the soft failure reported by the trim optimizer.
	ErrNonConvergence = errors.New("fdm: optimization did not converge")

	// ErrHandleBusy indicates a second owner tried to take a held handle.
	ErrHandleBusy = errors.New("fdm: handle already owned")
)

// Kind categorizes an [*Error].
type Kind int

const (
	KindUnknownProperty Kind = iota + 1
	KindInvalidValue
	KindInitialCondition
	KindInvalidConfiguration
	KindNonConvergence
)

func (k Kind) String() string {
	switch k {
	case KindUnknownProperty:
		return "UnknownProperty"
	case KindInvalidValue:
		return "InvalidValue"
	case KindInitialCondition:
		return "InitialConditionFailure"
	case KindInvalidConfiguration:
		return "InvalidConfiguration"
	case KindNonConvergence:
		return "OptimizationNonConvergence"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnknownProperty:
		return ErrUnknownProperty
	case KindInvalidValue:
		return ErrInvalidValue
	case KindInitialCondition:
		return ErrInitialCondition
	case KindInvalidConfiguration:
		return ErrInvalidConfiguration
	case KindNonConvergence:
		return ErrNonConvergence
	}
	return nil
}

// Error wraps a failure with the operation and property that caused it.
type Error struct {
	Kind     Kind
	Op       string
	Property string
	Value    float64
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Property != "" {
		msg += fmt.Sprintf(" %q", e.Property)
		if e.Kind == KindInvalidValue && !math.IsNaN(e.Value) {
			msg += fmt.Sprintf(" = %g", e.Value)
		}
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the Kind carried by err, or 0 when err is not from this package.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	for _, k := range []Kind{KindUnknownProperty, KindInvalidValue, KindInitialCondition, KindInvalidConfiguration, KindNonConvergence} {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}
	return 0
}

func UnknownProperty(op, name string) *Error {
	return &Error{Kind: KindUnknownProperty, Op: op, Property: name, Value: math.NaN()}
}

func InvalidValue(op, name string, v float64, err error) *Error {
	return &Error{Kind: KindInvalidValue, Op: op, Property: name, Value: v, Err: err}
}

func InitialConditionFailure(op string, err error) *Error {
	return &Error{Kind: KindInitialCondition, Op: op, Value: math.NaN(), Err: err}
}

func InvalidConfiguration(op, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidConfiguration, Op: op, Value: math.NaN(), Message: fmt.Sprintf(format, args...)}
}

func NonConvergence(op, format string, args ...any) *Error {
	return &Error{Kind: KindNonConvergence, Op: op, Value: math.NaN(), Message: fmt.Sprintf(format, args...)}
}
