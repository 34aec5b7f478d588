package evostrat

// ErrInvalidConfig is returned when an optimizer configuration violates a
// precondition. Use errors.Is(err, ErrInvalidConfig) to check for this error.
var ErrInvalidConfig = &ConfigError{}

// ConfigError represents an invalid optimizer configuration or an invalid
// population-construction argument. It is always returned before any
// objective-function call is made.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return "invalid configuration: " + e.Field + " " + e.Reason
	}
	return "invalid configuration"
}

func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}
