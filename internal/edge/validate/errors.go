package validate

import "fmt"

// ValidationError is a single validation problem with its file location
type ValidationError struct {
	File    string
	Line    int // 0 if line number not available
	Message string
}

func (e ValidationError) String() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s line %d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// ErrorCollector collects validation errors and warnings
type ErrorCollector struct {
	errors   []ValidationError
	warnings []ValidationError
}

func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		errors:   make([]ValidationError, 0),
		warnings: make([]ValidationError, 0),
	}
}

// Add adds a validation error with formatted message
func (ec *ErrorCollector) Add(file string, line int, format string, args ...interface{}) {
	ec.errors = append(ec.errors, ValidationError{
		File:    file,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	})
}

// AddWarning adds a validation warning with formatted message
func (ec *ErrorCollector) AddWarning(file string, line int, format string, args ...interface{}) {
	ec.warnings = append(ec.warnings, ValidationError{
		File:    file,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	})
}

func (ec *ErrorCollector) HasErrors() bool {
	return len(ec.errors) > 0
}

func (ec *ErrorCollector) Errors() []ValidationError {
	return ec.errors
}

func (ec *ErrorCollector) Warnings() []ValidationError {
	return ec.warnings
}
