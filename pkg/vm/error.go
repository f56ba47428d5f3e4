package vm

import (
	"fmt"
)

// ErrorType represents the type of runtime error.
type ErrorType string

const (
	// Fatal errors - execution must stop
	ErrorInvalidOpcode  ErrorType = "INVALID_OPCODE"
	ErrorTruncated      ErrorType = "TRUNCATED_BYTECODE"
	ErrorStackAccess    ErrorType = "STACK_ACCESS"
	ErrorStackOverflow  ErrorType = "STACK_OVERFLOW"
	ErrorReadOnly       ErrorType = "READ_ONLY_REGISTER"
	ErrorInvalidOperand ErrorType = "INVALID_OPERAND"
	ErrorStepLimit      ErrorType = "STEP_LIMIT"

	// Non-fatal errors - execution continues
	ErrorDivisionByZero ErrorType = "DIVISION_BY_ZERO"
)

// RuntimeError represents a runtime error in the VM.
type RuntimeError struct {
	Type    ErrorType
	Message string

	// Offset is the code offset of the failing instruction.
	Offset int
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	return fmt.Sprintf("[%s] %s at offset 0x%04X", e.Type, e.Message, e.Offset)
}

// IsFatal returns true if the error is fatal and execution should stop.
func (e *RuntimeError) IsFatal() bool {
	return e.Type != ErrorDivisionByZero
}

// NewRuntimeError creates a new RuntimeError.
func NewRuntimeError(errType ErrorType, offset int, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Offset:  offset,
	}
}
