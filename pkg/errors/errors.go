// Package errors provides custom error types for miniMD
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a required file is not found
	ErrNotFound = errors.New("file not found")

	// ErrParse is returned when a file cannot be parsed
	ErrParse = errors.New("parse failure")

	// ErrDecomposition is returned when the spatial decomposition cannot
	// accommodate the requested cutoff
	ErrDecomposition = errors.New("decomposition does not fit cutoff")
)

// ErrorCode represents an error code
type ErrorCode string

const (
	// Input error codes
	CodeInputFile     ErrorCode = "INPUT_FILE"
	CodeInputParse    ErrorCode = "INPUT_PARSE"
	CodeInvalidOption ErrorCode = "INVALID_OPTION"

	// Data error codes
	CodeDataFile    ErrorCode = "DATA_FILE"
	CodePotentialIO ErrorCode = "POTENTIAL_IO"

	// Run error codes
	CodeDecomposition ErrorCode = "DECOMPOSITION"
)

// AppError represents an application error with code and context
type AppError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail attaches a key/value pair to the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewInputFileError creates an error for an unreadable input file
func NewInputFileError(path string, err error) *AppError {
	return &AppError{
		Code:    CodeInputFile,
		Message: fmt.Sprintf("cannot open input file %s", path),
		Err:     err,
	}
}

// NewInputParseError creates an error for a malformed input file line
func NewInputParseError(path string, line int, err error) *AppError {
	return &AppError{
		Code:    CodeInputParse,
		Message: fmt.Sprintf("cannot parse %s line %d", path, line),
		Err:     err,
	}
}

// NewInvalidOptionError creates an error for a bad command-line option
func NewInvalidOptionError(option string, value interface{}) *AppError {
	e := &AppError{
		Code:    CodeInvalidOption,
		Message: fmt.Sprintf("invalid value for %s", option),
		Err:     ErrInvalidInput,
	}
	return e.WithDetail("value", value)
}

// NewDataFileError creates an error for a malformed LAMMPS data file
func NewDataFileError(path string, err error) *AppError {
	return &AppError{
		Code:    CodeDataFile,
		Message: fmt.Sprintf("cannot read data file %s", path),
		Err:     err,
	}
}

// NewPotentialIOError creates an error for an unreadable potential file
func NewPotentialIOError(path string, err error) *AppError {
	return &AppError{
		Code:    CodePotentialIO,
		Message: fmt.Sprintf("cannot read potential file %s", path),
		Err:     err,
	}
}

// NewDecompositionError creates an error for a sub-box narrower than the cutoff
func NewDecompositionError(dim int, width, cutneigh float64) *AppError {
	e := &AppError{
		Code:    CodeDecomposition,
		Message: "sub-box narrower than neighbor cutoff; reduce process count",
		Err:     ErrDecomposition,
	}
	e.WithDetail("dim", dim)
	e.WithDetail("width", width)
	return e.WithDetail("cutneigh", cutneigh)
}

// Is reports whether target matches this error or its cause
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
