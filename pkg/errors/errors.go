package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType classifies application errors for logging and recovery decisions.
type ErrorType string

const (
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeParsing       ErrorType = "parsing"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConfiguration ErrorType = "configuration"
)

// AppError carries the failing component (a store or subsystem) with the cause.
type AppError struct {
	Type    ErrorType
	Source  string
	Message string
	Err     error
	Time    time.Time
}

func (e *AppError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Type)
	if e.Source != "" {
		prefix += " " + e.Source + ":"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s - %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError stamped with the current time.
func New(errType ErrorType, source, message string, err error) *AppError {
	return &AppError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

func NewNetwork(source, message string, err error) *AppError {
	return New(ErrorTypeNetwork, source, message, err)
}

func NewTimeout(source, message string, err error) *AppError {
	return New(ErrorTypeTimeout, source, message, err)
}

func NewParsing(source, message string, err error) *AppError {
	return New(ErrorTypeParsing, source, message, err)
}

func NewStorage(message string, err error) *AppError {
	return New(ErrorTypeStorage, "storage", message, err)
}

func NewValidation(source, message string) *AppError {
	return New(ErrorTypeValidation, source, message, nil)
}

func NewConfiguration(message string, err error) *AppError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// Classify wraps a browser or transport error, telling deadline expiry apart
// from other I/O failures.
func Classify(source, message string, err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
		return NewTimeout(source, message, err)
	}
	return NewNetwork(source, message, err)
}

// TypeOf returns the ErrorType of the first AppError in the chain, or "".
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsTimeout reports whether err is a classified timeout.
func IsTimeout(err error) bool {
	return TypeOf(err) == ErrorTypeTimeout
}
