// internal/model/errors.go
package model

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode classifies a PrinterError
type ErrorCode string

const (
	ErrCodeConnectionFailed     ErrorCode = "CONNECTION_FAILED"
	ErrCodePrinterOffline       ErrorCode = "PRINTER_OFFLINE"
	ErrCodeOutOfPaper           ErrorCode = "OUT_OF_PAPER"
	ErrCodeCoverOpen            ErrorCode = "COVER_OPEN"
	ErrCodePaperJam             ErrorCode = "PAPER_JAM"
	ErrCodeOverheat             ErrorCode = "OVERHEAT"
	ErrCodeLowVoltage           ErrorCode = "LOW_VOLTAGE"
	ErrCodeCommandError         ErrorCode = "COMMAND_ERROR"
	ErrCodeTimeout              ErrorCode = "TIMEOUT"
	ErrCodeInvalidConfig        ErrorCode = "INVALID_CONFIG"
	ErrCodePrinterNotFound      ErrorCode = "PRINTER_NOT_FOUND"
	ErrCodeUnsupportedOperation ErrorCode = "UNSUPPORTED_OPERATION"
	ErrCodeNotInitialized       ErrorCode = "NOT_INITIALIZED"
)

// errorDescriptions holds the user-facing text of every code
var errorDescriptions = map[ErrorCode]string{
	ErrCodeConnectionFailed:     "Failed to connect to printer",
	ErrCodePrinterOffline:       "Printer is not connected",
	ErrCodeOutOfPaper:           "Printer is out of paper",
	ErrCodeCoverOpen:            "Printer cover is open",
	ErrCodePaperJam:             "Paper jam detected",
	ErrCodeOverheat:             "Print head overheated",
	ErrCodeLowVoltage:           "Printer supply voltage is too low",
	ErrCodeCommandError:         "Printer failed to execute command",
	ErrCodeTimeout:              "Operation timed out",
	ErrCodeInvalidConfig:        "Invalid printer configuration",
	ErrCodePrinterNotFound:      "Printer not found",
	ErrCodeUnsupportedOperation: "Operation not supported",
	ErrCodeNotInitialized:       "Printer service is not initialized",
}

// Description returns the user-facing text for the code
func (c ErrorCode) Description() string {
	if description, ok := errorDescriptions[c]; ok {
		return description
	}
	return "Unknown printer error"
}

// PrinterError is the error type that crosses component boundaries
type PrinterError struct {
	Code      ErrorCode
	Message   string
	PrinterID string
	Cause     error
}

// NewError creates a PrinterError
func NewError(code ErrorCode, printerID, message string, cause error) *PrinterError {
	if message == "" {
		message = code.Description()
	}
	return &PrinterError{
		Code:      code,
		Message:   message,
		PrinterID: printerID,
		Cause:     cause,
	}
}

func (e *PrinterError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.PrinterID != "" {
		msg += fmt.Sprintf(" (printer %s)", e.PrinterID)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PrinterError) Unwrap() error {
	return e.Cause
}

// Is matches any PrinterError carrying the same code
func (e *PrinterError) Is(target error) bool {
	t, ok := target.(*PrinterError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons
var (
	ErrConnectionFailed     = &PrinterError{Code: ErrCodeConnectionFailed}
	ErrPrinterOffline       = &PrinterError{Code: ErrCodePrinterOffline}
	ErrOutOfPaper           = &PrinterError{Code: ErrCodeOutOfPaper}
	ErrCoverOpen            = &PrinterError{Code: ErrCodeCoverOpen}
	ErrCommandError         = &PrinterError{Code: ErrCodeCommandError}
	ErrTimeout              = &PrinterError{Code: ErrCodeTimeout}
	ErrInvalidConfig        = &PrinterError{Code: ErrCodeInvalidConfig}
	ErrPrinterNotFound      = &PrinterError{Code: ErrCodePrinterNotFound}
	ErrUnsupportedOperation = &PrinterError{Code: ErrCodeUnsupportedOperation}
	ErrNotInitialized       = &PrinterError{Code: ErrCodeNotInitialized}
)

// ErrorCodeOf returns the code of the first PrinterError in the chain, or "" if none
func ErrorCodeOf(err error) ErrorCode {
	var printerErr *PrinterError
	if errors.As(err, &printerErr) {
		return printerErr.Code
	}
	return ""
}

// WrapError converts err into a PrinterError. An existing PrinterError keeps
// its code; context deadlines become TIMEOUT; anything else gets fallback.
func WrapError(err error, fallback ErrorCode, printerID, message string) error {
	if err == nil {
		return nil
	}

	var printerErr *PrinterError
	if errors.As(err, &printerErr) {
		if printerErr.PrinterID == "" && printerID != "" {
			tagged := *printerErr
			tagged.PrinterID = printerID
			return &tagged
		}
		return err
	}

	code := fallback
	if errors.Is(err, context.DeadlineExceeded) {
		code = ErrCodeTimeout
	}
	return NewError(code, printerID, message, err)
}
