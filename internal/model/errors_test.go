package model

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinterError_Is(t *testing.T) {
	err := NewError(ErrCodePrinterOffline, "p1", "", nil)

	assert.True(t, errors.Is(err, ErrPrinterOffline))
	assert.False(t, errors.Is(err, ErrPrinterNotFound))

	wrapped := fmt.Errorf("failed to print: %w", err)
	assert.True(t, errors.Is(wrapped, ErrPrinterOffline))
	assert.Equal(t, ErrCodePrinterOffline, ErrorCodeOf(wrapped))
}

func TestPrinterError_Message(t *testing.T) {
	err := NewError(ErrCodeConnectionFailed, "p1", "failed to open transport", errors.New("no such device"))
	assert.Equal(t, "[CONNECTION_FAILED] failed to open transport (printer p1): no such device", err.Error())

	plain := NewError(ErrCodeTimeout, "", "", nil)
	assert.Equal(t, "[TIMEOUT] Operation timed out", plain.Error())
}

func TestWrapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{"plain error gets fallback", errors.New("io"), ErrCodeCommandError},
		{"deadline becomes timeout", fmt.Errorf("write: %w", context.DeadlineExceeded), ErrCodeTimeout},
		{"printer error keeps code", NewError(ErrCodeOutOfPaper, "", "", nil), ErrCodeOutOfPaper},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := WrapError(tt.err, ErrCodeCommandError, "p9", "print failed")
			require.Error(t, wrapped)
			assert.Equal(t, tt.expected, ErrorCodeOf(wrapped))

			var printerErr *PrinterError
			require.True(t, errors.As(wrapped, &printerErr))
			assert.Equal(t, "p9", printerErr.PrinterID)
		})
	}

	assert.NoError(t, WrapError(nil, ErrCodeCommandError, "", ""))
}

func TestErrorCode_Description(t *testing.T) {
	assert.Equal(t, "Printer is out of paper", ErrCodeOutOfPaper.Description())
	assert.Equal(t, "Unknown printer error", ErrorCode("NOPE").Description())
}
