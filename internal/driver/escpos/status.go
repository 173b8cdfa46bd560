package escpos

import (
	"fmt"

	"printer-service/internal/model"
)

// Bits of the DLE EOT responses
const (
	statusFixedMask  = 0x93
	statusFixedValue = 0x12

	offlineCoverOpen = 0x04
	offlinePaperStop = 0x20
	offlineError     = 0x40

	errorCutter          = 0x08
	errorUnrecoverable   = 0x20
	errorAutoRecoverable = 0x40

	paperNearEnd = 0x0C
	paperEnd     = 0x60
)

// HardwareStatus is the decoded answer to the real-time status queries
type HardwareStatus struct {
	CoverOpen       bool
	PaperEnd        bool
	PaperNearEnd    bool
	ErrorOccurred   bool
	CutterError     bool
	Unrecoverable   bool
	AutoRecoverable bool
}

// ValidStatusByte reports whether b has the fixed bits of a DLE EOT response
func ValidStatusByte(b byte) bool {
	return b&statusFixedMask == statusFixedValue
}

// ParseStatus decodes the responses to DLE EOT 2, 3 and 4
func ParseStatus(offline, errorCause, paper byte) (HardwareStatus, error) {
	for _, b := range []byte{offline, errorCause, paper} {
		if !ValidStatusByte(b) {
			return HardwareStatus{}, fmt.Errorf("invalid status response 0x%02X", b)
		}
	}

	return HardwareStatus{
		CoverOpen:       offline&offlineCoverOpen != 0,
		PaperEnd:        offline&offlinePaperStop != 0 || paper&paperEnd != 0,
		PaperNearEnd:    paper&paperNearEnd != 0,
		ErrorOccurred:   offline&offlineError != 0,
		CutterError:     errorCause&errorCutter != 0,
		Unrecoverable:   errorCause&errorUnrecoverable != 0,
		AutoRecoverable: errorCause&errorAutoRecoverable != 0,
	}, nil
}

// Status maps the hardware signals to a driver status and, for Error, the fault code.
// Cover and paper sensors take precedence because firmware also raises the
// error bits while the cover is open.
func (h HardwareStatus) Status() (model.PrinterStatus, model.ErrorCode) {
	switch {
	case h.CoverOpen:
		return model.PrinterStatusCoverOpen, model.ErrCodeCoverOpen
	case h.PaperEnd:
		return model.PrinterStatusOutOfPaper, model.ErrCodeOutOfPaper
	case h.CutterError:
		return model.PrinterStatusError, model.ErrCodePaperJam
	case h.Unrecoverable:
		return model.PrinterStatusError, model.ErrCodeCommandError
	case h.AutoRecoverable:
		return model.PrinterStatusError, model.ErrCodeOverheat
	default:
		return model.PrinterStatusIdle, ""
	}
}
