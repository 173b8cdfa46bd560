package model

// PrinterStatus represents the current state of a driver
type PrinterStatus string

const (
	PrinterStatusOffline    PrinterStatus = "offline"
	PrinterStatusIdle       PrinterStatus = "idle"
	PrinterStatusPrinting   PrinterStatus = "printing"
	PrinterStatusError      PrinterStatus = "error"
	PrinterStatusOutOfPaper PrinterStatus = "out_of_paper"
	PrinterStatusCoverOpen  PrinterStatus = "cover_open"
)

// IsHardwareFault reports whether the status was raised by a device sensor
func (s PrinterStatus) IsHardwareFault() bool {
	return s == PrinterStatusOutOfPaper || s == PrinterStatusCoverOpen
}

func (s PrinterStatus) String() string {
	return string(s)
}
