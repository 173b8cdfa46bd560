// pkg/driver/interfaces.go
package driver

import (
	"context"

	"printer-service/internal/model"
)

// PrinterDriver is the capability set every printer driver implements
type PrinterDriver interface {
	// Identity
	ID() string
	Config() model.PrinterConfig
	Info() model.PrinterInfo

	// Connection management
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	// Status
	GetStatus() model.PrinterStatus
	RefreshStatus(ctx context.Context) (model.PrinterStatus, error)

	// Printing operations
	Print(ctx context.Context, content []model.Content, job model.JobConfig) (string, error)
	CutPaper(ctx context.Context, partial bool) error
	OpenCashDrawer(ctx context.Context) error
	FeedPaper(ctx context.Context, lines int) error
	SelfTest(ctx context.Context) (bool, error)
	GetJob(jobID string) (model.PrintJob, bool)

	// Event handling
	Subscribe(handler EventHandler) SubscriptionID
	Unsubscribe(id SubscriptionID)

	// Cleanup
	Dispose(ctx context.Context) error
}
