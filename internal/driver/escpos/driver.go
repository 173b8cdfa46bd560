// internal/driver/escpos/driver.go
package escpos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"printer-service/internal/model"
	"printer-service/internal/protocol"
	"printer-service/internal/utils"
	"printer-service/pkg/driver"
)

const (
	defaultRetryDelay        = 200 * time.Millisecond
	defaultStatusReadTimeout = 500 * time.Millisecond
	defaultJobHistory        = 32
)

// ProtocolOpener creates an unopened transport for a printer configuration
type ProtocolOpener func(cfg model.PrinterConfig) (protocol.DeviceProtocol, error)

type options struct {
	opener            ProtocolOpener
	retryDelay        time.Duration
	statusReadTimeout time.Duration
	jobHistory        int
}

// Option customizes a Driver
type Option func(*options)

// WithProtocolFactory sets how the driver creates its transport
func WithProtocolFactory(opener ProtocolOpener) Option {
	return func(o *options) {
		o.opener = opener
	}
}

// WithRetryDelay sets the base delay between connection attempts and write retries
func WithRetryDelay(delay time.Duration) Option {
	return func(o *options) {
		o.retryDelay = delay
	}
}

// WithStatusReadTimeout bounds the wait for each real-time status answer
func WithStatusReadTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.statusReadTimeout = timeout
	}
}

// WithJobHistory sets how many recent jobs GetJob can return
func WithJobHistory(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.jobHistory = size
		}
	}
}

// Driver implements driver.PrinterDriver for ESC/POS printers
type Driver struct {
	config   model.PrinterConfig
	profile  Profile
	renderer *Renderer
	options  options
	logger   *utils.DeviceLogger
	tracker  *driver.StatusTracker

	mutex          sync.Mutex // guards transport and the fields below
	transport      protocol.DeviceProtocol
	connectionLost bool
	fault          model.ErrorCode
	disposed       bool

	connected atomic.Bool
	busy      atomic.Bool

	jobsMutex sync.RWMutex
	jobs      []*model.PrintJob
}

var _ driver.PrinterDriver = (*Driver)(nil)

// New creates an unconnected driver for the configuration
func New(cfg model.PrinterConfig, logger *zap.Logger, opts ...Option) (*Driver, error) {
	profile, ok := ProfileFor(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("no ESC/POS profile for printer type %q", cfg.Type)
	}
	renderer, err := NewRenderer(cfg, profile)
	if err != nil {
		return nil, err
	}

	o := options{
		retryDelay:        defaultRetryDelay,
		statusReadTimeout: defaultStatusReadTimeout,
		jobHistory:        defaultJobHistory,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.opener == nil {
		o.opener = protocol.NewFactory(protocol.DefaultSettings(), logger).CreateProtocol
	}

	return &Driver{
		config:   cfg,
		profile:  profile,
		renderer: renderer,
		options:  o,
		logger:   utils.NewDeviceLogger(logger, cfg.ID, string(cfg.Type), string(cfg.ConnectionType)),
		tracker:  driver.NewStatusTracker(cfg.ID),
	}, nil
}

// ID returns the printer identifier
func (d *Driver) ID() string {
	return d.config.ID
}

// Config returns a copy of the driver configuration
func (d *Driver) Config() model.PrinterConfig {
	return d.config
}

// Profile returns the vendor capability profile
func (d *Driver) Profile() Profile {
	return d.profile
}

// Info returns a read-only snapshot of the printer
func (d *Driver) Info() model.PrinterInfo {
	return model.PrinterInfo{
		ID:               d.config.ID,
		Name:             d.config.Name,
		Type:             d.config.Type,
		ConnectionType:   d.config.ConnectionType,
		ConnectionString: d.config.ConnectionString,
		PaperSize:        d.config.PaperSize,
		Status:           d.tracker.Status(),
		Connected:        d.IsConnected(),
		IsDefault:        d.config.IsDefault,
	}
}

// Connect opens the transport. It is a no-op when already connected.
func (d *Driver) Connect(ctx context.Context) error {
	d.mutex.Lock()
	if d.disposed {
		d.mutex.Unlock()
		return model.NewError(model.ErrCodeCommandError, d.config.ID, "driver disposed", nil)
	}
	if d.transport != nil && d.connected.Load() {
		d.mutex.Unlock()
		return nil
	}

	transport, err := d.openTransport(ctx)
	if err != nil {
		d.mutex.Unlock()
		wrapped := model.WrapError(err, model.ErrCodeConnectionFailed, d.config.ID, "")
		d.tracker.Emit(model.EventError, "", wrapped)
		return wrapped
	}

	d.transport = transport
	d.connected.Store(true)
	d.fault = ""
	restored := d.connectionLost
	d.connectionLost = false
	d.mutex.Unlock()

	d.tracker.SetStatus(model.PrinterStatusIdle)
	if restored {
		d.tracker.Emit(model.EventConnectionRestored, "", nil)
	}
	return nil
}

// openTransport creates and opens the transport, retrying with a linear backoff. Caller holds mutex.
func (d *Driver) openTransport(ctx context.Context) (protocol.DeviceProtocol, error) {
	transport, err := d.options.opener(d.config)
	if err != nil {
		return nil, model.NewError(model.ErrCodeConnectionFailed, d.config.ID, "failed to create transport", err)
	}

	attempts := d.config.RetryCount + 1
	for attempt := 1; ; attempt++ {
		openCtx, cancel := d.operationContext(ctx)
		err = transport.Open(openCtx)
		cancel()

		d.logger.LogConnection("open", attempt, err)
		if err == nil {
			return transport, nil
		}
		if attempt >= attempts {
			return nil, model.NewError(model.ErrCodeConnectionFailed, d.config.ID, "",
				fmt.Errorf("failed to open %s transport after %d attempts: %w", d.config.ConnectionType, attempt, err))
		}

		select {
		case <-ctx.Done():
			return nil, model.NewError(model.ErrCodeConnectionFailed, d.config.ID, "", ctx.Err())
		case <-time.After(d.options.retryDelay * time.Duration(attempt)):
		}
	}
}

// Disconnect closes the transport and moves to Offline. It is a no-op when offline.
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mutex.Lock()
	if d.transport == nil && d.tracker.Status() == model.PrinterStatusOffline {
		d.mutex.Unlock()
		return nil
	}

	var closeErr error
	if d.transport != nil {
		closeErr = d.transport.Close()
		d.transport = nil
	}
	d.connected.Store(false)
	d.fault = ""
	d.mutex.Unlock()

	d.tracker.SetStatus(model.PrinterStatusOffline)
	d.logger.LogConnection("close", 1, closeErr)
	if closeErr != nil {
		return model.NewError(model.ErrCodeConnectionFailed, d.config.ID, "failed to close transport", closeErr)
	}
	return nil
}

// IsConnected reports whether the transport is open. It does not wait for a write in progress.
func (d *Driver) IsConnected() bool {
	return d.connected.Load()
}

// GetStatus returns the current status
func (d *Driver) GetStatus() model.PrinterStatus {
	return d.tracker.Status()
}

// Fault returns the error code behind the Error status, if known
func (d *Driver) Fault() model.ErrorCode {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.fault
}

// RefreshStatus queries the paper, cover and error sensors. Printers that do
// not answer keep their current status.
func (d *Driver) RefreshStatus(ctx context.Context) (model.PrinterStatus, error) {
	if !d.profile.StatusQueries {
		return d.tracker.Status(), nil
	}

	d.mutex.Lock()
	if d.transport == nil || !d.transport.IsOpen() {
		d.mutex.Unlock()
		return d.tracker.Status(), nil
	}
	hardware, err := d.queryHardware(ctx)
	if err == nil {
		if next, fault := hardware.Status(); next == model.PrinterStatusError {
			d.fault = fault
		}
	}
	d.mutex.Unlock()

	if err != nil {
		d.logger.Debug("Real-time status unavailable", zap.Error(err))
		return d.tracker.Status(), nil
	}
	if hardware.PaperNearEnd {
		d.logger.Warn("Paper near end")
	}

	next, _ := hardware.Status()
	current := d.tracker.Status()
	switch {
	case current == model.PrinterStatusOffline, current == model.PrinterStatusError:
		// Error stays latched until Disconnect and Connect
	case next == model.PrinterStatusIdle:
		if current.IsHardwareFault() {
			d.tracker.SetStatus(model.PrinterStatusIdle)
		}
	default:
		d.tracker.SetStatus(next)
	}
	return d.tracker.Status(), nil
}

// queryHardware sends DLE EOT 2, 3 and 4 and decodes the answers. Caller holds mutex.
func (d *Driver) queryHardware(ctx context.Context) (HardwareStatus, error) {
	queries := [][]byte{Commands.StatusOffline, Commands.StatusError, Commands.StatusPaper}
	answers := make([]byte, 0, len(queries))

	for _, query := range queries {
		if err := d.transport.Write(ctx, query); err != nil {
			return HardwareStatus{}, fmt.Errorf("failed to send status query: %w", err)
		}

		readCtx, cancel := context.WithTimeout(ctx, d.options.statusReadTimeout)
		response, err := d.transport.Read(readCtx, 4)
		cancel()
		if err != nil {
			return HardwareStatus{}, fmt.Errorf("failed to read status response: %w", err)
		}
		if len(response) == 0 {
			return HardwareStatus{}, errors.New("empty status response")
		}
		answers = append(answers, response[len(response)-1])
	}
	return ParseStatus(answers[0], answers[1], answers[2])
}

// Print renders content and writes it as one job
func (d *Driver) Print(ctx context.Context, content []model.Content, jobConfig model.JobConfig) (string, error) {
	if !d.IsConnected() {
		return "", model.NewError(model.ErrCodePrinterOffline, d.config.ID, "", nil)
	}
	if !d.busy.CompareAndSwap(false, true) {
		return "", model.NewError(model.ErrCodeCommandError, d.config.ID, "print already in progress", nil)
	}
	defer d.busy.Store(false)

	if _, err := d.RefreshStatus(ctx); err != nil {
		return "", err
	}
	if err := d.checkReady(); err != nil {
		return "", err
	}

	job := model.NewPrintJob(d.config.ID, content, jobConfig)
	d.recordJob(job)
	d.updateJob(job.ID, (*model.PrintJob).Start)

	d.tracker.SetStatus(model.PrinterStatusPrinting)
	d.tracker.Emit(model.EventJobStarted, job.ID, nil)

	startTime := time.Now()
	payload, err := d.renderer.RenderJob(content, jobConfig)
	if err != nil {
		err = model.NewError(model.ErrCodeCommandError, d.config.ID, "failed to render content", err)
		d.failJob(job.ID, err, false)
		return job.ID, err
	}

	lost, err := d.sendWithRetry(ctx, job.ID, payload)
	d.logger.LogJob(job.ID, len(payload), time.Since(startTime), err)
	if err != nil {
		err = model.WrapError(err, model.ErrCodeCommandError, d.config.ID, "failed to print")
		d.failJob(job.ID, err, lost)
		return job.ID, err
	}

	d.updateJob(job.ID, (*model.PrintJob).Complete)
	d.tracker.SetStatus(model.PrinterStatusIdle)
	d.tracker.Emit(model.EventJobCompleted, job.ID, nil)
	return job.ID, nil
}

// checkReady rejects work while a fault is latched
func (d *Driver) checkReady() error {
	switch d.tracker.Status() {
	case model.PrinterStatusError:
		message := "printer is in error state"
		if fault := d.Fault(); fault != "" {
			message = fmt.Sprintf("printer is in error state (%s)", fault)
		}
		return model.NewError(model.ErrCodeCommandError, d.config.ID, message, nil)
	case model.PrinterStatusOutOfPaper:
		return model.NewError(model.ErrCodeOutOfPaper, d.config.ID, "", nil)
	case model.PrinterStatusCoverOpen:
		return model.NewError(model.ErrCodeCoverOpen, d.config.ID, "", nil)
	}
	return nil
}

// sendWithRetry writes payload, retrying when the job asks for it
func (d *Driver) sendWithRetry(ctx context.Context, jobID string, payload []byte) (bool, error) {
	job, _ := d.GetJob(jobID)
	attempts := 1
	if job.Config.RetryOnError {
		attempts += d.config.RetryCount
	}

	var lost bool
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return lost, ctx.Err()
			case <-time.After(d.options.retryDelay):
			}
			d.updateJob(jobID, (*model.PrintJob).Start)
			d.logger.Info("Retrying print job", zap.String("job_id", jobID), zap.Int("attempt", attempt))
		}

		lost, err = d.send(ctx, payload)
		if err == nil || lost {
			return lost, err
		}
	}
	return lost, err
}

// failJob latches Error and emits the failure events
func (d *Driver) failJob(jobID string, err error, lost bool) {
	d.updateJob(jobID, func(job *model.PrintJob) { job.Fail(err) })
	d.mutex.Lock()
	if d.fault == "" {
		d.fault = model.ErrorCodeOf(err)
	}
	d.mutex.Unlock()

	d.tracker.SetStatus(model.PrinterStatusError)
	d.tracker.Emit(model.EventJobFailed, jobID, err)
	if lost {
		d.tracker.Emit(model.EventConnectionLost, "", err)
	}
}

// send writes one payload. It reports whether the transport closed underneath.
func (d *Driver) send(ctx context.Context, payload []byte) (bool, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.transport == nil || !d.transport.IsOpen() {
		return false, model.NewError(model.ErrCodePrinterOffline, d.config.ID, "", nil)
	}

	writeCtx, cancel := d.operationContext(ctx)
	defer cancel()

	if err := d.transport.Write(writeCtx, payload); err != nil {
		if !d.transport.IsOpen() {
			d.transport = nil
			d.connected.Store(false)
			d.connectionLost = true
			return true, err
		}
		return false, err
	}
	return false, nil
}

// operationContext bounds one transport operation by the configured timeout
func (d *Driver) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.Timeout > 0 {
		return context.WithTimeout(ctx, d.config.TimeoutDuration())
	}
	return context.WithCancel(ctx)
}

// execute runs an immediate command outside of a print job
func (d *Driver) execute(ctx context.Context, operation string, payload []byte) error {
	if !d.IsConnected() {
		return model.NewError(model.ErrCodePrinterOffline, d.config.ID, "", nil)
	}
	if !d.busy.CompareAndSwap(false, true) {
		return model.NewError(model.ErrCodeCommandError, d.config.ID, "print already in progress", nil)
	}
	defer d.busy.Store(false)

	lost, err := d.send(ctx, payload)
	if err != nil {
		wrapped := model.WrapError(err, model.ErrCodeCommandError, d.config.ID, "failed to "+operation)
		if lost {
			d.tracker.SetStatus(model.PrinterStatusError)
			d.tracker.Emit(model.EventConnectionLost, "", wrapped)
		}
		return wrapped
	}
	d.logger.Debug("Command executed", zap.String("operation", operation), zap.Int("bytes", len(payload)))
	return nil
}

// CutPaper feeds past the cutter and cuts
func (d *Driver) CutPaper(ctx context.Context, partial bool) error {
	return d.execute(ctx, "cut paper", cutCommand(partial))
}

// OpenCashDrawer pulses drawer pin 2
func (d *Driver) OpenCashDrawer(ctx context.Context) error {
	return d.execute(ctx, "open cash drawer", Commands.DrawerKickPin2)
}

// FeedPaper advances the paper by lines
func (d *Driver) FeedPaper(ctx context.Context, lines int) error {
	payload, err := renderFeed(model.Feed{Lines: lines})
	if err != nil {
		return model.NewError(model.ErrCodeCommandError, d.config.ID, "invalid feed", err)
	}
	return d.execute(ctx, "feed paper", payload)
}

// SelfTest prints the test page and reports whether it went through
func (d *Driver) SelfTest(ctx context.Context) (bool, error) {
	page := TestPage(d.config, d.renderer.Encoding(), time.Now())
	if _, err := d.Print(ctx, page, model.JobConfig{}); err != nil {
		return false, err
	}
	return true, nil
}

// GetJob returns a copy of a recent job
func (d *Driver) GetJob(jobID string) (model.PrintJob, bool) {
	d.jobsMutex.RLock()
	defer d.jobsMutex.RUnlock()

	for _, job := range d.jobs {
		if job.ID == jobID {
			return *job, true
		}
	}
	return model.PrintJob{}, false
}

func (d *Driver) recordJob(job *model.PrintJob) {
	d.jobsMutex.Lock()
	defer d.jobsMutex.Unlock()

	d.jobs = append(d.jobs, job)
	if overflow := len(d.jobs) - d.options.jobHistory; overflow > 0 {
		d.jobs = append([]*model.PrintJob(nil), d.jobs[overflow:]...)
	}
}

func (d *Driver) updateJob(jobID string, update func(*model.PrintJob)) {
	d.jobsMutex.Lock()
	defer d.jobsMutex.Unlock()

	for _, job := range d.jobs {
		if job.ID == jobID {
			update(job)
			return
		}
	}
}

// Subscribe registers a handler for this printer's events
func (d *Driver) Subscribe(handler driver.EventHandler) driver.SubscriptionID {
	return d.tracker.Subscribe(handler)
}

// Unsubscribe removes a handler
func (d *Driver) Unsubscribe(id driver.SubscriptionID) {
	d.tracker.Unsubscribe(id)
}

// Dispose disconnects and drops every subscriber. The driver cannot be reused.
func (d *Driver) Dispose(ctx context.Context) error {
	d.mutex.Lock()
	if d.disposed {
		d.mutex.Unlock()
		return nil
	}
	d.disposed = true
	d.mutex.Unlock()

	err := d.Disconnect(ctx)
	d.tracker.Close()
	return err
}
