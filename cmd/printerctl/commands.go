package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	internalDriver "printer-service/internal/driver"
	"printer-service/internal/model"
	"printer-service/internal/service"
)

// cli carries the flags shared by every command
type cli struct {
	configPath string
}

// action is the body of a command. A non-nil result is written as JSON.
type action func(ctx context.Context, cmd *cobra.Command, svc *service.PrinterService, args []string) (any, error)

// run builds the application around fn and always shuts it down
func (c *cli) run(fn action) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		app, err := NewApplication(ctx, c.configPath)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := app.Close(context.WithoutCancel(ctx)); err == nil {
				err = closeErr
			}
		}()

		result, err := fn(ctx, cmd, app.service, args)
		if err != nil || result == nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), result)
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// printerArg returns the optional printer id argument, empty meaning the default printer
func printerArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func newRootCommand() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "printerctl",
		Short:         "Manage ESC/POS receipt printers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default ./config.yaml)")

	root.AddCommand(
		c.listCommand(),
		c.addCommand(),
		c.removeCommand(),
		c.defaultCommand(),
		c.updateCommand(),
		c.statusCommand(),
		c.testCommand(),
		c.helloCommand(),
		c.printCommand(),
		c.discoverCommand(),
		c.autoConfigureCommand(),
		c.exportCommand(),
		c.importCommand(),
	)
	return root
}

func (c *cli) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured printers",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, svc *service.PrinterService, args []string) (any, error) {
			return svc.ListPrinters()
		}),
	}
}

// configFlags hold the printer configuration fields settable from the command line
type configFlags struct {
	name             string
	printerType      string
	connectionType   string
	connectionString string
	paperSize        string
	encoding         string
	timeout          int
	retryCount       int
	isDefault        bool
}

func (f *configFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.name, "name", "", "display name")
	flags.StringVar(&f.printerType, "type", string(model.PrinterTypeGenericESCPOS), "printer type (cbx-pos-89e, epson-tm, generic-escpos)")
	flags.StringVar(&f.connectionType, "connection-type", string(model.ConnectionTypeUSB), "usb, serial, network or bluetooth")
	flags.StringVar(&f.connectionString, "connection", "", "connection string (vid:pid, device path, queue, port@baud, host:port)")
	flags.StringVar(&f.paperSize, "paper", "", "paper size (58mm, 80mm, 112mm)")
	flags.StringVar(&f.encoding, "encoding", "", "character encoding")
	flags.IntVar(&f.timeout, "timeout", 0, "operation timeout in milliseconds")
	flags.IntVar(&f.retryCount, "retry", 0, "connection retry count")
	flags.BoolVar(&f.isDefault, "default", false, "make this the default printer")
}

// options turns the changed flags into template overrides
func (f *configFlags) options(flags *pflag.FlagSet) []internalDriver.ConfigOption {
	opts := []internalDriver.ConfigOption{
		internalDriver.WithConnectionType(model.ConnectionType(f.connectionType)),
	}
	if flags.Changed("paper") {
		opts = append(opts, internalDriver.WithPaperSize(model.PaperSize(f.paperSize)))
	}
	if flags.Changed("encoding") {
		opts = append(opts, internalDriver.WithEncoding(f.encoding))
	}
	if flags.Changed("timeout") {
		opts = append(opts, internalDriver.WithTimeout(f.timeout))
	}
	if flags.Changed("retry") {
		opts = append(opts, internalDriver.WithRetryCount(f.retryCount))
	}
	if flags.Changed("default") {
		opts = append(opts, internalDriver.WithDefault(f.isDefault))
	}
	return opts
}

// update turns the changed flags into a partial configuration update
func (f *configFlags) update(flags *pflag.FlagSet) model.PrinterConfigUpdate {
	var update model.PrinterConfigUpdate
	if flags.Changed("name") {
		update.Name = &f.name
	}
	if flags.Changed("type") {
		printerType := model.PrinterType(f.printerType)
		update.Type = &printerType
	}
	if flags.Changed("connection-type") {
		connectionType := model.ConnectionType(f.connectionType)
		update.ConnectionType = &connectionType
	}
	if flags.Changed("connection") {
		update.ConnectionString = &f.connectionString
	}
	if flags.Changed("paper") {
		paperSize := model.PaperSize(f.paperSize)
		update.PaperSize = &paperSize
	}
	if flags.Changed("encoding") {
		update.Encoding = &f.encoding
	}
	if flags.Changed("timeout") {
		update.Timeout = &f.timeout
	}
	if flags.Changed("retry") {
		update.RetryCount = &f.retryCount
	}
	if flags.Changed("default") {
		update.IsDefault = &f.isDefault
	}
	return update
}

func (c *cli) addCommand() *cobra.Command {
	var (
		id    string
		flags configFlags
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a printer from its type template",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, svc *service.PrinterService, args []string) (any, error) {
			opts := flags.options(cmd.Flags())
			if id != "" {
				opts = append(opts, internalDriver.WithID(id))
			}
			printerType := model.PrinterType(flags.printerType)
			cfg := internalDriver.TemplateFor(printerType)(flags.name, flags.connectionString, opts...)
			// unknown types must fail validation instead of becoming generic
			cfg.Type = printerType
			return svc.AddPrinter(ctx, cfg)
		}),
	}
	cmd.Flags().StringVar(&id, "id", "", "printer id (generated when empty)")
	flags.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("connection")
	return cmd
}

func (c *cli) removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <printer-id>",
		Short: "Remove a printer",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, svc *service.PrinterService, args []string) (any, error) {
			return nil, svc.RemovePrinter(ctx, args[0])
		}),
	}
}

func (c *cli) defaultCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "default <printer-id>",
		Short: "Set the default printer",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, svc *service.PrinterService, args []string) (any, error) {
			if err := svc.SetDefaultPrinter(ctx, args[0]); err != nil {
				return nil, err
			}
			return svc.GetPrinterInfo(args[0])
		}),
	}
}

func (c *cli) updateCommand() *cobra.Command {
	var flags configFlags
	cmd := &cobra.Command{
		Use:   "update <printer-id>",
		Short: "Update fields of a printer configuration",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, svc *service.PrinterService, args []string) (any, error) {
			return svc.UpdatePrinter(ctx, args[0], flags.update(cmd.Flags()))
		}),
	}
	flags.register(cmd.Flags())
	return cmd
}

func (c *cli) statusCommand() *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "status [printer-id]",
		Short: "Connect a printer and query its hardware status",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, svc *service.PrinterService, args []string) (any, error) {
			printerID := printerArg(args)
			if !offline {
				if _, err := svc.ConnectPrinter(ctx, printerID); err != nil {
					return nil, err
				}
			}
			if _, err := svc.RefreshStatus(ctx, printerID); err != nil {
				return nil, err
			}
			return svc.GetPrinterInfo(printerID)
		}),
	}
	cmd.Flags().BoolVar(&offline, "no-connect", false, "report the status without opening the transport")
	return cmd
}

func (c *cli) testCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test [printer-id]",
		Short: "Print the self-test page",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, svc *service.PrinterService, args []string) (any, error) {
			passed, err := svc.TestPrinter(ctx, printerArg(args))
			if err != nil {
				return nil, err
			}
			return map[string]bool{"passed": passed}, nil
		}),
	}
}

func (c *cli) helloCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hello [printer-id]",
		Short: "Print the greeting page",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, svc *service.PrinterService, args []string) (any, error) {
			printerID := printerArg(args)
			jobID, err := svc.PrintHello(ctx, printerID)
			if err != nil {
				return nil, err
			}
			return svc.GetJob(printerID, jobID)
		}),
	}
}

// readContent reads a JSON content document from path, stdin for "-"
func readContent(cmd *cobra.Command, path string) ([]model.Content, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	return model.UnmarshalContent(data)
}

func (c *cli) printCommand() *cobra.Command {
	var (
		text        string
		contentFile string
		align       string
		bold        bool
		copies      int
		noCut       bool
		cashDrawer  bool
	)
	cmd := &cobra.Command{
		Use:   "print [printer-id]",
		Short: "Print text or a JSON content document",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, svc *service.PrinterService, args []string) (any, error) {
			job := model.JobConfig{Copies: copies, OpenCashDrawer: cashDrawer}
			if noCut {
				job = job.WithoutAutoCut()
			}
			printerID := printerArg(args)

			var (
				jobID string
				err   error
			)
			switch {
			case contentFile != "":
				content, readErr := readContent(cmd, contentFile)
				if readErr != nil {
					return nil, model.NewError(model.ErrCodeInvalidConfig, printerID, "invalid content document", readErr)
				}
				jobID, err = svc.Print(ctx, printerID, content, job)
			case text != "":
				format := model.TextFormat{Alignment: model.Alignment(align), Style: model.TextStyle{Bold: bold}}
				jobID, err = svc.PrintText(ctx, printerID, text, format, job)
			default:
				return nil, fmt.Errorf("either --text or --content is required")
			}
			if err != nil {
				return nil, err
			}
			return svc.GetJob(printerID, jobID)
		}),
	}
	cmd.Flags().StringVarP(&text, "text", "t", "", "text to print")
	cmd.Flags().StringVar(&contentFile, "content", "", "JSON content document, - for stdin")
	cmd.Flags().StringVar(&align, "align", "", "text alignment (left, center, right)")
	cmd.Flags().BoolVar(&bold, "bold", false, "bold text")
	cmd.Flags().IntVar(&copies, "copies", 1, "number of copies")
	cmd.Flags().BoolVar(&noCut, "no-cut", false, "do not cut the paper after the job")
	cmd.Flags().BoolVar(&cashDrawer, "open-drawer", false, "open the cash drawer after the job")
	cmd.MarkFlagsMutuallyExclusive("text", "content")
	return cmd
}

func (c *cli) discoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Scan for attached and reachable printers",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, svc *service.PrinterService, args []string) (any, error) {
			return svc.Discover(ctx)
		}),
	}
}

func (c *cli) autoConfigureCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "autoconfigure",
		Short: "Add every discovered printer that is not configured yet",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, svc *service.PrinterService, args []string) (any, error) {
			return svc.AutoConfigure(ctx)
		}),
	}
}

func (c *cli) exportCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the printer configuration document",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, svc *service.PrinterService, args []string) (any, error) {
			data, err := svc.ExportConfig(ctx)
			if err != nil {
				return nil, err
			}
			if output == "" || output == "-" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil, err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", output, err)
			}
			return nil, nil
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (c *cli) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the printer configuration with a document, - for stdin",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, svc *service.PrinterService, args []string) (any, error) {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			if err := svc.ImportConfig(ctx, data); err != nil {
				return nil, err
			}
			return svc.ListPrinters()
		}),
	}
}
