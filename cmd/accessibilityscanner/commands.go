package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"AccessibilityScanner/internal/app"
	"AccessibilityScanner/internal/config"
	"AccessibilityScanner/internal/logging"
	"AccessibilityScanner/internal/report"
	"AccessibilityScanner/internal/usecase"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "accessibilityscanner",
		Short:        "Audit web pages against KWCAG 2.2 and relay findings to a review board",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (defaults to $ACCESSIBILITY_SCANNER_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (error, warn, info, debug)")

	root.AddCommand(
		newScanCommand(opts),
		newServeCommand(opts),
		newWatchCommand(opts),
		newReportCommand(opts),
	)
	return root
}

func (o *rootOptions) load() (config.Config, *slog.Logger) {
	var cfg config.Config
	if o.configPath != "" {
		cfg = config.LoadFile(o.configPath)
	} else {
		cfg = config.Load()
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, logging.New(cfg.Logging.Level)
}

func newScanCommand(opts *rootOptions) *cobra.Command {
	var (
		format string
		engine bool
	)
	cmd := &cobra.Command{
		Use:   "scan <url-or-file>",
		Short: "Audit one page and print the findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "markdown" && format != "json" {
				return fmt.Errorf("unknown format %q", format)
			}
			cfg, logger := opts.load()
			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			if engine {
				return application.Engine(cmd.Context(), args[0])
			}

			result, err := application.Scan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(result.Failed) > 0 {
				logger.Warn("some checkers did not complete", "guidelines", result.Failed)
			}
			return writeResult(cmd.OutOrStdout(), format, result)
		},
	}
	cmd.Flags().StringVar(&format, "format", "markdown", "output format: markdown or json")
	cmd.Flags().BoolVar(&engine, "engine", false, "stream to the relay and keep serving locate and view commands")
	return cmd
}

func writeResult(w io.Writer, format string, result usecase.AuditResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	_, err := io.WriteString(w, report.Markdown(result.Findings, result.Page.Timestamp)+"\n")
	return err
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket relay and the review API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := opts.load()
			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return application.Serve(ctx) })
			if watch {
				g.Go(func() error { return application.Watch(ctx) })
			}
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "also re-audit scheduler.targets on scheduler.interval")
	return cmd
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch [url...]",
		Short: "Re-audit targets periodically and send Telegram digests",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := opts.load()
			if len(args) > 0 {
				cfg.Scheduler.Targets = args
			}
			if interval > 0 {
				cfg.Scheduler.Interval = interval
			}
			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()
			return application.Watch(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "override scheduler.interval")
	return cmd
}

func newReportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "report [scan-id]",
		Short: "Print the Markdown report of a stored session, or list sessions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := opts.load()
			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			if len(args) == 0 {
				sessions, err := application.Store().Sessions(cmd.Context())
				if err != nil {
					return err
				}
				for _, s := range sessions {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%d\n", s.ScanID, s.Timestamp.Format(time.RFC3339), s.URL, s.Findings)
				}
				return nil
			}

			scanID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid scan id %q: %w", args[0], err)
			}
			return application.Report(cmd.Context(), scanID, cmd.OutOrStdout())
		},
	}
}
