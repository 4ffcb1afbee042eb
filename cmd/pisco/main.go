package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/rescp17/pisco/internal/util"
	"github.com/rescp17/pisco/pkg/beacon"
	"github.com/rescp17/pisco/pkg/content"
	"github.com/rescp17/pisco/pkg/discovery"
	"github.com/rescp17/pisco/pkg/scan"
	"github.com/rescp17/pisco/pkg/scanner"
	"github.com/rescp17/pisco/pkg/ui"
)

func main() {
	var (
		logFile string
		verbose bool
		logOut  io.Closer
		cfg     = scanner.DefaultConfig()
	)

	cmd := &cobra.Command{
		Use:   "pisco",
		Short: "Find the plug-in advertised on the local network and connect to it",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			closer, err := setupLogging(logFile, verbose)
			if err != nil {
				return err
			}
			logOut = closer
			return cfg.Validate()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logOut == nil {
				return
			}
			if err := logOut.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			app := scanner.NewApp(discovery.NewMDNSAdapter(), cfg)
			p := tea.NewProgram(ui.InitialModel(app), tea.WithAltScreen(), tea.WithReportFocus())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("alas, there's been an error: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logFile, "log-file", "debug.log", `Log file, "-" for stderr`)
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().DurationVar(&cfg.LoadTimeout, "load-timeout", cfg.LoadTimeout, "Timeout for loading the plug-in page")
	cmd.PersistentFlags().Int64Var(&cfg.MaxPageBytes, "max-page-bytes", cfg.MaxPageBytes, "Maximum number of page bytes to read")

	cmd.AddCommand(newFindCmd(cfg))
	cmd.AddCommand(newAnnounceCmd())

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

func setupLogging(path string, verbose bool) (io.Closer, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if path == "-" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
		return nil, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, opts)))
	return f, nil
}

func newFindCmd(cfg *scanner.Config) *cobra.Command {
	var fetch bool

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Print the first plug-in endpoint found and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			found := make(chan discovery.Endpoint, 1)
			coordinator := scan.New(discovery.NewMDNSAdapter(), discovery.SinkFunc(func(e discovery.Endpoint) {
				found <- e
			}))
			if err := coordinator.Start(ctx); err != nil {
				return err
			}
			defer coordinator.Stop()

			var endpoint discovery.Endpoint
			select {
			case endpoint = <-found:
			case <-ctx.Done():
				return ctx.Err()
			}
			fmt.Fprintln(cmd.OutOrStdout(), endpoint.URL())

			if !fetch {
				return nil
			}
			page, err := content.NewLoader(cfg.LoadTimeout, cfg.MaxPageBytes).Load(ctx, endpoint)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", util.PadRight("Title", 8), page.Title)
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", util.PadRight("Type", 8), page.MIMEType)
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", util.PadRight("Size", 8), util.FormatSize(page.Size))
			return nil
		},
	}

	cmd.Flags().BoolVar(&fetch, "fetch", false, "Also load the plug-in page and print a summary")
	return cmd
}

func newAnnounceCmd() *cobra.Command {
	cfg := beacon.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "announce",
		Short: "Announce a stand-in plug-in and serve its page",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Announcing %s on port %d, press ctrl+c to stop\n", cfg.Name, cfg.Port)
			return beacon.NewApp(cfg, discovery.NewMDNSAdapter()).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&cfg.Name, "name", cfg.Name, "Service instance name")
	cmd.Flags().IntVar(&cfg.Port, "port", cfg.Port, "Port to serve the page on")
	cmd.Flags().StringVar(&cfg.URI, "uri", cfg.URI, "Value of the dpfuri TXT record")
	cmd.Flags().StringVar(&cfg.InstanceID, "instance-id", cfg.InstanceID, "Value of the instanceid TXT record")
	return cmd
}
