package commands

import (
	"fmt"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/zhaobenny/claudelytics/cli/internal/output"
	refresh "github.com/zhaobenny/claudelytics/cli/internal/service"
	"github.com/zhaobenny/claudelytics/internal/apperr"
)

var serviceInterval time.Duration

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the background refresh service",
	Long: `The refresh service re-reads the usage logs on an interval and keeps daily and
monthly snapshots in the local store, which the history command reads.`,
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the refresh service and start it",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newService(nil)
		if err != nil {
			return err
		}
		if err := s.Install(); err != nil {
			return fmt.Errorf("failed to install service: %w", err)
		}
		if err := s.Start(); err != nil {
			return fmt.Errorf("service installed but failed to start: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Service installed and started.")
		fmt.Fprintf(cmd.OutOrStdout(), "Refresh interval: %s\n", serviceInterval)
		return nil
	},
}

var serviceStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the installed service",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newService(nil)
		if err != nil {
			return err
		}
		if err := s.Start(); err != nil {
			return fmt.Errorf("failed to start service: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Service started.")
		return nil
	},
}

var serviceStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the installed service",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newService(nil)
		if err != nil {
			return err
		}
		if err := s.Stop(); err != nil {
			return fmt.Errorf("failed to stop service: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Service stopped.")
		return nil
	},
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop and remove the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newService(nil)
		if err != nil {
			return err
		}
		_ = s.Stop()
		if err := s.Uninstall(); err != nil {
			return fmt.Errorf("failed to uninstall service: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Service uninstalled.")
		return nil
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the service state and the last refresh",
	RunE:  runServiceStatus,
}

var serviceRunCmd = &cobra.Command{
	Use:    "run",
	Short:  "Run the refresh loop in the foreground (used by the installed service)",
	Hidden: true,
	RunE:   runServiceRun,
}

var serviceRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the snapshots once",
	RunE:  runServiceRefresh,
}

func init() {
	rootCmd.AddCommand(serviceCmd)
	serviceCmd.PersistentFlags().DurationVar(&serviceInterval, "interval", refresh.DefaultInterval, "Time between refreshes")
	serviceCmd.AddCommand(serviceInstallCmd, serviceStartCmd, serviceStopCmd, serviceUninstallCmd,
		serviceStatusCmd, serviceRunCmd, serviceRefreshCmd)
}

// newRefresher opens the store and binds it to the current engine options.
// The caller closes the returned store.
func newRefresher() (*refresh.Refresher, error) {
	opts, err := engineOptions(time.Now().UTC())
	if err != nil {
		return nil, err
	}
	db, err := openStore()
	if err != nil {
		return nil, err
	}
	return &refresh.Refresher{Options: opts, DB: db}, nil
}

// newService wraps a program for the platform service manager. Control
// commands pass a nil refresher since they never start the loop in-process.
func newService(r *refresh.Refresher) (service.Service, error) {
	if serviceInterval <= 0 {
		return nil, apperr.Newf(apperr.KindConfig, "service", "interval must be positive")
	}
	return refresh.New(refresh.NewProgram(r, serviceInterval))
}

func runServiceStatus(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	s, err := newService(nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Service status: %s\n", refresh.StatusText(s.Status()))

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()
	last, err := db.LastRun()
	if err != nil {
		return apperr.New(apperr.KindIO, "read refresh runs", err)
	}
	if last == nil {
		fmt.Fprintln(w, "Last refresh: never")
		return nil
	}
	fmt.Fprintf(w, "Last refresh: %s (%d files, %d events, %s)\n",
		last.RanAt.Local().Format(time.DateTime), last.Files, last.Events, output.FormatCost(last.Cost))
	return nil
}

func runServiceRun(cmd *cobra.Command, args []string) error {
	r, err := newRefresher()
	if err != nil {
		return err
	}
	defer r.DB.Close()

	p := refresh.NewProgram(r, serviceInterval)
	s, err := refresh.New(p)
	if err != nil {
		return err
	}
	if l, err := s.Logger(nil); err == nil {
		p.SetLogger(l)
	}
	return s.Run()
}

func runServiceRefresh(cmd *cobra.Command, args []string) error {
	r, err := newRefresher()
	if err != nil {
		return err
	}
	defer r.DB.Close()

	out, err := r.Refresh()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if flagJSON {
		return output.WriteJSON(w, out)
	}
	if out.Skipped {
		fmt.Fprintln(w, "Usage logs unchanged since the last refresh.")
		return nil
	}
	fmt.Fprintf(w, "Refreshed %d snapshot rows from %d files (%d events, %s).\n",
		out.Rows, out.Files, out.Events, output.FormatCost(out.Cost))
	return nil
}
