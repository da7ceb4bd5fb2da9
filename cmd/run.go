// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/emedauto/internal/automation"
	"github.com/xkilldash9x/emedauto/internal/browser"
	"github.com/xkilldash9x/emedauto/internal/casework"
	"github.com/xkilldash9x/emedauto/internal/config"
	"github.com/xkilldash9x/emedauto/internal/orchestrator"
	"github.com/xkilldash9x/emedauto/internal/report"
)

const shutdownTimeout = 15 * time.Second

// Seams for tests.
var (
	newLauncher = func(cfg config.Interface, logger *zap.Logger) automation.Launcher {
		return browser.NewManager(cfg.Browser(), cfg.Automation(), logger)
	}
	notifySignals = func() (<-chan os.Signal, func()) {
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		return ch, func() { signal.Stop(ch) }
	}
)

type runFlags struct {
	workbook         string
	userID           string
	password         string
	headless         bool
	closeBrowser     bool
	maxLoginAttempts int
	summary          string
}

func newRunCmd(state *app) *cobra.Command {
	var flags runFlags

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Log in to eMedical and submit the exams listed in a workbook",
		Long: `Reads eMedical numbers from a workbook, logs in once and completes the
routine findings for each case in order. Interrupt once to stop after the
current case; interrupt again to abort immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyRunFlags(cmd, state.cfg, flags)
			return runBatch(cmd, state.cfg, flags.workbook, state.logger())
		},
	}

	f := runCmd.Flags()
	f.StringVarP(&flags.workbook, "workbook", "w", "", "Excel workbook or text file listing eMedical numbers")
	f.StringVarP(&flags.userID, "user-id", "u", "", "eMedical user id (or EMEDAUTO_EMEDICAL_USER_ID)")
	f.StringVarP(&flags.password, "password", "p", "", "eMedical password (prefer EMEDAUTO_EMEDICAL_PASSWORD)")
	f.BoolVar(&flags.headless, "headless", false, "Run the browser without a window")
	f.BoolVar(&flags.closeBrowser, "close-browser", false, "Close the browser when processing completes")
	f.IntVar(&flags.maxLoginAttempts, "max-login-attempts", 0, "Login attempts before giving up (overrides config)")
	f.StringVar(&flags.summary, "summary", "", "Write a JSON run summary to this path ('-' for stdout)")
	_ = runCmd.MarkFlagRequired("workbook")

	return runCmd
}

// applyRunFlags lets explicitly set flags override config and environment.
func applyRunFlags(cmd *cobra.Command, cfg config.Interface, flags runFlags) {
	changed := cmd.Flags().Changed
	if changed("user-id") || changed("password") {
		creds := cfg.EMedical()
		if changed("user-id") {
			creds.UserID = flags.userID
		}
		if changed("password") {
			creds.Password = flags.password
		}
		cfg.SetCredentials(creds.UserID, creds.Password)
	}
	if changed("headless") {
		cfg.SetBrowserHeadless(flags.headless)
	}
	if changed("close-browser") {
		cfg.SetClosePolicy(orchestrator.ClosePolicyFor(flags.closeBrowser).String())
	}
	if changed("max-login-attempts") {
		cfg.SetMaxLoginAttempts(flags.maxLoginAttempts)
	}
	if changed("summary") {
		cfg.SetSummaryPath(flags.summary)
	}
}

func runBatch(cmd *cobra.Command, cfg config.Interface, workbook string, logger *zap.Logger) error {
	out := cmd.OutOrStdout()

	ids, err := readRecords(cmd.Context(), workbook, logger)
	if err != nil {
		return err
	}

	creds := automation.Credentials{UserID: cfg.EMedical().UserID, Password: cfg.EMedical().Password}
	if len(ids) > 0 && (creds.UserID == "" || creds.Password == "") {
		return errors.New("eMedical credentials are required: use --user-id/--password or EMEDAUTO_EMEDICAL_USER_ID/EMEDAUTO_EMEDICAL_PASSWORD")
	}

	policy, err := orchestrator.ParseClosePolicy(cfg.Run().ClosePolicy)
	if err != nil {
		return err
	}
	auto := cfg.Automation()
	opts := orchestrator.RunOptions{
		Headless:         cfg.Browser().Headless,
		ClosePolicy:      policy,
		MaxLoginAttempts: auto.MaxLoginAttempts,
	}

	gate := automation.NewGate(newLauncher(cfg, logger), automation.GateConfig{
		BaseURL:       cfg.EMedical().BaseURL,
		LoginTimeout:  auto.LoginTimeout,
		RetryInterval: auto.LoginRetryInterval,
		MaxAttempts:   auto.MaxLoginAttempts,
	}, logger)
	machine := automation.NewMachine(automation.MachineConfig{
		StepTimeout: auto.StepTimeout,
		SettleDelay: auto.SettleDelay,
	}, logger)
	orch, err := orchestrator.New(gate, machine, report.Multi{report.NewLogReporter(logger), consoleReporter(out)}, logger)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	sigs, stopSignals := notifySignals()
	defer stopSignals()

	stop := orchestrator.NewStopToken()
	var rs *casework.RunState
	runErr := superviseRun(cmd.Context(), sigs, stop, logger, func(ctx context.Context) error {
		var err error
		rs, err = orch.Run(ctx, ids, creds, opts, stop)
		return err
	})

	if path := cfg.Run().SummaryPath; path != "" && rs != nil {
		if err := writeSummary(out, path, rs.Summary()); err != nil {
			logger.Error("Failed to write run summary", zap.String("path", path), zap.Error(err))
		}
	}

	if orch.Retained() > 0 {
		fmt.Fprintln(out, "Browser left open for review. Press Ctrl+C to close it and exit.")
		drain(sigs)
		<-sigs
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Error closing browser", zap.Error(err))
	}

	if runErr != nil {
		return fmt.Errorf("run aborted: %w", runErr)
	}
	if rs != nil {
		printOutcome(out, rs)
	}
	return nil
}

func printOutcome(w io.Writer, rs *casework.RunState) {
	switch {
	case rs.Cancelled:
		fmt.Fprintf(w, "Stopped: %d succeeded, %d failed, %d not processed\n", len(rs.Succeeded), len(rs.Failed), rs.Pending())
	case len(rs.Failed) > 0:
		fmt.Fprintf(w, "Completed with %d failures: %v\n", len(rs.Failed), rs.Failed)
	default:
		fmt.Fprintf(w, "Completed: %d succeeded\n", len(rs.Succeeded))
	}
}

func writeSummary(out io.Writer, path string, s casework.Summary) error {
	if path == "-" {
		return report.EncodeSummary(out, s)
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return err
	}
	return report.WriteSummary(expanded, s)
}

// consoleReporter prints status lines and per-record outcomes for the operator.
func consoleReporter(w io.Writer) report.Reporter {
	return report.Callbacks{
		OnStatus: func(message string) {
			fmt.Fprintln(w, message)
		},
		OnRecordEnd: func(id string, index int, outcome casework.Status) {
			fmt.Fprintf(w, "  [%d] %s: %s\n", index+1, id, outcome)
		},
	}
}

func drain(ch <-chan os.Signal) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
