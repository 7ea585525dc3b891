package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	domain "github.com/bryanwahyu/threatlens/internal/domain/scans"
)

var flagMode string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a file or a URL",
}

var scanFileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Upload a local file for analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  runScanFile,
}

var scanURLCmd = &cobra.Command{
	Use:   "url <url>",
	Short: "Submit a URL for analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  runScanURL,
}

func init() {
	scanCmd.PersistentFlags().StringVar(&flagMode, "mode", string(domain.ModeExpress), "Scan mode (express, comprehensive)")
	scanCmd.AddCommand(scanFileCmd, scanURLCmd)
	rootCmd.AddCommand(scanCmd)
}

func runScanFile(cmd *cobra.Command, args []string) error {
	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return runScan(cmd, func(ctx context.Context, e *env) (domain.ScanResult, error) {
		svc, err := e.scanService()
		if err != nil {
			return domain.ScanResult{}, err
		}
		return svc.ScanFile(ctx, f, filepath.Base(path), domain.Mode(flagMode))
	})
}

func runScanURL(cmd *cobra.Command, args []string) error {
	return runScan(cmd, func(ctx context.Context, e *env) (domain.ScanResult, error) {
		svc, err := e.scanService()
		if err != nil {
			return domain.ScanResult{}, err
		}
		return svc.ScanURL(ctx, args[0], domain.Mode(flagMode))
	})
}

// runScan runs one scan with Ctrl-C cancelling it. A cancelled scan is not stored.
func runScan(cmd *cobra.Command, scan func(context.Context, *env) (domain.ScanResult, error)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	res, err := scan(ctx, e)
	if err != nil {
		if hint := domain.RetryHint(err); hint != "" {
			return fmt.Errorf("%w (%s)", err, hint)
		}
		return err
	}
	return printResult(cmd.OutOrStdout(), res)
}
