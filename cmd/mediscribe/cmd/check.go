package cmd

import (
	"errors"
	"fmt"

	"github.com/f3rmion/mediscribe/internal/clipboard"
	"github.com/f3rmion/mediscribe/internal/llm"
	"github.com/f3rmion/mediscribe/internal/logging"
	"github.com/f3rmion/mediscribe/internal/speech"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check configuration and environment",
	Long: `Report whether chart generation, speech recognition and the clipboard
can be used with the current configuration. Exits non-zero when chart
generation is not configured.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	status := func(label string, err error) {
		if err != nil {
			fmt.Fprintf(out, "  %-12s ✗ %v\n", label, err)
			return
		}
		fmt.Fprintf(out, "  %-12s ✓\n", label)
	}

	fmt.Fprintf(out, "Config: %s\n", getConfigFile())
	fmt.Fprintf(out, "Log:    %s\n\n", cfg.Log.File)

	client, genErr := newClient(cfg, logging.Nop())
	status("gemini", genErr)
	if genErr == nil {
		policy := llm.NewRetryPolicy(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoff)
		fmt.Fprintf(out, "  %-12s %s, %d attempts, waits %v\n", "", client.Model(), policy.MaxAttempts, policy.Delays())
	}

	rec := speech.NewDeepgramRecognizer(cfg.Deepgram())
	status("speech", rec.Probe())

	var clipErr error
	if !clipboard.Available() {
		clipErr = clipboard.ErrUnavailable
	}
	status("clipboard", clipErr)

	if genErr != nil {
		return errors.New("chart generation is not configured")
	}
	return nil
}
