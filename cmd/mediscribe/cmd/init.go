package cmd

import (
	"errors"
	"fmt"

	"github.com/f3rmion/mediscribe/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize mediscribe configuration",
	Long: `Write a commented configuration file with every default filled in.

The file holds:
  - gemini   (chart generation model and API key)
  - retry    (attempts, backoff, per-attempt timeout)
  - speech   (Deepgram key, language and ffmpeg microphone input)

API keys may instead come from GEMINI_API_KEY and DEEPGRAM_API_KEY.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "overwrite existing configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	path := getConfigFile()

	if err := config.WriteTemplate(path, force); err != nil {
		if errors.Is(err, config.ErrExists) {
			return fmt.Errorf("%w\nUse --force to overwrite", err)
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n\n", path)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Set gemini.api_key and speech.api_key, or export GEMINI_API_KEY and DEEPGRAM_API_KEY")
	fmt.Fprintln(out, "  2. Run 'mediscribe check' to verify the microphone and API setup")
	fmt.Fprintln(out, "  3. Run 'mediscribe' to start charting")

	return nil
}
