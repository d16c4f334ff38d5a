// Package cmd contains all CLI commands for mediscribe.
package cmd

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/f3rmion/mediscribe/internal/config"
	"github.com/f3rmion/mediscribe/internal/llm"
	"github.com/f3rmion/mediscribe/internal/logging"
	"github.com/f3rmion/mediscribe/internal/speech"
	"github.com/f3rmion/mediscribe/internal/tui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mediscribe",
	Short: "Keyword-based SOAP chart assistant for clinic visits",
	Long: `mediscribe records the doctor-patient conversation, combines it with
the doctor's own memo and patient details, and asks Gemini for a concise
keyword-style SOAP chart that can be pasted into the clinic's EMR.

  - Live transcription runs through Deepgram with ffmpeg microphone capture
  - Chart generation retries with exponential backoff
  - The finished chart is copied with a patient header block

Running 'mediscribe' without arguments launches the interactive TUI.`,
	SilenceUsage: true,
	RunE:         runTUI,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/mediscribe/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "debug logging")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	path := cfgFile
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error finding home directory:", err)
			os.Exit(1)
		}
		path = p
	}
	viper.Set("config_file", path)

	if err := config.ReadFile(viper.GetViper(), path); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}
}

// getConfigFile returns the configuration file path.
func getConfigFile() string {
	return viper.GetString("config_file")
}

// loadConfig decodes the merged file, environment and flag configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if viper.GetBool("verbose") {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}
	return logger, nil
}

// newClient builds the chart generation client with any prompt overrides.
func newClient(cfg *config.Config, logger *zap.SugaredLogger) (*llm.Client, error) {
	gen, err := cfg.Generator()
	if err != nil {
		return nil, err
	}
	return llm.NewClient(cfg.LLM(), llm.WithLogger(logger.Named("llm")), llm.WithGenerator(gen))
}

// runTUI launches the interactive TUI application.
func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	opts := tui.Options{
		Recognizer:  speech.NewDeepgramRecognizer(cfg.Deepgram(), speech.WithLogger(logger.Named("speech"))),
		Logger:      logger,
		CopyConfirm: cfg.UI.CopyConfirm,
	}

	// Without a key the app still runs; generation then fails with the
	// fixed message and the cause is logged.
	client, err := newClient(cfg, logger)
	if err != nil {
		logger.Warnw("chart generation unavailable", "error", err)
		logger.Infow("starting mediscribe", "config", getConfigFile())
	} else {
		opts.Generator = client
		logger.Infow("starting mediscribe", "config", getConfigFile(), "model", client.Model())
	}

	p := tea.NewProgram(
		tui.NewApp(opts),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}

	return nil
}
