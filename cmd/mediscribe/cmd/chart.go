package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/f3rmion/mediscribe/internal/chart"
	"github.com/f3rmion/mediscribe/internal/clipboard"
	"github.com/f3rmion/mediscribe/internal/llm"
	"github.com/f3rmion/mediscribe/internal/session"
	"github.com/spf13/cobra"
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Generate a SOAP chart without the TUI",
	Long: `Generate a keyword-style SOAP chart from a saved transcript and/or memo.

The transcript and memo are read from files ("-" reads stdin). At least one
of them must contain text.

Examples:
  mediscribe chart --name 홍길동 --age 45 --gender 남 --memo "맥 현, 설 담홍"
  mediscribe chart --transcript visit.txt --export
  cat visit.txt | mediscribe chart --transcript - --copy`,
	Args: cobra.NoArgs,
	RunE: runChart,
}

var (
	chartName           string
	chartAge            string
	chartGender         string
	chartMemo           string
	chartMemoFile       string
	chartTranscriptFile string
	chartExport         bool
	chartCopy           bool
)

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.Flags().StringVar(&chartName, "name", "", "patient name")
	chartCmd.Flags().StringVar(&chartAge, "age", "", "patient age")
	chartCmd.Flags().StringVar(&chartGender, "gender", "", "patient gender: 남성/남/m or 여성/여/f")
	chartCmd.Flags().StringVarP(&chartMemo, "memo", "m", "", "doctor's memo text")
	chartCmd.Flags().StringVar(&chartMemoFile, "memo-file", "", "read the memo from a file")
	chartCmd.Flags().StringVarP(&chartTranscriptFile, "transcript", "t", "", "read the conversation transcript from a file")
	chartCmd.Flags().BoolVar(&chartExport, "export", false, "print the chart with the patient header block")
	chartCmd.Flags().BoolVar(&chartCopy, "copy", false, "copy the chart with the patient header to the clipboard")
}

func runChart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	client, err := newClient(cfg, logger)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return fmt.Errorf("%w: set GEMINI_API_KEY or run 'mediscribe init'", err)
		}
		return err
	}

	memo := chartMemo
	if chartMemoFile != "" {
		if memo, err = readInput(cmd.InOrStdin(), chartMemoFile); err != nil {
			return fmt.Errorf("reading memo: %w", err)
		}
	}
	var transcript string
	if chartTranscriptFile != "" {
		if transcript, err = readInput(cmd.InOrStdin(), chartTranscriptFile); err != nil {
			return fmt.Errorf("reading transcript: %w", err)
		}
	}

	// Drive the same session controller as the TUI so the guards match.
	state := session.New()
	state.CopyConfirm = cfg.UI.CopyConfirm
	for _, ev := range []session.Event{
		session.EditPatient{Field: chart.FieldName, Value: chartName},
		session.EditPatient{Field: chart.FieldAge, Value: chartAge},
		session.EditPatient{Field: chart.FieldGender, Value: chartGender},
		session.TranscriptUpdated{Epoch: state.Epoch, Text: transcript},
		session.EditMemo{Text: memo},
	} {
		state, _ = session.Reduce(state, ev)
	}

	state, effects := session.Reduce(state, session.RequestGeneration{})
	gen, ok := findGenerate(effects)
	if !ok {
		return errors.New(state.Error)
	}

	text, genErr := client.GenerateChart(cmd.Context(), gen.Request)
	if genErr != nil {
		state, _ = session.Reduce(state, session.GenerationFailed{Epoch: gen.Epoch, Err: genErr})
		logger.Errorw("chart generation failed", "error", genErr)
		return fmt.Errorf("%s: %w", state.Error, genErr)
	}
	state, _ = session.Reduce(state, session.GenerationSucceeded{Epoch: gen.Epoch, Text: text})

	out := cmd.OutOrStdout()
	if chartExport {
		fmt.Fprint(out, chart.ExportText(state.Patient, state.Chart))
	} else {
		if !state.Patient.IsZero() {
			fmt.Fprintln(out, chart.Summary(state.Patient))
			fmt.Fprintln(out)
		}
		fmt.Fprint(out, state.Chart)
	}
	if !strings.HasSuffix(state.Chart, "\n") {
		fmt.Fprintln(out)
	}

	if chartCopy {
		state, effects = session.Reduce(state, session.CopyResult{})
		for _, eff := range effects {
			w, ok := eff.(session.WriteClipboard)
			if !ok {
				continue
			}
			state, _ = session.Reduce(state, session.ClipboardWritten{Epoch: w.Epoch, Err: clipboard.Write(w.Text)})
		}
		if state.CopyConfirmed {
			fmt.Fprintln(cmd.ErrOrStderr(), "복사 완료")
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), "복사 실패")
		}
	}

	return nil
}

func findGenerate(effects []session.Effect) (session.Generate, bool) {
	for _, eff := range effects {
		if g, ok := eff.(session.Generate); ok {
			return g, true
		}
	}
	return session.Generate{}, false
}

// readInput reads path, or stdin when path is "-".
func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}
