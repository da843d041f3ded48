package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/interviewcoach/internal/app"
	"github.com/MrWong99/interviewcoach/internal/config"
	"github.com/MrWong99/interviewcoach/internal/interview"
	"github.com/MrWong99/interviewcoach/internal/observe"
	"github.com/MrWong99/interviewcoach/internal/resilience"
	"github.com/MrWong99/interviewcoach/pkg/provider/llm"
)

// questionGenerator is the slice of the analysis client used by the
// questions command.
type questionGenerator interface {
	GenerateQuestions(ctx context.Context, jobDescription string, count int) ([]string, error)
}

// questionSet is the result of one generation attempt.
type questionSet struct {
	Questions []string `json:"questions"`
	Notice    string   `json:"notice,omitempty"`
}

func newQuestionsCmd(flags *globalFlags) *cobra.Command {
	var (
		jdFile string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Generate interview questions for a job description and print them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			jd, err := readJobDescription(jdFile, cmd.InOrStdin())
			if err != nil {
				return err
			}

			reg := config.NewRegistry()
			registerBuiltinProviders(reg)
			providers, err := buildProviders(cfg, reg)
			if err != nil {
				return err
			}

			gen := app.NewAnalyzer(cfg, questionsLLM(cfg, providers), observe.DefaultMetrics())
			set := generateQuestionSet(cmd.Context(), gen, jd, questionDefaults(cfg))
			return writeQuestionSet(cmd.OutOrStdout(), set, asJSON)
		},
	}
	cmd.Flags().StringVarP(&jdFile, "job-description-file", "f", "", `file holding the job description ("-" reads stdin)`)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the questions as JSON")
	_ = cmd.MarkFlagRequired("job-description-file")
	return cmd
}

// questionsLLM wraps the configured LLMs in the same failover group the
// server uses. It returns an untyped nil when no LLM is configured.
func questionsLLM(cfg *config.Config, ps *app.Providers) llm.Provider {
	if ps.LLM == nil {
		return nil
	}
	fb := resilience.NewLLMFallback(ps.LLM, cfg.Providers.LLM.Name, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.Resilience.MaxFailures,
			ResetTimeout: cfg.Resilience.ResetTimeout,
		},
	})
	for _, f := range ps.LLMFallbacks {
		fb.AddFallback(f.Name, f.Provider)
	}
	return fb
}

// questionDefaults returns the configured built-in list, or the stock one.
func questionDefaults(cfg *config.Config) []string {
	if len(cfg.Interview.DefaultQuestions) > 0 {
		return cfg.Interview.DefaultQuestions
	}
	return interview.DefaultQuestions
}

// readJobDescription reads the job description from path, or from stdin
// when path is "-".
func readJobDescription(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read job description: %w", err)
	}
	jd := strings.TrimSpace(string(data))
	if jd == "" {
		return "", errors.New("job description is empty")
	}
	return jd, nil
}

// generateQuestionSet asks gen for len(defaults) questions and falls back to
// defaults with a notice when generation fails.
func generateQuestionSet(ctx context.Context, gen questionGenerator, jd string, defaults []string) questionSet {
	qs, err := gen.GenerateQuestions(ctx, jd, len(defaults))
	if err != nil {
		slog.Warn("question generation failed, using built-in questions", "err", err)
		return questionSet{
			Questions: defaults,
			Notice:    "Could not generate questions for this job description; showing the standard set.",
		}
	}
	return questionSet{Questions: qs}
}

func writeQuestionSet(w io.Writer, set questionSet, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(set)
	}
	if set.Notice != "" {
		if _, err := fmt.Fprintf(w, "Note: %s\n\n", set.Notice); err != nil {
			return err
		}
	}
	for i, q := range set.Questions {
		if _, err := fmt.Fprintf(w, "%d. %s\n", i+1, q); err != nil {
			return err
		}
	}
	return nil
}
