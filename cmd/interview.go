package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/intervu-app/intervu/config"
	"github.com/intervu-app/intervu/internal/interview"
	"github.com/intervu-app/intervu/internal/logger"
	"github.com/intervu-app/intervu/internal/store"
	"github.com/intervu-app/intervu/models"
	"github.com/intervu-app/intervu/provider"
	"github.com/intervu-app/intervu/provider/openrouter"
)

// interviewCMD runs one full interview on the terminal, without the HTTP
// layer. Useful for trying prompts and models locally.
func interviewCMD() *cobra.Command {
	var (
		cfgPath   string
		jobTitle  string
		itype     string
		questions int
		model     string
		save      bool
	)

	var cmd = &cobra.Command{
		Use:   "interview",
		Short: "Run a mock interview in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.General.LogJSON, cfg.General.Debug)
			if err != nil {
				return err
			}
			defer log.Sync()

			llm, err := openrouter.New(openrouter.Options{
				APIKey:       cfg.LLM.APIKey,
				BaseURL:      cfg.LLM.BaseURL,
				DefaultModel: cfg.LLM.DefaultModel,
				Temperature:  cfg.LLM.Temperature,
				MaxTokens:    cfg.LLM.MaxTokens,
				Timeout:      cfg.LLM.Timeout,
				Retry:        provider.DefaultRetryPolicy(),
			}, log.Named("openrouter"))
			if err != nil {
				return err
			}

			interviewType, err := models.ParseInterviewType(itype)
			if err != nil {
				return err
			}
			if model == "" {
				model = cfg.LLM.DefaultModel
			}

			sess, err := runTerminalInterview(cmd.Context(), llm, models.InterviewConfig{
				JobTitle:      jobTitle,
				InterviewType: interviewType,
				QuestionCount: questions,
				Model:         model,
			}, log)
			if err != nil {
				return err
			}

			if save {
				if err := cfg.Storage.Postgres.Validate(); err != nil {
					return err
				}
				st, err := store.NewWithDSN(cmd.Context(), cfg.Storage.Postgres.DSN())
				if err != nil {
					return fmt.Errorf("postgres: %w", err)
				}
				if err := st.SaveSession(cmd.Context(), *sess); err != nil {
					return fmt.Errorf("save session: %w", err)
				}
				fmt.Printf("Session %s saved.\n", sess.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&jobTitle, "job", "", "job title to interview for")
	cmd.Flags().StringVar(&itype, "type", string(models.InterviewGeneral), "interview type: general, technical or behavioral")
	cmd.Flags().IntVar(&questions, "questions", 3, "number of questions (3, 5 or 7)")
	cmd.Flags().StringVar(&model, "model", "", "completion model (defaults to llm.default_model)")
	cmd.Flags().BoolVar(&save, "save", false, "persist the finished session to postgres")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	_ = cmd.MarkFlagRequired("job")

	return cmd
}

func runTerminalInterview(ctx context.Context, llm provider.Provider, cfg models.InterviewConfig, log *zap.Logger) (*models.Session, error) {
	eng := interview.NewEngine(llm, "", log)

	question, err := eng.Start(ctx, cfg)
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("\nQuestion: %s\n\nYour answer: ", question)
		if !scanner.Scan() {
			return nil, fmt.Errorf("input closed before the interview finished")
		}
		answer := strings.TrimSpace(scanner.Text())
		if answer == "" {
			fmt.Println("Please provide an answer.")
			continue
		}

		feedback, err := eng.SubmitAnswer(ctx, answer)
		if err != nil {
			return nil, err
		}
		fmt.Printf("\nFeedback: %s\n", feedback)

		sess, err := eng.Advance(ctx)
		if err != nil {
			return nil, err
		}
		if sess.Status == models.StatusCompleted {
			printEvaluation(sess.Evaluation)
			return sess, nil
		}
		question = sess.Turns[len(sess.Turns)-1].Question
	}
}

func printEvaluation(eval *models.FinalEvaluation) {
	fmt.Println("\nInterview completed!")
	if eval == nil {
		return
	}
	if eval.Graded() {
		fmt.Printf("Overall score: %.1f/10\n", eval.OverallScore)
	} else {
		fmt.Printf("Overall score: ungraded (%s)\n", eval.Notes)
	}
	printList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Printf("\n%s:\n", title)
		for _, it := range items {
			fmt.Printf("  - %s\n", it)
		}
	}
	printList("Strengths", eval.Strengths)
	printList("Areas for improvement", eval.Weaknesses)
	printList("Recommendations", eval.Recommendations)
}
