package commands

import (
	"derjachat/internal/models"
	"derjachat/internal/services"

	"github.com/spf13/cobra"
)

// FallbackQuizCommand returns the fallback-quiz command
func FallbackQuizCommand() *cobra.Command {
	var (
		params models.QuizParams
		types  []string
	)

	cmd := &cobra.Command{
		Use:   "fallback-quiz",
		Short: "Print the quiz served when generation cannot produce one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, t := range types {
				params.AllowedTypes = append(params.AllowedTypes, models.QuestionType(t))
			}
			return printJSON(cmd, services.FallbackQuiz(params))
		},
	}

	cmd.Flags().StringVar(&params.Subject, "subject", "", "quiz subject")
	cmd.Flags().IntVar(&params.QuestionCount, "count", models.DefaultQuestionCount, "number of questions")
	cmd.Flags().IntVar(&params.OptionCount, "options", 0, "options per choice question (0 for the default)")
	cmd.Flags().StringSliceVar(&types, "types", nil, "allowed question types: mcq, mcma, tf, fitb")
	cmd.Flags().BoolVar(&params.HintsEnabled, "hints", false, "include hints")
	return cmd
}
