package commands

import (
	"derjachat/internal/models"
	"derjachat/internal/services"

	"github.com/spf13/cobra"
)

// classification is the output of `adm classify`
type classification struct {
	Language string `json:"language"`
	models.Intent
}

// ClassifyCommand returns the classify command
func ClassifyCommand(classifier *services.IntentClassifier) *cobra.Command {
	var tools models.ToolToggles

	cmd := &cobra.Command{
		Use:   "classify [text]",
		Short: "Show how a message is classified",
		Long: `Run the intent classifier on a message and print the requested
language, whether it would trigger a web search, whether the answer depends on
the caller's location and whether it asks for an export.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			intent := classifier.Classify(cmd.Context(), text, tools)
			return printJSON(cmd, classification{
				Language: intent.Language.String(),
				Intent:   intent,
			})
		},
	}

	cmd.Flags().BoolVar(&tools.WebSearch, "web-search", false, "classify as if the caller enabled web search")
	cmd.Flags().BoolVar(&tools.URLFetch, "url-fetch", false, "classify as if the caller enabled URL fetching")
	return cmd
}
