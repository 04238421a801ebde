package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/agora/internal/core/domain"
)

var (
	validateToolCalls []string
	validateDomain    string
	validateFallback  string
)

var validateCmd = &cobra.Command{
	Use:   "validate [text]",
	Short: "Check whether an utterance is grounded",
	Long: `Classifies an utterance as simple or substantive. A substantive utterance is
only valid when query_knowledge_base was among the tool calls made while
drafting it.

With --domain, an invalid utterance also triggers the forced retrieval an
agent would receive before regenerating.

Examples:
  agora validate "Studies show capacitance rises 50% in sub-nm pores."
  agora validate --tool-call query_knowledge_base "Studies show ..."
  agora validate --domain electrochemistry "Studies show ..."`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringSliceVar(&validateToolCalls, "tool-call", nil, "tool called while drafting (repeatable)")
	validateCmd.Flags().StringVarP(&validateDomain, "domain", "d", "", "run forced retrieval against this domain when invalid")
	validateCmd.Flags().StringVar(&validateFallback, "fallback", "", "query used when no claim can be extracted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	if validatorService == nil {
		return errors.New("validator not configured")
	}
	text := strings.Join(args, " ")

	outcome := validatorService.Validate(text, validateToolCalls)
	cmd.Printf("Class: %s\n", outcome.Class)
	cmd.Printf("Grounded: %s\n", verdict(outcome.IsValid, "yes", "no"))
	if outcome.IsValid {
		return nil
	}

	if len(outcome.Claims) > 0 {
		cmd.Println("Claims:")
		for _, c := range outcome.Claims {
			cmd.Printf("  - %s\n", c)
		}
	}
	cmd.Println()
	cmd.Println(outcome.RetryGuidance)

	if validateDomain == "" {
		return nil
	}
	d, err := domain.ParseDomain(validateDomain)
	if err != nil {
		return err
	}
	fallback := validateFallback
	if fallback == "" {
		fallback = text
	}
	cmd.Println()
	cmd.Println(headingStyle.Render("Forced retrieval"))
	cmd.Println(validatorService.ForceRetrieval(commandContext(cmd), text, fallback, d))
	return nil
}
