package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/agora/internal/core/ports/driving"
)

var turnFlags agentFlags

var turnCmd = &cobra.Command{
	Use:   "turn [prompt]",
	Short: "Produce one validated agent utterance",
	Long: `Drafts an utterance with access to the knowledge base and memory tools,
validates it and, when a substantive claim was made without evidence,
regenerates it with forced retrieval.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTurn,
}

func init() {
	turnFlags.register(turnCmd)
	rootCmd.AddCommand(turnCmd)
}

func runTurn(cmd *cobra.Command, args []string) error {
	if turnService == nil {
		return errors.New("turn service not configured")
	}
	s, err := turnFlags.session()
	if err != nil {
		return err
	}

	result, err := turnService.Respond(commandContext(cmd), s, driving.TurnRequest{
		Agent:     turnFlags.agent,
		Expertise: turnFlags.expertise,
		Prompt:    strings.Join(args, " "),
		Agenda:    turnFlags.agenda,
		Questions: turnFlags.questions,
		Round:     turnFlags.round,
	})
	if err != nil {
		return fmt.Errorf("turn failed: %w", err)
	}

	cmd.Println(result.Text)
	cmd.Println()
	tools := "none"
	if len(result.ToolCalls) > 0 {
		tools = strings.Join(result.ToolCalls, ", ")
	}
	cmd.Println(mutedStyle.Render(fmt.Sprintf("Tools: %s | Class: %s | Retries: %d",
		tools, result.Validation.Class, result.Retries)))
	cmd.Printf("Grounded: %s\n", verdict(result.Validation.IsValid, "yes", "no"))
	return nil
}
