package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ragstack/ragdemo/internal/app"
)

var flagShowPrompt bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one question against the existing index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&flagShowPrompt, "show-prompt", false, "print the raw prompt sent to the model")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := app.Setup(ctx, cfg, initLogger())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		_ = a.Close()
	}()

	question := strings.Join(args, " ")
	resp, err := answerOne(ctx, a, question)
	if err != nil {
		return err
	}
	if flagShowPrompt && resp.Decision.Allowed {
		fmt.Println(resp.Prompt)
	}
	return nil
}
