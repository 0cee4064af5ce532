package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aula0/aula/internal/app"
	"github.com/aula0/aula/internal/config"
	"github.com/aula0/aula/internal/log"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question from the terminal",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Keep the terminal clean for the answer; warnings still surface.
	logger := log.New(log.Config{Level: slog.LevelWarn})
	slog.SetDefault(logger)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	question := strings.Join(args, " ")
	reply, err := a.Router.Respond(ctx, question, nil)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println(reply.Response)

	if len(reply.Citations) > 0 {
		fmt.Println()
		fmt.Println("Fuentes:")
		for _, c := range reply.Citations {
			fmt.Printf("  - %s\n", c.Formatted)
		}
	}
	return nil
}
