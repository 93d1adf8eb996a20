package admin

import (
	"context"
	"fmt"

	"github.com/TheScouser/chatbox-sub000/internal/config"
	"github.com/TheScouser/chatbox-sub000/internal/database"
	"github.com/TheScouser/chatbox-sub000/internal/openai"
	"github.com/TheScouser/chatbox-sub000/internal/repository"
	"github.com/TheScouser/chatbox-sub000/internal/service"
	"github.com/spf13/cobra"
)

// EmbedCmd returns the embed command
func EmbedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Embed pending knowledge chunks",
		Long:  "Run one embedding pass over chunks that do not have an embedding yet, then exit",
		RunE:  runEmbed,
	}

	cmd.Flags().String("agent", "", "Only embed pending chunks of this agent")

	return cmd
}

func runEmbed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasOpenAI() {
		return fmt.Errorf("CHATBOX_OPENAI_API_KEY is required")
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, database.PoolConfig{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	chunkRepo := repository.NewKnowledgeChunkRepository(pool)
	batcher := service.NewEmbeddingBatcher(openai.NewClient(cfg.OpenAIAPIKey), chunkRepo)

	agentID, _ := cmd.Flags().GetString("agent")

	var summary service.BatchSummary
	if agentID != "" {
		summary, err = batcher.Run(ctx, agentID)
	} else {
		summary, err = batcher.RunAll(ctx)
	}
	if err != nil {
		return fmt.Errorf("embedding run failed: %w", err)
	}

	fmt.Printf("Embedded %d chunks (%d errors)\n", summary.Processed, summary.Errors)
	return nil
}
