package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chirp-labs/chirp/internal/config"
	"github.com/chirp-labs/chirp/internal/database"
	"github.com/chirp-labs/chirp/internal/repository"
	"github.com/chirp-labs/chirp/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func BotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Manage chat bots",
		Long:  "Create and list chat bots",
	}

	cmd.AddCommand(BotCreateCmd())
	cmd.AddCommand(BotListCmd())

	return cmd
}

func BotCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new bot",
		Long:  "Create a new bot with the specified name and print its widget API key",
		Args:  cobra.ExactArgs(1),
		RunE:  runBotCreate,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().Int("message-limit", 0, "Monthly message quota (0 keeps the default)")

	return cmd
}

func runBotCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	name := args[0]
	outputFormat, _ := cmd.Flags().GetString("output")
	messageLimit, _ := cmd.Flags().GetInt("message-limit")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	botRepo := repository.NewBotRepository(pool)
	botSvc := service.NewBotService(botRepo, &service.DefaultUUIDGenerator{}, 0)

	bot, err := botSvc.CreateBot(ctx, service.CreateBotParams{
		Name:         name,
		MessageLimit: messageLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":         bot.ID,
			"name":       bot.Name,
			"api_key":    bot.APIKey,
			"created_at": bot.CreatedAt,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Bot created: %s (%s)\n", bot.Name, bot.ID)
		fmt.Printf("API key: %s\n", bot.APIKey)
	}

	return nil
}

func BotListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all bots",
		Long:  "List all bots in the system",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runBotList(outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runBotList(outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	botRepo := repository.NewBotRepository(pool)

	bots, err := botRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list bots: %w", err)
	}

	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(bots))
		for i, bot := range bots {
			data[i] = map[string]interface{}{
				"id":            bot.ID,
				"name":          bot.Name,
				"api_key":       bot.APIKey,
				"message_count": bot.MessageCount,
				"message_limit": bot.MessageLimit,
				"created_at":    bot.CreatedAt,
			}
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		if len(bots) == 0 {
			fmt.Println("No bots found")
			return nil
		}
		fmt.Println("Bots:")
		for _, bot := range bots {
			fmt.Printf("  %s: %s (messages: %d/%d, created: %s)\n",
				bot.ID, bot.Name, bot.MessageCount, bot.MessageLimit,
				bot.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	}

	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return database.NewPoolFromURL(ctx, cfg.DatabaseURL)
}
