// Command deckcounter is the Lambda function attached to the flashcards table
// stream. It keeps totalCardCount current on every ancestor deck.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jacentio/deckcount/internal/config"
	"github.com/jacentio/deckcount/store"
	"github.com/jacentio/deckcount/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	handler, err := newHandler(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	logger.Info("deck counter ready",
		"region", cfg.Region,
		"decksTable", cfg.DecksTable,
		"cardsTable", cfg.CardsTable,
	)
	lambda.Start(handler.HandleCardStream)
}

// newHandler builds the process-wide DynamoDB client, store and handler.
// It runs once per cold start; every invocation reuses the result.
func newHandler(ctx context.Context, cfg config.Config, logger *slog.Logger) (*stream.Handler, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s := store.New(dynamodb.NewFromConfig(awsCfg), cfg.StoreConfig())
	return stream.NewHandlerWithOptions(s, logger, cfg.WalkOptions()), nil
}
