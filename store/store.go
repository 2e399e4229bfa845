package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// API is the subset of the DynamoDB client used by Store.
// *dynamodb.Client satisfies it.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store provides DynamoDB operations for the deck hierarchy.
type Store struct {
	client API
	config Config
}

// New creates a new Store instance.
func New(client API, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
	}
}

// Config returns the validated configuration.
func (s *Store) Config() Config {
	return s.config
}

// Get retrieves an item by key, returning ErrNotFound if deleted or missing.
func (s *Store) Get(ctx context.Context, table string, key PK) (map[string]types.AttributeValue, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	// Check if item is deleted (has expired TTL)
	if IsDeleted(result.Item) {
		return nil, ErrNotFound
	}

	return result.Item, nil
}

// GetDeck retrieves a deck by id.
func (s *Store) GetDeck(ctx context.Context, id string) (*Deck, error) {
	raw, err := s.Get(ctx, s.config.DecksTable, KeyFor(id))
	if err != nil {
		return nil, err
	}
	deck, err := UnmarshalDeck(raw)
	if err != nil {
		return nil, fmt.Errorf("deck %s: %w", id, err)
	}
	if deck.ID == "" {
		deck.ID = id
	}
	return deck, nil
}

// NewBatch starts an empty batch bound to this store.
func (s *Store) NewBatch() *Batch {
	return &Batch{
		store: s,
		index: make(map[opKey]int),
	}
}
