package store

// MaxTransactItems is the DynamoDB limit on items in one TransactWriteItems call.
const MaxTransactItems = 100

// Config holds configuration for the Store.
type Config struct {
	// DecksTable is the name of the deck table.
	// Default: "decks"
	DecksTable string

	// MaxBatchSize caps the number of distinct increments a Batch may commit.
	// Default: 100
	// Max: 100 (DynamoDB transaction limit)
	MaxBatchSize int
}

// DefaultConfig returns defaults matching the persisted schema.
func DefaultConfig() Config {
	return Config{
		DecksTable:   "decks",
		MaxBatchSize: MaxTransactItems,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.DecksTable == "" {
		c.DecksTable = "decks"
	}
	if c.MaxBatchSize < 1 || c.MaxBatchSize > MaxTransactItems {
		c.MaxBatchSize = MaxTransactItems
	}
}
