package store_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/deckcount/internal/dynamotest"
	"github.com/jacentio/deckcount/store"
)

func newStore(t *testing.T) (*store.Store, *dynamotest.Fake) {
	t.Helper()
	fake := dynamotest.New()
	return store.New(fake, store.DefaultConfig()), fake
}

// --- Unit Tests ---

func TestDefaultConfig(t *testing.T) {
	cfg := store.DefaultConfig()

	if cfg.DecksTable != "decks" {
		t.Errorf("expected DecksTable 'decks', got %q", cfg.DecksTable)
	}
	if cfg.MaxBatchSize != store.MaxTransactItems {
		t.Errorf("expected MaxBatchSize %d, got %d", store.MaxTransactItems, cfg.MaxBatchSize)
	}
}

func TestNewStore_ValidatesConfig(t *testing.T) {
	s := store.New(nil, store.Config{MaxBatchSize: 1000})
	cfg := s.Config()
	if cfg.DecksTable != "decks" {
		t.Errorf("expected default DecksTable, got %q", cfg.DecksTable)
	}
	if cfg.MaxBatchSize != store.MaxTransactItems {
		t.Errorf("expected MaxBatchSize capped at %d, got %d", store.MaxTransactItems, cfg.MaxBatchSize)
	}
}

func TestIsDeleted(t *testing.T) {
	tests := []struct {
		name     string
		item     map[string]types.AttributeValue
		expected bool
	}{
		{
			name:     "no TTL attribute",
			item:     map[string]types.AttributeValue{},
			expected: false,
		},
		{
			name: "TTL in past",
			item: map[string]types.AttributeValue{
				"ttl": &types.AttributeValueMemberN{Value: "1000000000"}, // 2001
			},
			expected: true,
		},
		{
			name: "TTL in future",
			item: map[string]types.AttributeValue{
				"ttl": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix()+3600)},
			},
			expected: false,
		},
		{
			name: "TTL wrong type",
			item: map[string]types.AttributeValue{
				"ttl": &types.AttributeValueMemberS{Value: "soon"},
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := store.IsDeleted(tt.item)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestErrors(t *testing.T) {
	for _, err := range []error{store.ErrNotFound, store.ErrCommitFailed, store.ErrBatchTooLarge} {
		if len(err.Error()) < 10 || err.Error()[:10] != "deckcount:" {
			t.Errorf("error %q should start with 'deckcount:'", err.Error())
		}
	}
}

// --- GetDeck Tests ---

func TestGetDeck_Found(t *testing.T) {
	s, fake := newStore(t)
	fake.PutDeck("decks", "child", "root", 4)

	deck, err := s.GetDeck(context.Background(), "child")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deck.ID != "child" || deck.ParentID != "root" || deck.TotalCardCount != 4 {
		t.Errorf("unexpected deck %+v", deck)
	}
}

func TestGetDeck_Root(t *testing.T) {
	s, fake := newStore(t)
	fake.PutDeck("decks", "root", "", 0)

	deck, err := s.GetDeck(context.Background(), "root")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deck.IsRoot() {
		t.Errorf("expected root deck, got parent %q", deck.ParentID)
	}
}

func TestGetDeck_Missing(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.GetDeck(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetDeck_Expired(t *testing.T) {
	s, fake := newStore(t)
	fake.Put("decks", map[string]types.AttributeValue{
		"id":  &types.AttributeValueMemberS{Value: "gone"},
		"ttl": &types.AttributeValueMemberN{Value: "1000000000"},
	})

	_, err := s.GetDeck(context.Background(), "gone")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired deck, got %v", err)
	}
}

func TestGetDeck_ReadError(t *testing.T) {
	s, fake := newStore(t)
	boom := errors.New("throttled")
	fake.OnGet = func(table, id string) error { return boom }

	_, err := s.GetDeck(context.Background(), "any")
	if !errors.Is(err, boom) {
		t.Errorf("expected read error, got %v", err)
	}
	if errors.Is(err, store.ErrNotFound) {
		t.Error("read error must not look like ErrNotFound")
	}
}

func TestGetDeck_CustomTable(t *testing.T) {
	fake := dynamotest.New()
	s := store.New(fake, store.Config{DecksTable: "prod-decks"})
	fake.PutDeck("prod-decks", "a", "", 1)

	if _, err := s.GetDeck(context.Background(), "a"); err != nil {
		t.Errorf("expected deck in custom table, got %v", err)
	}
}

// --- Commit Tests ---

func TestCommit_AppliesAll(t *testing.T) {
	s, fake := newStore(t)
	fake.PutDeck("decks", "a", "", 0)
	fake.PutDeck("decks", "b", "a", 0)

	b := s.NewBatch()
	b.IncrementDeckCount("b", 1)
	b.IncrementDeckCount("a", 1)
	if err := b.Commit(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := fake.Number("decks", "a", store.AttrTotalCardCount); got != 1 {
		t.Errorf("expected a=1, got %d", got)
	}
	if got := fake.Number("decks", "b", store.AttrTotalCardCount); got != 1 {
		t.Errorf("expected b=1, got %d", got)
	}
	if fake.Commits() != 1 {
		t.Errorf("expected a single transaction, got %d", fake.Commits())
	}
}

func TestCommit_Empty(t *testing.T) {
	s, fake := newStore(t)

	if err := s.NewBatch().Commit(context.Background()); err != nil {
		t.Errorf("expected nil for empty batch, got %v", err)
	}
	if fake.Commits() != 0 {
		t.Errorf("expected no transaction, got %d", fake.Commits())
	}
}

func TestCommit_AtomicOnMissingDeck(t *testing.T) {
	s, fake := newStore(t)
	fake.PutDeck("decks", "a", "", 5)

	b := s.NewBatch()
	b.IncrementDeckCount("a", 1)
	b.IncrementDeckCount("vanished", 1)
	err := b.Commit(context.Background())

	if !errors.Is(err, store.ErrCommitFailed) {
		t.Fatalf("expected ErrCommitFailed, got %v", err)
	}
	if got := fake.Number("decks", "a", store.AttrTotalCardCount); got != 5 {
		t.Errorf("expected a unchanged at 5, got %d", got)
	}
	if fake.Exists("decks", "vanished") {
		t.Error("expected no document to be created")
	}
}

func TestCommit_TransportError(t *testing.T) {
	s, fake := newStore(t)
	fake.PutDeck("decks", "a", "", 0)
	fake.OnCommit = func(*dynamodb.TransactWriteItemsInput) error {
		return errors.New("connection reset")
	}

	b := s.NewBatch()
	b.IncrementDeckCount("a", 1)
	if err := b.Commit(context.Background()); !errors.Is(err, store.ErrCommitFailed) {
		t.Errorf("expected ErrCommitFailed, got %v", err)
	}
	if got := fake.Number("decks", "a", store.AttrTotalCardCount); got != 0 {
		t.Errorf("expected a unchanged, got %d", got)
	}
}

func TestCommit_TooLarge(t *testing.T) {
	fake := dynamotest.New()
	s := store.New(fake, store.Config{MaxBatchSize: 2})

	b := s.NewBatch()
	for i := 0; i < 3; i++ {
		id := "d" + strconv.Itoa(i)
		fake.PutDeck("decks", id, "", 0)
		b.IncrementDeckCount(id, 1)
	}
	err := b.Commit(context.Background())

	if !errors.Is(err, store.ErrBatchTooLarge) || !errors.Is(err, store.ErrCommitFailed) {
		t.Fatalf("expected ErrBatchTooLarge and ErrCommitFailed, got %v", err)
	}
	if fake.Commits() != 0 {
		t.Error("expected nothing sent")
	}
}

func TestCommit_IdempotencyKey(t *testing.T) {
	s, fake := newStore(t)
	fake.PutDeck("decks", "a", "", 0)

	var tokens []string
	fake.OnCommit = func(in *dynamodb.TransactWriteItemsInput) error {
		tokens = append(tokens, aws.ToString(in.ClientRequestToken))
		return nil
	}

	for i := 0; i < 2; i++ {
		b := s.NewBatch().WithIdempotencyKey("evt-1")
		b.IncrementDeckCount("a", 1)
		if err := b.Commit(context.Background()); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}

	if got := fake.Number("decks", "a", store.AttrTotalCardCount); got != 1 {
		t.Errorf("expected redelivery to apply once, got %d", got)
	}
	if len(tokens) != 2 || tokens[0] != store.IdempotencyToken("evt-1") || tokens[0] != tokens[1] {
		t.Errorf("expected the same derived token twice, got %v", tokens)
	}
}

func TestCommit_IdempotencyKeyReusedWithDifferentIncrements(t *testing.T) {
	s, fake := newStore(t)
	fake.PutDeck("decks", "a", "", 0)
	fake.PutDeck("decks", "b", "", 0)

	first := s.NewBatch().WithIdempotencyKey("evt-1")
	first.IncrementDeckCount("a", 1)
	if err := first.Commit(context.Background()); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	second := s.NewBatch().WithIdempotencyKey("evt-1")
	second.IncrementDeckCount("b", 1)
	err := second.Commit(context.Background())
	if !errors.Is(err, store.ErrIdempotencyMismatch) {
		t.Fatalf("expected ErrIdempotencyMismatch, got %v", err)
	}
	if !errors.Is(err, store.ErrCommitFailed) {
		t.Errorf("expected ErrCommitFailed in chain, got %v", err)
	}
	if got := fake.Number("decks", "b", store.AttrTotalCardCount); got != 0 {
		t.Errorf("expected b untouched, got %d", got)
	}
}

func TestCommit_NoIdempotencyKey(t *testing.T) {
	s, fake := newStore(t)
	fake.PutDeck("decks", "a", "", 0)
	fake.OnCommit = func(in *dynamodb.TransactWriteItemsInput) error {
		if in.ClientRequestToken != nil {
			t.Errorf("expected no token, got %q", *in.ClientRequestToken)
		}
		return nil
	}

	b := s.NewBatch()
	b.IncrementDeckCount("a", 1)
	if err := b.Commit(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCommit_ConcurrentBatches(t *testing.T) {
	s, fake := newStore(t)
	fake.PutDeck("decks", "root", "", 0)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := s.NewBatch()
			b.IncrementDeckCount("root", 1)
			if err := b.Commit(context.Background()); err != nil {
				t.Errorf("commit: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := fake.Number("decks", "root", store.AttrTotalCardCount); got != n {
		t.Errorf("expected %d, got %d", n, got)
	}
}

// --- Examples ---

// ExampleBatch_Commit demonstrates queueing increments and committing them atomically.
func ExampleBatch_Commit() {
	fake := dynamotest.New()
	fake.PutDeck("decks", "languages", "", 0)
	fake.PutDeck("decks", "spanish", "languages", 0)

	s := store.New(fake, store.DefaultConfig())
	b := s.NewBatch()
	b.IncrementDeckCount("spanish", 1)
	b.IncrementDeckCount("languages", 1)
	if err := b.Commit(context.Background()); err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(fake.Number("decks", "languages", store.AttrTotalCardCount))
	// Output: 1
}

func BenchmarkIsDeleted(b *testing.B) {
	item := map[string]types.AttributeValue{
		"ttl": &types.AttributeValueMemberN{Value: "1000000000"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.IsDeleted(item)
	}
}
