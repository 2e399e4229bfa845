package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// tokenNamespace scopes idempotency tokens derived from caller keys.
var tokenNamespace = uuid.MustParse("6f1c3a52-6b0e-4f7e-9d55-2f0f1d2b8c41")

// Increment is a pending "add Delta to Field of document ID in Table" operation.
type Increment struct {
	Table string
	ID    string
	Field string
	Delta int64
}

type opKey struct {
	table, id, field string
}

// Batch accumulates increments and commits them as one DynamoDB transaction.
// Increments on the same document field are coalesced, since a transaction
// may touch each item only once.
type Batch struct {
	store          *Store
	ops            []Increment
	index          map[opKey]int
	idempotencyKey string
}

// Increment queues an increment of field on the document id in table.
func (b *Batch) Increment(table, id, field string, delta int64) {
	k := opKey{table: table, id: id, field: field}
	if i, ok := b.index[k]; ok {
		b.ops[i].Delta += delta
		return
	}
	b.index[k] = len(b.ops)
	b.ops = append(b.ops, Increment{Table: table, ID: id, Field: field, Delta: delta})
}

// IncrementDeckCount queues an increment of a deck's totalCardCount.
func (b *Batch) IncrementDeckCount(deckID string, delta int64) {
	b.Increment(b.store.config.DecksTable, deckID, AttrTotalCardCount, delta)
}

// WithIdempotencyKey makes the commit idempotent for the given key (for
// example a stream event id) within DynamoDB's token window.
func (b *Batch) WithIdempotencyKey(key string) *Batch {
	b.idempotencyKey = key
	return b
}

// Len returns the number of distinct queued increments.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Ops returns a copy of the queued increments in queue order.
func (b *Batch) Ops() []Increment {
	out := make([]Increment, len(b.ops))
	copy(out, b.ops)
	return out
}

// Commit applies all queued increments atomically.
// An empty batch commits trivially. On failure nothing is applied and the
// returned error wraps ErrCommitFailed.
func (b *Batch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	if len(b.ops) > b.store.config.MaxBatchSize {
		return fmt.Errorf("%w: %w: %d increments, limit %d",
			ErrCommitFailed, ErrBatchTooLarge, len(b.ops), b.store.config.MaxBatchSize)
	}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: b.transactItems(),
	}
	if b.idempotencyKey != "" {
		input.ClientRequestToken = aws.String(IdempotencyToken(b.idempotencyKey))
	}

	_, err := b.store.client.TransactWriteItems(ctx, input)
	return b.mapCommitError(err)
}

// transactItems builds one conditional ADD update per queued increment.
func (b *Batch) transactItems() []types.TransactWriteItem {
	items := make([]types.TransactWriteItem, 0, len(b.ops))
	for _, op := range b.ops {
		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:           aws.String(op.Table),
				Key:                 KeyFor(op.ID),
				UpdateExpression:    aws.String("ADD #field :delta"),
				ConditionExpression: aws.String("attribute_exists(id)"),
				ExpressionAttributeNames: map[string]string{
					"#field": op.Field,
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":delta": &types.AttributeValueMemberN{
						Value: strconv.FormatInt(op.Delta, 10),
					},
				},
			},
		})
	}
	return items
}

// mapCommitError maps DynamoDB transaction errors for Commit.
func (b *Batch) mapCommitError(err error) error {
	if err == nil {
		return nil
	}

	var mismatch *types.IdempotentParameterMismatchException
	if errors.As(err, &mismatch) {
		return fmt.Errorf("%w: %w: %w", ErrCommitFailed, ErrIdempotencyMismatch, err)
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		var missing []string
		for i, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" && i < len(b.ops) {
				missing = append(missing, b.ops[i].ID)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: documents no longer exist: %s: %w",
				ErrCommitFailed, strings.Join(missing, ", "), err)
		}
	}

	return fmt.Errorf("%w: %w", ErrCommitFailed, err)
}

// IdempotencyToken derives a ClientRequestToken (at most 36 characters) from key.
func IdempotencyToken(key string) string {
	return uuid.NewSHA1(tokenNamespace, []byte(key)).String()
}
