// Package dynamotest provides an in-memory stand-in for the DynamoDB calls
// made by the store package: GetItem, and TransactWriteItems with
// conditional ADD updates applied atomically.
package dynamotest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Fake is a concurrency-safe in-memory table set keyed by the "id" attribute.
type Fake struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue
	tokens map[string]string // token -> request fingerprint

	gets    int
	commits int

	// OnGet, when set, is called before each GetItem. A non-nil error is returned to the caller.
	OnGet func(table, id string) error

	// OnCommit, when set, is called before each TransactWriteItems is applied.
	// A non-nil error aborts the transaction without applying anything.
	OnCommit func(input *dynamodb.TransactWriteItemsInput) error
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{
		tables: make(map[string]map[string]map[string]types.AttributeValue),
		tokens: make(map[string]string),
	}
}

// Put stores an item, replacing any existing item with the same id.
func (f *Fake) Put(table string, item map[string]types.AttributeValue) {
	id := stringAttr(item, "id")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tables[table] == nil {
		f.tables[table] = make(map[string]map[string]types.AttributeValue)
	}
	f.tables[table][id] = cloneItem(item)
}

// PutDeck stores a deck item. An empty parentID is stored as NULL.
func (f *Fake) PutDeck(table, id, parentID string, count int64) {
	item := map[string]types.AttributeValue{
		"id":             &types.AttributeValueMemberS{Value: id},
		"totalCardCount": &types.AttributeValueMemberN{Value: strconv.FormatInt(count, 10)},
	}
	if parentID == "" {
		item["parentId"] = &types.AttributeValueMemberNULL{Value: true}
	} else {
		item["parentId"] = &types.AttributeValueMemberS{Value: parentID}
	}
	f.Put(table, item)
}

// Delete removes an item.
func (f *Fake) Delete(table, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tables[table], id)
}

// Number returns a numeric attribute of an item, or 0 when absent.
func (f *Fake) Number(table, id, attr string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.tables[table][id]
	if !ok {
		return 0
	}
	n, _ := numberAttr(item, attr)
	return n
}

// Exists reports whether an item is stored.
func (f *Fake) Exists(table, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tables[table][id]
	return ok
}

// Gets returns the number of GetItem calls served.
func (f *Fake) Gets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

// Commits returns the number of TransactWriteItems calls that applied writes.
func (f *Fake) Commits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commits
}

// GetItem implements store.API.
func (f *Fake) GetItem(ctx context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	table := aws.ToString(params.TableName)
	id := stringAttr(params.Key, "id")
	if f.OnGet != nil {
		if err := f.OnGet(table, id); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	item, ok := f.tables[table][id]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: cloneItem(item)}, nil
}

// TransactWriteItems implements store.API. Only Update items of the form
// "ADD #field :delta" with an optional attribute_exists(id) condition are
// supported.
func (f *Fake) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.OnCommit != nil {
		if err := f.OnCommit(params); err != nil {
			return nil, err
		}
	}
	if n := len(params.TransactItems); n == 0 || n > 100 {
		return nil, fmt.Errorf("validation: transaction must contain 1-100 items, got %d", n)
	}

	type write struct {
		table, id, field string
		delta            int64
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	token := aws.ToString(params.ClientRequestToken)
	fingerprint := requestFingerprint(params)
	if prev, used := f.tokens[token]; token != "" && used {
		if prev != fingerprint {
			return nil, &types.IdempotentParameterMismatchException{
				Message: aws.String("The request uses the same client token as a previous, but non-identical request."),
			}
		}
		return &dynamodb.TransactWriteItemsOutput{}, nil
	}

	writes := make([]write, 0, len(params.TransactItems))
	reasons := make([]types.CancellationReason, len(params.TransactItems))
	seen := make(map[string]bool)
	canceled := false
	for i, ti := range params.TransactItems {
		u := ti.Update
		if u == nil {
			return nil, errors.New("validation: only Update items are supported")
		}
		if aws.ToString(u.UpdateExpression) != "ADD #field :delta" {
			return nil, fmt.Errorf("validation: unsupported update expression %q", aws.ToString(u.UpdateExpression))
		}
		w := write{
			table: aws.ToString(u.TableName),
			id:    stringAttr(u.Key, "id"),
			field: u.ExpressionAttributeNames["#field"],
		}
		delta, ok := numberAttr(u.ExpressionAttributeValues, ":delta")
		if !ok {
			return nil, errors.New("validation: :delta must be a number")
		}
		w.delta = delta

		itemKey := w.table + "/" + w.id
		if seen[itemKey] {
			return nil, errors.New("validation: transaction request cannot include multiple operations on one item")
		}
		seen[itemKey] = true

		reasons[i] = types.CancellationReason{Code: aws.String("None")}
		if cond := aws.ToString(u.ConditionExpression); cond != "" {
			if cond != "attribute_exists(id)" {
				return nil, fmt.Errorf("validation: unsupported condition %q", cond)
			}
			if _, exists := f.tables[w.table][w.id]; !exists {
				reasons[i] = types.CancellationReason{Code: aws.String("ConditionalCheckFailed")}
				canceled = true
			}
		}
		writes = append(writes, w)
	}
	if canceled {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	for _, w := range writes {
		if f.tables[w.table] == nil {
			f.tables[w.table] = make(map[string]map[string]types.AttributeValue)
		}
		item, ok := f.tables[w.table][w.id]
		if !ok {
			item = map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: w.id}}
			f.tables[w.table][w.id] = item
		}
		cur, _ := numberAttr(item, w.field)
		item[w.field] = &types.AttributeValueMemberN{Value: strconv.FormatInt(cur+w.delta, 10)}
	}
	if token != "" {
		f.tokens[token] = fingerprint
	}
	f.commits++
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// requestFingerprint identifies the writes of a transaction for token reuse checks.
func requestFingerprint(params *dynamodb.TransactWriteItemsInput) string {
	var sb strings.Builder
	for _, ti := range params.TransactItems {
		if u := ti.Update; u != nil {
			delta, _ := numberAttr(u.ExpressionAttributeValues, ":delta")
			fmt.Fprintf(&sb, "%s/%s/%s/%d;", aws.ToString(u.TableName), stringAttr(u.Key, "id"),
				u.ExpressionAttributeNames["#field"], delta)
		}
	}
	return sb.String()
}

func stringAttr(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func numberAttr(item map[string]types.AttributeValue, key string) (int64, bool) {
	v, ok := item[key].(*types.AttributeValueMemberN)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v.Value, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// cloneItem copies the top-level map; attribute values are never mutated in place.
func cloneItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
