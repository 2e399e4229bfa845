// Package store provides the DynamoDB data access layer for deck card counts.
package store

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names of the persisted schema.
const (
	AttrID             = "id"
	AttrParentID       = "parentId"
	AttrTotalCardCount = "totalCardCount"
	AttrDeckID         = "deckId"
)

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// KeyFor returns the primary key of a deck or flashcard document.
func KeyFor(id string) PK {
	return PK{AttrID: &types.AttributeValueMemberS{Value: id}}
}

// Deck is a node of the deck hierarchy.
type Deck struct {
	// ID is the deck's document id.
	ID string `dynamodbav:"id"`

	// ParentID is the parent deck id (empty for root decks).
	ParentID string `dynamodbav:"parentId,omitempty"`

	// TotalCardCount is the number of cards in the deck's whole subtree.
	TotalCardCount int64 `dynamodbav:"totalCardCount"`
}

// IsRoot reports whether the deck has no parent.
func (d *Deck) IsRoot() bool {
	return d.ParentID == ""
}

// Card is the part of a flashcard document the counter cares about.
type Card struct {
	// ID is the card's document id.
	ID string `dynamodbav:"id"`

	// DeckID is the owning deck (empty when the card is unassigned).
	DeckID string `dynamodbav:"deckId,omitempty"`
}

// UnmarshalDeck decodes a raw deck item.
// A NULL or missing parentId decodes to an empty ParentID.
func UnmarshalDeck(raw map[string]types.AttributeValue) (*Deck, error) {
	var d Deck
	if err := attributevalue.UnmarshalMap(raw, &d); err != nil {
		return nil, fmt.Errorf("unmarshal deck: %w", err)
	}
	return &d, nil
}

// UnmarshalCard decodes a raw flashcard item.
func UnmarshalCard(raw map[string]types.AttributeValue) (*Card, error) {
	var c Card
	if err := attributevalue.UnmarshalMap(raw, &c); err != nil {
		return nil, fmt.Errorf("unmarshal card: %w", err)
	}
	return &c, nil
}
