package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"coinly/internal/core"
)

// TransactionPostedType is the message type of posted transaction events.
const TransactionPostedType = "transaction.posted"

// TransactionPostedMessage announces a transaction that has been committed
// together with its balance change. RecurringID is nil for manual postings.
type TransactionPostedMessage struct {
	Type          string               `json:"type"`
	TransactionID int64                `json:"transaction_id"`
	UserID        int64                `json:"user_id"`
	RecurringID   *int64               `json:"recurring_id"`
	Amount        decimal.Decimal      `json:"amount"`
	Kind          core.TransactionKind `json:"kind"`
	Date          core.Date            `json:"date"`
	Timestamp     time.Time            `json:"timestamp"`
}

// NewTransactionPostedMessage builds the event for a stored transaction.
func NewTransactionPostedMessage(tx core.Transaction) *TransactionPostedMessage {
	return &TransactionPostedMessage{
		Type:          TransactionPostedType,
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		RecurringID:   tx.RecurringRuleID,
		Amount:        tx.Amount,
		Kind:          tx.Kind,
		Date:          tx.Date,
		Timestamp:     time.Now().UTC(),
	}
}

func (m *TransactionPostedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionPostedMessageFromJSON decodes an event and rejects unknown types.
func TransactionPostedMessageFromJSON(data []byte) (*TransactionPostedMessage, error) {
	var msg TransactionPostedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type != TransactionPostedType {
		return nil, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	return &msg, nil
}
