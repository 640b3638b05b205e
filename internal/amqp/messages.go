package amqp

import (
	"encoding/json"
	"time"
)

// Audit actions carried by transaction events.
const (
	ActionCreated = "transaction.created"
	ActionDeleted = "transaction.deleted"
)

// Event sources: which operation produced the transaction.
const (
	SourceAPI    = "api"
	SourceImport = "import"
)

// TransactionEventMessage is a lightweight audit event. It carries only
// identifiers; the worker appends it to the audit log as-is.
type TransactionEventMessage struct {
	TransactionID string    `json:"transaction_id"`
	Action        string    `json:"action"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionEventMessage creates an audit event for a transaction.
func NewTransactionEventMessage(transactionID, action, source string) *TransactionEventMessage {
	return &TransactionEventMessage{
		TransactionID: transactionID,
		Action:        action,
		Source:        source,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventMessageFromJSON creates a message from JSON bytes
func TransactionEventMessageFromJSON(data []byte) (*TransactionEventMessage, error) {
	var msg TransactionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
