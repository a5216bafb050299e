package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical event envelope. All messages published to NATS
// follow this format.
type Envelope struct {
	ID        uuid.UUID       `json:"id"`
	EventType string          `json:"event_type"`
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Network   string          `json:"network"`
	Payload   json.RawMessage `json:"payload"`
}

// TradeExecutedEvent is emitted after a trade settles on either venue.
type TradeExecutedEvent struct {
	TxHash    string    `json:"tx_hash"`
	OrderID   string    `json:"order_id"`
	Source    string    `json:"source"`
	SellToken string    `json:"sell_token"`
	BuyToken  string    `json:"buy_token"`
	Rate      string    `json:"rate"`
	Timestamp time.Time `json:"timestamp"`
}

// EscrowIncidentEvent is emitted when funds were transferred to escrow but
// the off-chain order could not be submitted. Operators consume these for
// manual reconciliation.
type EscrowIncidentEvent struct {
	TxHash    string    `json:"tx_hash"`
	Symbol    string    `json:"symbol"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
