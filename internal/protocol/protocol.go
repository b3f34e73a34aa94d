// Package protocol defines the wire envelope and message types exchanged
// between a terminal and the central server. Types mirror the server wire
// protocol without importing server packages.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the kind of socket message.
type MessageType string

// Client to server.
const (
	MsgPriceRequest         MessageType = "price_request"
	MsgInventoryChange      MessageType = "inventory_change"
	MsgTransactionSync      MessageType = "transaction_sync"
	MsgTerminalStatusUpdate MessageType = "terminal_status_update"
)

// Server to client.
const (
	MsgConnectionAck    MessageType = "connection_ack"
	MsgPriceResponse    MessageType = "price_response"
	MsgInventoryChanged MessageType = "inventory_changed"
	MsgTerminalStatus   MessageType = "terminal_status"
	MsgEmployeeAction   MessageType = "employee_action"
)

// Known reports whether t is part of the protocol. transaction_sync flows in
// both directions; everything else is one table or the other.
func Known(t MessageType) bool {
	switch t {
	case MsgPriceRequest, MsgInventoryChange, MsgTransactionSync,
		MsgTerminalStatusUpdate, MsgConnectionAck, MsgPriceResponse,
		MsgInventoryChanged, MsgTerminalStatus, MsgEmployeeAction:
		return true
	}
	return false
}

// Envelope is the frame carried over the socket, one JSON object per
// application message. TerminalID is stamped by the sender once a session
// identity exists; inbound it echoes the server's view of the session.
type Envelope struct {
	Type       MessageType     `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	TerminalID string          `json:"terminalId,omitempty"`
	Timestamp  string          `json:"timestamp"`
}

// Encode builds a wire frame. The timestamp is stamped from now in RFC 3339
// UTC. An empty terminalID is omitted from the frame.
func Encode(t MessageType, payload any, terminalID string, now time.Time) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		raw = b
	}
	env := Envelope{
		Type:       t,
		Payload:    raw,
		TerminalID: terminalID,
		Timestamp:  now.UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", t, err)
	}
	return data, nil
}

// Decode parses a single inbound frame. The payload is left raw; consumers
// decode it against the type's expected shape.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode frame: missing type")
	}
	return env, nil
}

// PriceRequest asks the server for live price and availability.
type PriceRequest struct {
	ProductID string `json:"productId"`
	Barcode   string `json:"barcode"`
}

// PriceResponse answers a PriceRequest.
type PriceResponse struct {
	ProductID string  `json:"productId"`
	Barcode   string  `json:"barcode"`
	Price     float64 `json:"price"`
	Available bool    `json:"available"`
}

// InventoryChange reports a local stock mutation; the same shape comes back
// as inventory_changed when another terminal or the backoffice mutates stock.
type InventoryChange struct {
	ProductID   string `json:"productId"`
	OldQuantity int    `json:"oldQuantity"`
	NewQuantity int    `json:"newQuantity"`
	Reason      string `json:"reason"`
}

// StatusUpdate is the lightweight liveness ping sent over the socket.
type StatusUpdate struct {
	Status string `json:"status"` // "active" or "inactive"
}

// ConnectionAck is the server's session identity assignment.
type ConnectionAck struct {
	TerminalID string `json:"terminalId"`
}

// TerminalStatus is the server's broadcast of a terminal's status.
type TerminalStatus struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	LastActivity string `json:"lastActivity"`
	UserID       string `json:"userId,omitempty"`
	UserRole     string `json:"userRole,omitempty"`
}
