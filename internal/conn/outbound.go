package conn

import "github.com/retailpos/terminal/internal/protocol"

// Outbound convenience wrappers over Send, one per client-to-server message
// type. Each returns false when the terminal is offline; nothing is queued.

// RequestPrice asks the server for live price and availability. The answer
// arrives on the bus under the price_response category; callers needing
// request/response matching correlate on productId themselves.
func (m *Manager) RequestPrice(productID, barcode string) bool {
	return m.Send(protocol.MsgPriceRequest, protocol.PriceRequest{
		ProductID: productID,
		Barcode:   barcode,
	})
}

// ReportInventoryChange pushes a local stock mutation to the server.
func (m *Manager) ReportInventoryChange(productID string, oldQty, newQty int, reason string) bool {
	return m.Send(protocol.MsgInventoryChange, protocol.InventoryChange{
		ProductID:   productID,
		OldQuantity: oldQty,
		NewQuantity: newQty,
		Reason:      reason,
	})
}

// SyncTransaction pushes a completed transaction record for reconciliation.
func (m *Manager) SyncTransaction(record any) bool {
	return m.Send(protocol.MsgTransactionSync, record)
}

// UpdateStatus sends the lightweight liveness ping.
func (m *Manager) UpdateStatus(active bool) bool {
	status := "inactive"
	if active {
		status = "active"
	}
	return m.Send(protocol.MsgTerminalStatusUpdate, protocol.StatusUpdate{Status: status})
}
