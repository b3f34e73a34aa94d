package protocol

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestEncodeStampsEnvelope(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	data, err := Encode(MsgPriceRequest, PriceRequest{ProductID: "p1", Barcode: "4006381333931"}, "T1", now)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	env, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if env.Type != MsgPriceRequest {
		t.Errorf("Type = %q, want %q", env.Type, MsgPriceRequest)
	}
	if env.TerminalID != "T1" {
		t.Errorf("TerminalID = %q, want T1", env.TerminalID)
	}
	if env.Timestamp != "2026-03-14T09:26:53Z" {
		t.Errorf("Timestamp = %q, want RFC 3339 UTC", env.Timestamp)
	}

	var req PriceRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if req.ProductID != "p1" || req.Barcode != "4006381333931" {
		t.Errorf("payload = %+v", req)
	}
}

func TestEncodeOmitsEmptyTerminalID(t *testing.T) {
	data, err := Encode(MsgTerminalStatusUpdate, StatusUpdate{Status: "active"}, "", time.Now())
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if strings.Contains(string(data), "terminalId") {
		t.Errorf("frame should omit empty terminalId: %s", data)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed json", `{"type": "price_request"`},
		{"missing type", `{"payload": {}}`},
		{"not an object", `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.data)); err == nil {
				t.Errorf("Decode(%s) should fail", tt.data)
			}
		})
	}
}

func TestDecodeUnknownTypeIsNotAnError(t *testing.T) {
	env, err := Decode([]byte(`{"type":"future_thing","payload":{"x":1},"timestamp":"2026-03-14T09:26:53Z"}`))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if env.Type != "future_thing" {
		t.Errorf("Type = %q, want future_thing", env.Type)
	}
	if Known(env.Type) {
		t.Error("Known(future_thing) = true, want false")
	}
}

func TestKnown(t *testing.T) {
	for _, mt := range []MessageType{
		MsgPriceRequest, MsgInventoryChange, MsgTransactionSync,
		MsgTerminalStatusUpdate, MsgConnectionAck, MsgPriceResponse,
		MsgInventoryChanged, MsgTerminalStatus, MsgEmployeeAction,
	} {
		if !Known(mt) {
			t.Errorf("Known(%q) = false, want true", mt)
		}
	}
	if Known("") {
		t.Error(`Known("") = true, want false`)
	}
}
