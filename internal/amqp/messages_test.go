package amqp

import (
	"testing"
	"time"
)

func TestNewTransactionUpsertMessage(t *testing.T) {
	msg := NewTransactionUpsertMessage("tx-1", "2025-7")

	if msg.Op != OpTransactionUpsert {
		t.Errorf("Op = %q, want %q", msg.Op, OpTransactionUpsert)
	}
	if msg.ID != "tx-1" {
		t.Errorf("ID = %q, want %q", msg.ID, "tx-1")
	}
	if msg.MonthKey != "2025-7" {
		t.Errorf("MonthKey = %q, want %q", msg.MonthKey, "2025-7")
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestSyncMessage_JSON(t *testing.T) {
	timestamp := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	msg := &SyncMessage{
		Op:        OpTransactionDelete,
		ID:        "tx-9",
		MonthKey:  "2025-7",
		Timestamp: timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := SyncMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("SyncMessageFromJSON() error = %v", err)
	}

	if parsed.Op != msg.Op {
		t.Errorf("Parsed Op = %q, want %q", parsed.Op, msg.Op)
	}
	if parsed.ID != msg.ID {
		t.Errorf("Parsed ID = %q, want %q", parsed.ID, msg.ID)
	}
	if parsed.MonthKey != msg.MonthKey {
		t.Errorf("Parsed MonthKey = %q, want %q", parsed.MonthKey, msg.MonthKey)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestSyncMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		msg     SyncMessage
		wantErr bool
	}{
		{
			name: "valid upsert",
			msg:  SyncMessage{Op: OpTransactionUpsert, ID: "tx-1", MonthKey: "2025-7"},
		},
		{
			name: "valid draft upsert",
			msg:  SyncMessage{Op: OpDraftUpsert, TemplateID: "energia", MonthKey: "2025-7"},
		},
		{
			name:    "upsert without id",
			msg:     SyncMessage{Op: OpTransactionUpsert, MonthKey: "2025-7"},
			wantErr: true,
		},
		{
			name:    "draft upsert without template",
			msg:     SyncMessage{Op: OpDraftUpsert, MonthKey: "2025-7"},
			wantErr: true,
		},
		{
			name:    "missing month key",
			msg:     SyncMessage{Op: OpTransactionDelete, ID: "tx-1"},
			wantErr: true,
		},
		{
			name:    "unknown op",
			msg:     SyncMessage{Op: "vacuum", ID: "tx-1", MonthKey: "2025-7"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSyncMessageFromJSON_Invalid(t *testing.T) {
	if _, err := SyncMessageFromJSON([]byte(`{"op": 42}`)); err == nil {
		t.Error("SyncMessageFromJSON() should fail with invalid JSON")
	}
	if _, err := SyncMessageFromJSON([]byte(`{"op": "transaction_upsert"}`)); err == nil {
		t.Error("SyncMessageFromJSON() should fail when required fields are missing")
	}
}
