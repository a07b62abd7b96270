package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Operation names carried in sync messages.
const (
	OpTransactionUpsert = "transaction_upsert"
	OpTransactionDelete = "transaction_delete"
	OpDraftUpsert       = "draft_upsert"
)

// SyncMessage is a lightweight notification for the sync worker. For upserts
// it carries only identifiers; the worker reads the authoritative row from
// the local database before touching the remote store.
type SyncMessage struct {
	Op         string    `json:"op"`
	ID         string    `json:"id,omitempty"`
	MonthKey   string    `json:"month_key"`
	TemplateID string    `json:"template_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewTransactionUpsertMessage(id, monthKey string) *SyncMessage {
	return &SyncMessage{Op: OpTransactionUpsert, ID: id, MonthKey: monthKey, Timestamp: time.Now()}
}

func NewTransactionDeleteMessage(id, monthKey string) *SyncMessage {
	return &SyncMessage{Op: OpTransactionDelete, ID: id, MonthKey: monthKey, Timestamp: time.Now()}
}

func NewDraftUpsertMessage(monthKey, templateID string) *SyncMessage {
	return &SyncMessage{Op: OpDraftUpsert, MonthKey: monthKey, TemplateID: templateID, Timestamp: time.Now()}
}

func (m *SyncMessage) Validate() error {
	switch m.Op {
	case OpTransactionUpsert, OpTransactionDelete:
		if m.ID == "" {
			return fmt.Errorf("sync message %s: missing transaction id", m.Op)
		}
	case OpDraftUpsert:
		if m.TemplateID == "" {
			return fmt.Errorf("sync message %s: missing template id", m.Op)
		}
	default:
		return fmt.Errorf("unknown sync operation %q", m.Op)
	}
	if m.MonthKey == "" {
		return fmt.Errorf("sync message %s: missing month key", m.Op)
	}
	return nil
}

func (m *SyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SyncMessageFromJSON(data []byte) (*SyncMessage, error) {
	var msg SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
