package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntryRecordedMessage announces a newly persisted ledger entry. The
// worker re-evaluates the user's spending flag on expense entries; the
// payload stays light, consumers re-read the entry from storage.
type EntryRecordedMessage struct {
	EntryID   string    `json:"entry_id"`
	UserID    string    `json:"user_id"`
	EntryType string    `json:"entry_type"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntryRecordedMessage(entryID, userID, entryType string) *EntryRecordedMessage {
	return &EntryRecordedMessage{
		EntryID:   entryID,
		UserID:    userID,
		EntryType: entryType,
		Timestamp: time.Now(),
	}
}

func (m *EntryRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntryRecordedMessageFromJSON(data []byte) (*EntryRecordedMessage, error) {
	var msg EntryRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ScanRequestMessage asks the worker to run one vulnerability scan.
// Scans are exclusive with themselves; funneling every request through
// a single consumer is what provides that.
type ScanRequestMessage struct {
	RequestID    string    `json:"request_id"`
	LookbackDays int       `json:"lookback_days"`
	RequestedBy  string    `json:"requested_by"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewScanRequestMessage(lookbackDays int, requestedBy string) *ScanRequestMessage {
	return &ScanRequestMessage{
		RequestID:    uuid.NewString(),
		LookbackDays: lookbackDays,
		RequestedBy:  requestedBy,
		Timestamp:    time.Now(),
	}
}

func (m *ScanRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ScanRequestMessageFromJSON(data []byte) (*ScanRequestMessage, error) {
	var msg ScanRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
