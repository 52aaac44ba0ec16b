package amqp

import (
	"encoding/json"
	"time"
)

// EntrySyncMessage asks the worker to mirror one chart entry. It carries
// only the entry key and version; the worker reads the full row from the
// database so a stale message never overwrites a newer edit.
type EntrySyncMessage struct {
	ChartID   int64     `json:"chart_id"`
	Horizon   string    `json:"horizon"`
	Date      string    `json:"date"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntrySyncMessage(chartID int64, horizon, date string, version int64) *EntrySyncMessage {
	return &EntrySyncMessage{
		ChartID:   chartID,
		Horizon:   horizon,
		Date:      date,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *EntrySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntrySyncMessageFromJSON(data []byte) (*EntrySyncMessage, error) {
	var msg EntrySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
