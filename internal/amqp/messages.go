package amqp

import (
	"encoding/json"
	"time"

	"salone/internal/core"
)

// MessageTypeAnalysisCompleted is the AMQP type of AnalysisCompletedMessage.
const MessageTypeAnalysisCompleted = "salone.analysis.completed"

// AnalysisCompletedMessage summarises one aggregated batch. It carries no
// row data.
type AnalysisCompletedMessage struct {
	SessionID    string    `json:"session_id"`
	Source       string    `json:"source"`
	Periods      []string  `json:"periods"`
	TotalRevenue float64   `json:"total_revenue"`
	Operators    int       `json:"operators"`
	Services     int       `json:"services"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewAnalysisCompletedMessage builds the summary of res.
func NewAnalysisCompletedMessage(sessionID, source string, res core.AnalysisResult) *AnalysisCompletedMessage {
	return &AnalysisCompletedMessage{
		SessionID:    sessionID,
		Source:       source,
		Periods:      res.Keys(),
		TotalRevenue: res.Overall.TotalRevenue,
		Operators:    len(res.Overall.SortedOperators),
		Services:     len(res.Overall.SortedServices),
		Timestamp:    time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *AnalysisCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AnalysisCompletedMessageFromJSON decodes a message body.
func AnalysisCompletedMessageFromJSON(data []byte) (*AnalysisCompletedMessage, error) {
	var msg AnalysisCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
