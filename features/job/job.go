package job

import (
	"encoding/json"
	"time"
)

// Job is a dead-lettered delivery: a message that was undecodable or ran out
// of attempts. Retrying republishes Payload to Topic.
type Job struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Handler   string          `json:"handler"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Attempts  int             `json:"attempts"`
	CreatedAt time.Time       `json:"created_at"`
}
