package realtime

// Client actions.
const (
	ActionQuery  = "query"
	ActionSelect = "select"
	ActionPing   = "ping"
)

// Server events.
const (
	EventResults  = "results"
	EventSelected = "selected"
	EventError    = "error"
	EventPong     = "pong"
)

// Message represents a JSON frame delivered to the client.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type controlMessage struct {
	Action     string `json:"action"`
	Query      string `json:"query"`
	CustomerID string `json:"customerId"`
}

type errorData struct {
	Message string `json:"message"`
}
