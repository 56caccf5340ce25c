package models

// HealthResponse represents the health check response
type HealthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Timestamp        string `json:"timestamp"`
	Database         string `json:"database"`
	EventBus         string `json:"event_bus"`
	ConnectedClients int    `json:"connected_clients"`
	BroadcastEvents  int64  `json:"broadcast_events"`
	ForwarderMock    bool   `json:"forwarder_mock"`
}
