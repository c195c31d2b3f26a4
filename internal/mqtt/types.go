package mqtt

const (
	connectionStatusMessageType = "connection-status"
	messageVersion              = 1
)

type ControlMessage struct {
	MessageType string      `json:"type"`
	MessageID   string      `json:"message_id"` // uuid
	Version     int         `json:"version"`
	Sent        string      `json:"sent"`
	Content     interface{} `json:"content"`
}

type ConnectionStatusMessageContent struct {
	TenantName      string `json:"tenant_name"`
	ConnectionState string `json:"state"`
	Phone           string `json:"phone,omitempty"`
}
