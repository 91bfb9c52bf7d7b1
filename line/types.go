package line

// WebhookPayload is the body LINE posts to the webhook endpoint.
type WebhookPayload struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event is a single webhook event. Only the fields used here are decoded.
type Event struct {
	Type            string           `json:"type"`
	Mode            string           `json:"mode,omitempty"`
	Timestamp       int64            `json:"timestamp"`
	WebhookEventID  string           `json:"webhookEventId"`
	ReplyToken      string           `json:"replyToken,omitempty"`
	Source          *Source          `json:"source,omitempty"`
	Message         *Message         `json:"message,omitempty"`
	DeliveryContext *DeliveryContext `json:"deliveryContext,omitempty"`
}

// Source identifies who sent the event.
type Source struct {
	Type    string `json:"type"` // "user", "group" or "room"
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// Message is the message object of a message event.
type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// DeliveryContext tells whether the event is a redelivery.
type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

// TextEvent is a text message event reduced to what the bridge stores.
type TextEvent struct {
	EventID      string
	SenderID     string
	Text         string
	MessageID    string
	ReplyToken   string
	IsRedelivery bool
}

// Event and message types handled by the parser.
const (
	EventTypeMessage = "message"
	MessageTypeText  = "text"
)
