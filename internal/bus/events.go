package bus

// MetaNonText marks inbound updates that carried no text body (stickers,
// photos, joins). Handlers ignore them.
const MetaNonText = "non_text"

type InboundMessage struct {
	Channel  string
	SenderID string
	ChatID   string
	Content  string
	Sender   Sender
	Metadata map[string]any
}

// Sender describes the chat identity that produced an inbound message.
type Sender struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
	IsBot     bool
}

func (m *InboundMessage) IsText() bool {
	nonText, _ := m.Metadata[MetaNonText].(bool)
	return !nonText
}

type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
	// Sticker is a transport file id; when set Content is ignored.
	Sticker string
	// Markdown asks the channel to render Content as formatted text.
	// Everything else is delivered exactly as written.
	Markdown bool
	// Transient messages are remembered by the channel and removed by the
	// next message that sets ClearTransient.
	Transient      bool
	ClearTransient bool
	Metadata       map[string]any
}
