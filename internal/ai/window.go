package ai

// RoleSystem marks the instruction message that opens every window.
const RoleSystem = "system"

// Message is one chat turn. Role is an open string passed through as given.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// WindowBuilder produces the message sequence sent upstream for one request.
// It holds no per-request state, so a single builder is safe for concurrent use.
type WindowBuilder struct {
	system Message
}

func NewWindowBuilder(instruction string) *WindowBuilder {
	return &WindowBuilder{system: Message{Role: RoleSystem, Content: instruction}}
}

// Stage returns a new slice holding the system instruction followed by history.
// The result shares no backing array with history or with earlier results.
func (b *WindowBuilder) Stage(history []Message) []Message {
	window := make([]Message, 0, len(history)+1)
	window = append(window, b.system)
	return append(window, history...)
}
