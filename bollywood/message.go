// File: bollywood/message.go
package bollywood

import "fmt"

// Performative is the speech-act type of a Message.
type Performative int

// Performatives understood by the marketplace actors. The zero value is left
// for replies whose performative has not been filled in yet.
const (
	CFP Performative = iota + 1
	Propose
	Refuse
	AcceptProposal
	Inform
)

// String returns the protocol name of the performative, or "UNKNOWN" for
// values outside the enumeration.
func (p Performative) String() string {
	switch p {
	case CFP:
		return "CFP"
	case Propose:
		return "PROPOSE"
	case Refuse:
		return "REFUSE"
	case AcceptProposal:
		return "ACCEPT_PROPOSAL"
	case Inform:
		return "INFORM"
	default:
		return "UNKNOWN"
	}
}

// Message is the envelope exchanged between actors. Mailboxes store messages
// by value, so a message can no longer be changed by its sender once posted.
type Message struct {
	Performative   Performative `json:"performative"`
	Sender         string       `json:"sender"`
	Receiver       string       `json:"receiver"`
	Content        string       `json:"content"`
	ConversationID string       `json:"conversationId,omitempty"`
	ReplyWith      string       `json:"replyWith,omitempty"`
	InReplyTo      string       `json:"inReplyTo,omitempty"`
}

// NewMessage creates a message with the given performative and content.
// The performative is not validated.
func NewMessage(performative Performative, content string) Message {
	return Message{Performative: performative, Content: content}
}

// CreateReply prepares a reply addressed to the original sender within the
// same conversation. The performative is left unset for the caller.
func (m Message) CreateReply() Message {
	return Message{
		Sender:         m.Receiver,
		Receiver:       m.Sender,
		ConversationID: m.ConversationID,
		InReplyTo:      m.ReplyWith,
	}
}

func (m Message) String() string {
	return fmt.Sprintf("Message{performative=%s, sender='%s', receiver='%s', content='%s', conversationId='%s'}",
		m.Performative, m.Sender, m.Receiver, m.Content, m.ConversationID)
}
