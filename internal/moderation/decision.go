package moderation

// DecisionKind tags the variant held by a Decision.
type DecisionKind int

const (
	DecisionNoop DecisionKind = iota
	DecisionReply
	DecisionDelete
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionReply:
		return "reply"
	case DecisionDelete:
		return "delete"
	default:
		return "noop"
	}
}

// Decision is the single outcome of processing one message.
// Text is set for DecisionReply, MessageID for DecisionDelete.
type Decision struct {
	Kind      DecisionKind
	ChatID    int64
	Text      string
	MessageID int
}

func Noop() Decision {
	return Decision{Kind: DecisionNoop}
}

func Reply(chatID int64, text string) Decision {
	return Decision{Kind: DecisionReply, ChatID: chatID, Text: text}
}

func Delete(chatID int64, messageID int) Decision {
	return Decision{Kind: DecisionDelete, ChatID: chatID, MessageID: messageID}
}
