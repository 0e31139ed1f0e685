package message

// This file provides the common data objects used by the rest of the
// program.

// ID defines the properties that uniquely identify a message.
type ID struct {
	// The permanent and unique ID of a message in the mail
	// provider's storage system.
	PermID string

	// The permanent and unique ID of the thread the message
	// belongs to.
	ThreadID string
}

// ReplyHeaders holds the identifiers needed to send a reply that the
// provider files into the existing thread and that mail clients
// display under the original message.
type ReplyHeaders struct {
	// The thread the reply must be filed into.
	ThreadID string

	// The RFC 2822 Message-ID header value of the message being
	// replied to.  Used for In-Reply-To and References.  May be
	// empty when the original message carried no Message-ID.
	MessageID string
}

// Inbound is one fully extracted inbound message, ready for reply
// generation.  Values are constructed fresh each poll cycle and never
// persisted.
type Inbound struct {
	ID

	// The Subject header value, or "" when absent.
	Subject string

	// The bare sender address parsed from the From header.
	Sender string

	// The concatenated decoded text/plain content of the message.
	// Never empty; messages without a plain text representation
	// are dropped by the intake pipeline.
	Body string

	// The extracted body of the first message in the thread.  Set
	// only when this message is the second message of its thread
	// and the first was sent by our own mailbox; "" otherwise.
	PriorContext string

	// Identifiers for threading the outbound reply.
	Reply ReplyHeaders
}

// Profile defines per-account information for the mailbox being
// polled.
type Profile struct {
	EmailAddress string
}
