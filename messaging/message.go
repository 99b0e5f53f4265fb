package messaging

// Message is one record bound for a topic. Payload is JSON encoded.
type Message struct {
	Topic    string
	Payload  any
	Metadata map[string]string
}

// KeyGenerator derives the partition key of a message.
type KeyGenerator func(msg Message) string
