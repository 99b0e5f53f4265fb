package messaging

import "context"

type PublishOption func(*publishOptions)

type publishOptions struct {
	keyGenerator KeyGenerator
}

// WithPublishKeyGenerator overrides the publisher level key generator for a
// single message.
func WithPublishKeyGenerator(keyGenerator KeyGenerator) PublishOption {
	return func(o *publishOptions) {
		o.keyGenerator = keyGenerator
	}
}

type Publisher interface {
	Publish(ctx context.Context, msg Message, opts ...PublishOption) error
}
