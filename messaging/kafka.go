package messaging

import (
	"crypto/tls"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

const (
	PartitionerHash       = "hash"
	PartitionerRandom     = "random"
	PartitionerRoundRobin = "roundrobin"
)

// KafkaConfig holds the connection settings shared by Kafka clients.
type KafkaConfig struct {
	lg                *zap.Logger
	brokers           []string
	clientID          string
	saslPlainAuth     *kafkaPlainAuth
	saslTokenProvider sarama.AccessTokenProvider
}

func defaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		brokers:  []string{"localhost:9092"},
		clientID: "redis-auth",
		lg:       zap.NewNop(),
	}
}

// apply copies client id and security settings onto a sarama config. A
// token provider wins over SASL/PLAIN; without either the connection is
// plaintext.
func (c KafkaConfig) apply(cfg *sarama.Config) error {
	cfg.ClientID = c.clientID
	cfg.Version = sarama.V2_3_0_0

	switch {
	case c.saslTokenProvider != nil:
		cfg.Net.TLS.Enable = true
		cfg.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
		cfg.Net.SASL.Enable = true
		cfg.Net.SASL.Mechanism = sarama.SASLTypeOAuth
		cfg.Net.SASL.TokenProvider = c.saslTokenProvider
		cfg.Net.SASL.Handshake = true
	case c.saslPlainAuth != nil:
		username, password, err := c.saslPlainAuth.Credentials()
		if err != nil {
			return fmt.Errorf("failed to get SASL/PLAIN credentials: %w", err)
		}
		cfg.Net.TLS.Enable = true
		cfg.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
		cfg.Net.SASL.Enable = true
		cfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		cfg.Net.SASL.User = username
		cfg.Net.SASL.Password = password
		cfg.Net.SASL.Handshake = true
	}
	return nil
}
