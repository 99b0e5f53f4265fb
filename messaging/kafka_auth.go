package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
)

const gmkTokenTimeout = 10 * time.Second

type kafkaPlainAuth struct {
	username string
	password string
}

func NewKafkaPlainAuth(username, password string) *kafkaPlainAuth {
	return &kafkaPlainAuth{
		username: username,
		password: password,
	}
}

func (a *kafkaPlainAuth) Credentials() (string, string, error) {
	if a.username == "" {
		return "", "", fmt.Errorf("SASL/PLAIN username is empty")
	}
	return a.username, a.password, nil
}

// gmkTokenProvider authenticates against Google Managed Kafka with the
// application default credentials.
type gmkTokenProvider struct {
	lg *zap.Logger
}

func NewGmkTokenProvider(lg *zap.Logger) *gmkTokenProvider {
	return &gmkTokenProvider{lg: lg}
}

func (p *gmkTokenProvider) Token() (*sarama.AccessToken, error) {
	ctx, cancel := context.WithTimeout(context.Background(), gmkTokenTimeout)
	defer cancel()

	creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, fmt.Errorf("failed to find default credentials: %w", err)
	}

	token, err := creds.TokenSource.Token()
	if err != nil {
		p.lg.Warn("failed to refresh kafka access token", zap.Error(err))
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return &sarama.AccessToken{Token: token.AccessToken}, nil
}
