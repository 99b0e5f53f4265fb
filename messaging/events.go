package messaging

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/infigaming-com/go-authredis/security"
	"github.com/infigaming-com/go-authredis/sessiontracker"
)

const (
	DefaultAuthEventTopic = "redis-auth.events"

	EventLoginSucceeded  = "login_succeeded"
	EventLoginFailed     = "login_failed"
	EventLogout          = "logout"
	EventActivityChanged = "activity_changed"
)

// AuthEvent is the payload published for every authentication event.
type AuthEvent struct {
	Type      string   `json:"type"`
	Principal string   `json:"principal,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
	Host      string   `json:"host,omitempty"`
	PrevHost  string   `json:"prev_host,omitempty"`
	Triggers  []string `json:"triggers,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// AuthEventPublisher forwards login, logout and activity events to a
// topic, keyed by principal. Publish failures are logged and dropped.
type AuthEventPublisher struct {
	pub   Publisher
	topic string
	lg    *zap.Logger
	now   func() time.Time
}

var _ security.AuthenticationListener = (*AuthEventPublisher)(nil)

func NewAuthEventPublisher(pub Publisher, topic string, lg *zap.Logger) *AuthEventPublisher {
	if topic == "" {
		topic = DefaultAuthEventTopic
	}
	if lg == nil {
		lg = zap.L()
	}
	return &AuthEventPublisher{pub: pub, topic: topic, lg: lg, now: time.Now}
}

func (p *AuthEventPublisher) OnLoginSuccess(ctx context.Context, token security.Token, subject *security.Subject) {
	p.publish(ctx, AuthEvent{
		Type:      EventLoginSucceeded,
		Principal: subject.Principal,
		SessionID: subject.Session.ID,
		Host:      token.Host,
	})
}

// OnLoginFailure never publishes the presented credentials, only the
// claimed username.
func (p *AuthEventPublisher) OnLoginFailure(ctx context.Context, token security.Token, err error) {
	p.publish(ctx, AuthEvent{
		Type:      EventLoginFailed,
		Principal: token.Username,
		Host:      token.Host,
		Reason:    err.Error(),
	})
}

func (p *AuthEventPublisher) OnLogout(ctx context.Context, principal, sessionID string) {
	p.publish(ctx, AuthEvent{Type: EventLogout, Principal: principal, SessionID: sessionID})
}

// OnActivityChange matches sessiontracker.OnChangeFunc. Tracker callbacks
// run detached from any request, so the publish uses a fresh context.
func (p *AuthEventPublisher) OnActivityChange(e *sessiontracker.ChangeEvent) {
	p.publish(context.Background(), AuthEvent{
		Type:      EventActivityChanged,
		Principal: e.Principal,
		SessionID: e.SessionID,
		Host:      e.Host,
		PrevHost:  e.PrevHost,
		Triggers:  e.Triggers,
		Timestamp: e.Timestamp,
	})
}

func (p *AuthEventPublisher) publish(ctx context.Context, e AuthEvent) {
	if e.Timestamp == 0 {
		e.Timestamp = p.now().UnixMilli()
	}
	msg := Message{
		Topic:    p.topic,
		Payload:  e,
		Metadata: map[string]string{"event_type": e.Type},
	}
	err := p.pub.Publish(ctx, msg, WithPublishKeyGenerator(func(Message) string { return e.Principal }))
	if err != nil {
		p.lg.Warn("failed to publish auth event", zap.String("type", e.Type), zap.String("principal", e.Principal), zap.Error(err))
	}
}
