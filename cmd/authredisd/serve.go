package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/infigaming-com/go-authredis/autoconfig"
	"github.com/infigaming-com/go-authredis/messaging"
	"github.com/infigaming-com/go-authredis/observability/metrics"
	"github.com/infigaming-com/go-authredis/security"
	"github.com/infigaming-com/go-authredis/sessiontracker"
	"github.com/infigaming-com/go-authredis/util"
	"github.com/infigaming-com/go-authredis/web"
	"github.com/infigaming-com/go-authredis/web/middleware"
)

type serveOptions struct {
	port               int64
	accountsPath       string
	jwtSecret          string
	jwtIssuer          string
	otlpEndpoint       string
	otlpGRPCEndpoint   string
	validationInterval time.Duration
	secureCookie       bool
	kafkaBrokers       []string
	kafkaTopic         string
	kafkaSaslUser      string
	kafkaSaslPassword  string
	kafkaGmkAuth       bool
}

func newServeCommand() *cobra.Command {
	o := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP login service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, o)
		},
	}
	f := cmd.Flags()
	f.Int64Var(&o.port, "port", 8080, "listen port")
	f.StringVar(&o.accountsPath, "accounts", "", "YAML accounts file for the static realm")
	f.StringVar(&o.jwtSecret, "jwt-secret", os.Getenv("AUTHREDIS_JWT_SECRET"), "HMAC key enabling bearer token login")
	f.StringVar(&o.jwtIssuer, "jwt-issuer", "", "required issuer of bearer tokens")
	f.StringVar(&o.otlpEndpoint, "otlp-endpoint", "", "OTLP HTTP metrics endpoint")
	f.StringVar(&o.otlpGRPCEndpoint, "otlp-grpc-endpoint", "", "OTLP gRPC metrics endpoint")
	f.DurationVar(&o.validationInterval, "validation-interval", time.Hour, "how often expired sessions are purged, 0 disables")
	f.BoolVar(&o.secureCookie, "secure-cookie", false, "mark the session cookie Secure")
	f.StringSliceVar(&o.kafkaBrokers, "kafka-brokers", nil, "publish auth events to these Kafka brokers")
	f.StringVar(&o.kafkaTopic, "kafka-topic", messaging.DefaultAuthEventTopic, "auth event topic")
	f.StringVar(&o.kafkaSaslUser, "kafka-sasl-user", "", "SASL/PLAIN username")
	f.StringVar(&o.kafkaSaslPassword, "kafka-sasl-password", os.Getenv("AUTHREDIS_KAFKA_SASL_PASSWORD"), "SASL/PLAIN password")
	f.BoolVar(&o.kafkaGmkAuth, "kafka-gmk-auth", false, "authenticate to Google Managed Kafka with default credentials")
	return cmd
}

func runServe(ctx context.Context, o *serveOptions) error {
	lg, cleanup := util.NewLogger()
	defer cleanup()

	cfg, _, err := loadConfig(configPath, namespace)
	if err != nil {
		lg.Error("failed to load config", zap.Error(err))
		return err
	}

	realms, err := buildRealms(o)
	if err != nil {
		lg.Error("failed to build realms", zap.Error(err))
		return err
	}

	opts := []autoconfig.Option{autoconfig.WithLogger(lg), autoconfig.WithRealms(realms...)}
	if o.otlpEndpoint != "" || o.otlpGRPCEndpoint != "" {
		exporter, shutdown, err := metrics.NewMetricExporter(
			metrics.WithServiceName("authredisd"),
			metrics.WithOTLPEndpoint(o.otlpEndpoint),
			metrics.WithOTLPGRPCEndpoint(o.otlpGRPCEndpoint),
		)
		if err != nil {
			lg.Error("failed to start metric exporter", zap.Error(err))
			return err
		}
		defer shutdown()
		opts = append(opts, autoconfig.WithMetrics(exporter.Hook()))
	}

	var events *messaging.AuthEventPublisher
	if len(o.kafkaBrokers) > 0 {
		pubOpts := []messaging.KafkaPublisherOption{
			messaging.WithPublisherLogger(lg),
			messaging.WithPublisherBrokers(o.kafkaBrokers),
			messaging.WithPublisherClientID("authredisd"),
		}
		if o.kafkaSaslUser != "" {
			pubOpts = append(pubOpts, messaging.WithPublisherSaslPlain(o.kafkaSaslUser, o.kafkaSaslPassword))
		}
		if o.kafkaGmkAuth {
			pubOpts = append(pubOpts, messaging.WithPublisherGmkAuth())
		}
		pub, closePublisher, err := messaging.NewKafkaPublisher(pubOpts...)
		if err != nil {
			lg.Error("failed to connect kafka publisher", zap.Error(err))
			return err
		}
		defer func() { _ = closePublisher() }()
		events = messaging.NewAuthEventPublisher(pub, o.kafkaTopic, lg)
		opts = append(opts, autoconfig.WithSecurityManagerOptions(security.WithAuthenticationListener(events)))
	}

	container := autoconfig.NewContainer()
	comps, err := autoconfig.Install(ctx, container, cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := comps.Close(); err != nil {
			lg.Warn("failed to close redis manager", zap.Error(err))
		}
	}()

	secm := comps.SecurityManager
	if secm == nil {
		return errors.New("redis auth is disabled, nothing to serve")
	}
	sm := secm.SessionManager()

	if o.validationInterval > 0 {
		go validateSessionsLoop(ctx, lg, sm, o.validationInterval)
	}

	var authenticated []gin.HandlerFunc
	if comps.RedisManager != nil {
		tracker := sessiontracker.New(comps.RedisManager.Client(), func(e *sessiontracker.ChangeEvent) {
			lg.Info("principal activity changed",
				zap.String("principal", e.Principal),
				zap.Strings("triggers", e.Triggers),
				zap.String("host", e.Host),
				zap.String("prev_host", e.PrevHost),
			)
			if events != nil {
				events.OnActivityChange(e)
			}
		}, sessiontracker.WithLogger(lg))
		defer tracker.Wait()
		authenticated = append(authenticated, middleware.TrackActivity(tracker, lg))
	}

	server := web.NewServer(lg,
		web.WithPort(o.port),
		web.WithMiddleware(
			middleware.CorrelationIdMiddleware(),
			middleware.LoggingMiddleware(
				middleware.WithLogger(lg),
				middleware.WithRedactBodyPaths([]string{"/auth/login"}),
			),
			middleware.SessionMiddleware(sm, middleware.WithSessionLogger(lg), middleware.WithSecureCookie(o.secureCookie)),
		),
		web.WithRoutes(web.AuthRoutes(lg, secm, o.secureCookie, authenticated...)),
	)
	return server.Run(ctx)
}

func buildRealms(o *serveOptions) ([]security.Realm, error) {
	var realms []security.Realm
	if o.accountsPath != "" {
		accounts, err := loadAccounts(o.accountsPath)
		if err != nil {
			return nil, err
		}
		realms = append(realms, security.NewStaticRealm("accounts", accounts))
	}
	if o.jwtSecret != "" {
		var jwtOpts []security.JWTRealmOption
		if o.jwtIssuer != "" {
			jwtOpts = append(jwtOpts, security.WithIssuer(o.jwtIssuer))
		}
		realms = append(realms, security.NewJWTRealm("jwt", []byte(o.jwtSecret), jwtOpts...))
	}
	return realms, nil
}

func validateSessionsLoop(ctx context.Context, lg *zap.Logger, sm security.SessionManager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := sm.ValidateSessions(ctx)
			if err != nil {
				lg.Warn("session validation failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				lg.Info("removed invalid sessions", zap.Int("count", removed))
			}
		}
	}
}
