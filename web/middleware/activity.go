package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/infigaming-com/go-authredis/sessiontracker"
)

type ActivityTracker interface {
	Track(ctx context.Context, req *sessiontracker.TrackRequest) error
}

// TrackActivity reports every authenticated request to tracker. Tracking
// failures are logged and never fail the request. It must run after
// RequireAuthentication.
func TrackActivity(tracker ActivityTracker, lg *zap.Logger) gin.HandlerFunc {
	if lg == nil {
		lg = zap.L()
	}
	return func(c *gin.Context) {
		subject, ok := SubjectFromContext(c)
		if ok {
			err := tracker.Track(c.Request.Context(), &sessiontracker.TrackRequest{
				Principal: subject.Principal,
				SessionID: subject.Session.ID,
				Host:      c.ClientIP(),
				UserAgent: c.Request.UserAgent(),
			})
			if err != nil {
				lg.Warn("failed to track activity", zap.String("principal", subject.Principal), zap.Error(err))
			}
		}
		c.Next()
	}
}
