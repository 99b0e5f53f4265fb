package session

import (
	"time"
)

// Session is the persisted state of one login session. Values are owned by
// the caller; the store never hands out shared pointers.
type Session struct {
	ID             string            `json:"id"`
	StartTimestamp time.Time         `json:"start_timestamp"`
	LastAccessTime time.Time         `json:"last_access_time"`
	StopTimestamp  *time.Time        `json:"stop_timestamp,omitempty"`
	Timeout        time.Duration     `json:"timeout"`
	Expired        bool              `json:"expired"`
	Host           string            `json:"host,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
}

// New returns an unsaved session started at now. A zero timeout never
// times out.
func New(host string, timeout time.Duration, now time.Time) *Session {
	return &Session{
		StartTimestamp: now,
		LastAccessTime: now,
		Timeout:        timeout,
		Host:           host,
	}
}

func (s *Session) Touch(now time.Time) {
	s.LastAccessTime = now
}

func (s *Session) Stop(now time.Time) {
	if s.StopTimestamp == nil {
		stopped := now
		s.StopTimestamp = &stopped
	}
}

func (s *Session) Expire() {
	s.Expired = true
}

func (s *Session) IsStopped() bool {
	return s.StopTimestamp != nil
}

func (s *Session) IsTimedOut(now time.Time) bool {
	if s.Timeout <= 0 {
		return false
	}
	return now.Sub(s.LastAccessTime) > s.Timeout
}

func (s *Session) IsValid(now time.Time) bool {
	return !s.Expired && !s.IsStopped() && !s.IsTimedOut(now)
}

func (s *Session) Attribute(key string) (string, bool) {
	v, ok := s.Attributes[key]
	return v, ok
}

func (s *Session) SetAttribute(key, value string) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]string)
	}
	s.Attributes[key] = value
}

func (s *Session) RemoveAttribute(key string) {
	delete(s.Attributes, key)
}
