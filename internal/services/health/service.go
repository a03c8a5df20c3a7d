package health

import (
	"context"
	"time"
)

// Pinger is implemented by backing stores that can report liveness (*sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service encapsulates health-related checks.
type Service struct {
	DB      Pinger
	Timeout time.Duration
}

// NewService constructs a new health service. db may be nil.
func NewService(db Pinger) *Service {
	return &Service{DB: db, Timeout: 2 * time.Second}
}

// Status returns the health payload and whether every dependency responded.
func (s *Service) Status(ctx context.Context) (map[string]bool, bool) {
	out := map[string]bool{"ok": true}
	if s == nil || s.DB == nil {
		return out, true
	}
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		out["ok"] = false
		out["db"] = false
		return out, false
	}
	out["db"] = true
	return out, true
}
