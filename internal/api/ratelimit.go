package api

import (
	"math"

	domainerrors "github.com/neurotunes/neurotunes-server/internal/errors"
)

// RetryAfterDetails is attached to RATE_LIMITED errors.
type RetryAfterDetails struct {
	RetryAfterSeconds int `json:"retry_after_seconds"`
}

// allowUpload applies the per-caregiver upload budget. No limiter means no limit.
func (s *Server) allowUpload(caregiver string) error {
	if s.uploadLimiter == nil || s.uploadLimiter.Allow(caregiver) {
		return nil
	}
	wait := s.uploadLimiter.RetryAfter(caregiver)
	s.logger.Warn("upload rate limit exceeded", "caregiver", caregiver, "retry_after", wait)
	return domainerrors.ErrRateLimited.WithDetails(RetryAfterDetails{
		RetryAfterSeconds: int(math.Ceil(wait.Seconds())),
	})
}
