package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnrollmentStateAt(t *testing.T) {
	expires := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	completedAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cancelledAt := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		enrollment Enrollment
		at         time.Time
		want       EnrollmentState
	}{
		{
			name:       "active before expiry",
			enrollment: Enrollment{ExpiresAt: expires},
			at:         time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC),
			want:       EnrollmentActive,
		},
		{
			// 到期瞬间即视为过期
			name:       "expired at exact expiry instant",
			enrollment: Enrollment{ExpiresAt: expires},
			at:         expires,
			want:       EnrollmentExpired,
		},
		{
			name:       "expired afterwards",
			enrollment: Enrollment{ExpiresAt: expires},
			at:         expires.Add(24 * time.Hour),
			want:       EnrollmentExpired,
		},
		{
			name:       "completed wins over expiry",
			enrollment: Enrollment{ExpiresAt: expires, CompletedAt: &completedAt},
			at:         expires.Add(24 * time.Hour),
			want:       EnrollmentCompleted,
		},
		{
			name:       "cancelled wins over expiry",
			enrollment: Enrollment{ExpiresAt: expires, CancelledAt: &cancelledAt},
			at:         expires.Add(24 * time.Hour),
			want:       EnrollmentCancelled,
		},
		{
			name:       "completed wins over cancelled",
			enrollment: Enrollment{ExpiresAt: expires, CompletedAt: &completedAt, CancelledAt: &cancelledAt},
			at:         expires,
			want:       EnrollmentCompleted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.enrollment.StateAt(tt.at))
		})
	}
}

func TestEnrollmentGrantsAccess(t *testing.T) {
	expires := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	afterExpiry := expires.Add(time.Hour)
	completedAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cancelledAt := completedAt

	active := Enrollment{ExpiresAt: expires}
	assert.True(t, active.GrantsAccess(expires.Add(-time.Hour)))
	assert.False(t, active.GrantsAccess(afterExpiry))

	// 已完成的报名永久授权，不受过期时间影响
	completed := Enrollment{ExpiresAt: expires, CompletedAt: &completedAt}
	assert.True(t, completed.GrantsAccess(afterExpiry))

	cancelled := Enrollment{ExpiresAt: expires, CancelledAt: &cancelledAt}
	assert.False(t, cancelled.GrantsAccess(expires.Add(-time.Hour)))
}
