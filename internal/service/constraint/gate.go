package constraint

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/utils"
)

// Gate enforces the org's live punch constraints: IP allowlist, geofences
// and the minimum interval between punches. Empty settings disable a check.
type Gate struct {
	events attendance.EventRepository
}

func NewGate(events attendance.EventRepository) *Gate {
	return &Gate{events: events}
}

func (g *Gate) Check(ctx context.Context, orgID, userID string, at time.Time, ip string, loc *attendance.Location, c attendance.PunchConstraints) error {
	if len(c.IPAllowlist) > 0 && !ipAllowed(ip, c.IPAllowlist) {
		return fmt.Errorf("%w: %s", attendance.ErrIPRestricted, ip)
	}

	if len(c.Geofences) > 0 {
		if loc == nil {
			return attendance.ErrLocationMissing
		}
		inside := false
		for _, f := range c.Geofences {
			if utils.WithinRadius(loc.Latitude, loc.Longitude, f.Latitude, f.Longitude, f.RadiusMeters) {
				inside = true
				break
			}
		}
		if !inside {
			return attendance.ErrOutsideGeofence
		}
	}

	if c.MinIntervalMinutes > 0 {
		last, err := g.events.LastPunch(ctx, orgID, userID)
		if err != nil {
			return fmt.Errorf("failed to read last punch: %w", err)
		}
		if last != nil {
			gap := at.Sub(last.OccurredAt)
			if gap >= 0 && gap < time.Duration(c.MinIntervalMinutes)*time.Minute {
				return attendance.ErrPunchTooSoon
			}
		}
	}
	return nil
}

// ipAllowed matches exact addresses and CIDR ranges.
func ipAllowed(raw string, allowlist []string) bool {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return false
	}
	for _, entry := range allowlist {
		if strings.Contains(entry, "/") {
			if _, network, err := net.ParseCIDR(entry); err == nil && network.Contains(ip) {
				return true
			}
			continue
		}
		if allowed := net.ParseIP(entry); allowed != nil && allowed.Equal(ip) {
			return true
		}
	}
	return false
}

var _ attendance.ConstraintGate = (*Gate)(nil)
