package metrics

import (
	"time"

	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
)

const minutesPerDay = 24 * 60

// Calculator turns a day's punches into classified minutes. It holds no
// state and is safe for concurrent use.
type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

func (c *Calculator) Calculate(in attendance.MetricsInput) attendance.Metrics {
	hasIn, hasOut := in.FirstIn != nil, in.LastOut != nil

	if !in.IsWorkingDay {
		m := attendance.Metrics{Status: attendance.StatusOff}
		if hasIn && hasOut {
			m.RawMinutes = rawMinutes(*in.FirstIn, *in.LastOut)
			m.WorkMinutes = floorTo(m.RawMinutes, in.Schedule.RoundingMinutes)
		}
		return m
	}

	if !hasIn && !hasOut {
		if in.LeaveMinutes > 0 {
			return attendance.Metrics{Status: attendance.StatusAdjusted}
		}
		return attendance.Metrics{Status: attendance.StatusAbsent}
	}
	if !hasIn || !hasOut {
		return attendance.Metrics{Status: attendance.StatusPartial}
	}

	m := attendance.Metrics{RawMinutes: rawMinutes(*in.FirstIn, *in.LastOut)}
	m.WorkMinutes = floorTo(m.RawMinutes, in.Schedule.RoundingMinutes)

	loc := in.Schedule.Location()
	firstIn := in.FirstIn.In(loc)
	anchor := schedule.Date(firstIn)
	inMinute := minuteOfDay(firstIn)
	outMinute := schedule.DaysBetween(anchor, in.LastOut.In(loc))*minutesPerDay + minuteOfDay(in.LastOut.In(loc))

	start, end := in.Schedule.StartMinute(), in.Schedule.EndMinute()
	if start >= 0 && end >= 0 {
		if end < start {
			end += minutesPerDay
		}
		m.LateMinutes = max(0, inMinute-(start+in.Schedule.LateGraceMinutes))
		m.EarlyLeaveMinutes = max(0, (end-in.Schedule.EarlyGraceMinutes)-outMinute)
	}

	switch {
	case m.LateMinutes > 0 && m.EarlyLeaveMinutes > 0:
		m.Status = attendance.StatusLateEarly
	case m.LateMinutes > 0:
		m.Status = attendance.StatusLate
	case m.EarlyLeaveMinutes > 0:
		m.Status = attendance.StatusEarlyLeave
	case in.LeaveMinutes > 0 || in.OvertimeMinutes > 0:
		m.Status = attendance.StatusAdjusted
	default:
		m.Status = attendance.StatusNormal
	}
	return m
}

// RoundOvertime raises minutes to the minimum, rounds up to the rounding
// interval and caps at the per-day maximum.
func (c *Calculator) RoundOvertime(minutes int, r attendance.OvertimeRounding) int {
	if minutes <= 0 {
		return 0
	}
	if r.MinimumMinutes > 0 && minutes < r.MinimumMinutes {
		minutes = r.MinimumMinutes
	}
	if r.RoundingMinutes > 1 {
		minutes = (minutes + r.RoundingMinutes - 1) / r.RoundingMinutes * r.RoundingMinutes
	}
	if r.MaxPerDayMinutes > 0 && minutes > r.MaxPerDayMinutes {
		minutes = r.MaxPerDayMinutes
	}
	return minutes
}

func rawMinutes(in, out time.Time) int {
	d := int(out.Sub(in) / time.Minute)
	if d < 0 {
		return 0
	}
	return d
}

func floorTo(minutes, rounding int) int {
	if rounding < 1 {
		rounding = 1
	}
	return minutes / rounding * rounding
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
