package model

import (
	"fmt"
	"time"

	"github.com/jacob-jarick/Falculator/internal/logging"
)

// fortnightEpoch anchors fortnightly schedules: the first Monday of 1970.
// A week fires when the day count from this Monday to the week's Monday is
// a multiple of 14.
var fortnightEpoch = NewDate(1970, time.January, 5)

// AmountSchedule is a calendar predicate: given an interval it reports how
// many times the schedule fires, capped by its trigger limit. The schedule
// never mutates its own trigger count; the caller records fires exactly when
// the enclosing payment or trigger produced an effect.
type AmountSchedule struct {
	Frequency    Frequency `json:"frequency"`
	DayOfWeek    *Weekday  `json:"day_of_week,omitempty"`
	DayOfMonth   int       `json:"day_of_month,omitempty"`
	MonthOfYear  *Month    `json:"month_of_year,omitempty"`
	TriggerLimit int       `json:"trigger_limit"`
	TriggerCount int       `json:"trigger_count"`
}

// MonthlyLastDay is the schedule used for annualized monthly compounding:
// fires on the last day of every month, no limit.
func MonthlyLastDay() AmountSchedule {
	return AmountSchedule{Frequency: Monthly, DayOfMonth: 31}
}

func (s *AmountSchedule) weekday() time.Weekday {
	if s.DayOfWeek == nil {
		return time.Monday
	}
	return time.Weekday(*s.DayOfWeek)
}

// firesOn reports whether the schedule's calendar predicate matches d,
// ignoring the trigger limit.
func (s *AmountSchedule) firesOn(d Date) bool {
	switch s.Frequency {
	case Daily:
		return true
	case Weekly:
		return d.Weekday() == s.weekday()
	case Fortnightly:
		if d.Weekday() != s.weekday() {
			return false
		}
		monday := d.AddDays(-mondayOffset(d.Weekday()))
		return monday.DaysSince(fortnightEpoch)%14 == 0
	case Monthly:
		return d.Day() == clampDay(s.DayOfMonth, d.Year(), d.Month())
	case Annual:
		month := time.June
		if s.MonthOfYear != nil {
			month = time.Month(*s.MonthOfYear)
		}
		return d.Month() == month && d.Day() == clampDay(s.DayOfMonth, d.Year(), month)
	}
	return false
}

func mondayOffset(w time.Weekday) int {
	// Days back from w to the week's Monday.
	return (int(w) + 6) % 7
}

func clampDay(day, year int, month time.Month) int {
	if day < 1 {
		day = 1
	}
	if max := DaysInMonth(year, month); day > max {
		return max
	}
	return day
}

// Occurrences counts fires in the half-open interval (prev, curr], capped at
// the remaining trigger budget when TriggerLimit > 0.
func (s *AmountSchedule) Occurrences(prev, curr Date) int {
	if !prev.Before(curr) {
		return 0
	}
	n := 0
	for d := prev.AddDays(1); !d.After(curr); d = d.AddDays(1) {
		if s.firesOn(d) {
			n++
		}
	}
	if s.TriggerLimit > 0 {
		remaining := s.TriggerLimit - s.TriggerCount
		if remaining < 0 {
			remaining = 0
		}
		if n > remaining {
			n = remaining
		}
	}
	return n
}

// RecordFires advances the trigger count. Called by the owner once the
// payment actually produced an effect.
func (s *AmountSchedule) RecordFires(n int) {
	s.TriggerCount += n
}

func (s *AmountSchedule) sanitize(rep *Report, log *logging.Logger, ownerID, ownerName string) {
	if s.TriggerLimit < 0 {
		rep.correct("AmountSchedule", ownerID, "trigger_limit", fmt.Sprint(s.TriggerLimit), "0", "trigger limit cannot be negative")
		log.Warn(ownerID, ownerName, "schedule trigger_limit clamped to 0")
		s.TriggerLimit = 0
	}
	if s.TriggerCount < 0 {
		rep.correct("AmountSchedule", ownerID, "trigger_count", fmt.Sprint(s.TriggerCount), "0", "trigger count cannot be negative")
		s.TriggerCount = 0
	}
	switch s.Frequency {
	case Monthly, Annual:
		if s.DayOfMonth < 1 {
			rep.correct("AmountSchedule", ownerID, "day_of_month", fmt.Sprint(s.DayOfMonth), "1", "day of month below calendar range")
			log.Warn(ownerID, ownerName, "schedule day_of_month clamped to 1")
			s.DayOfMonth = 1
		}
		if s.DayOfMonth > 31 {
			rep.correct("AmountSchedule", ownerID, "day_of_month", fmt.Sprint(s.DayOfMonth), "31", "day of month above calendar range")
			log.Warn(ownerID, ownerName, "schedule day_of_month clamped to 31")
			s.DayOfMonth = 31
		}
	}
	if s.Frequency == Annual && s.MonthOfYear == nil {
		june := Month(time.June)
		rep.correct("AmountSchedule", ownerID, "month_of_year", "", june.String(), "annual schedule requires a month")
		s.MonthOfYear = &june
	}
	if s.Frequency != Annual && s.MonthOfYear != nil {
		rep.correct("AmountSchedule", ownerID, "month_of_year", s.MonthOfYear.String(), "", "month of year only applies to annual schedules")
		s.MonthOfYear = nil
	}
}
