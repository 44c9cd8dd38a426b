package booking

import (
	"fmt"
	"time"

	"github.com/jonwraymond/querycache/cache"
)

// Resource families.
const (
	FamilyTreatments   = "treatments"
	FamilyStaff        = "staff"
	FamilyAppointments = "appointments"
	FamilyUser         = "user"
)

var (
	TreatmentsKey       = cache.MustKey(FamilyTreatments)
	StaffKey            = cache.MustKey(FamilyStaff)
	AppointmentsKey     = cache.MustKey(FamilyAppointments)
	UserKey             = cache.MustKey(FamilyUser)
	UserAppointmentsKey = cache.MustKey(FamilyAppointments, FamilyUser)
)

// MonthYear is a calendar month.
type MonthYear struct {
	Year  int
	Month time.Month
}

// MonthYearOf returns the month containing t.
func MonthYearOf(t time.Time) MonthYear {
	return MonthYear{Year: t.Year(), Month: t.Month()}
}

// Add returns the month n months after m. n may be negative.
func (m MonthYear) Add(n int) MonthYear {
	return MonthYearOf(m.First().AddDate(0, n, 0))
}

// First returns midnight UTC on the first day of the month.
func (m MonthYear) First() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Days returns the number of days in the month.
func (m MonthYear) Days() int {
	return m.First().AddDate(0, 1, -1).Day()
}

// YearString returns the four digit year used in paths and keys.
func (m MonthYear) YearString() string {
	return fmt.Sprintf("%04d", m.Year)
}

// MonthString returns the two digit month used in paths and keys.
func (m MonthYear) MonthString() string {
	return fmt.Sprintf("%02d", int(m.Month))
}

// String returns the month as "January 2022".
func (m MonthYear) String() string {
	return fmt.Sprintf("%s %d", m.Month, m.Year)
}

// Key returns the cache key of the month's appointments.
func (m MonthYear) Key() cache.Key {
	return cache.MustKey(FamilyAppointments, m.YearString(), m.MonthString())
}
