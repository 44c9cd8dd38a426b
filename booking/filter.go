package booking

import (
	"slices"
	"time"
)

// AvailableAppointments keeps the appointments a user can act on: slots
// later today or after that are either free or held by userID.
func AvailableAppointments(m AppointmentDateMap, userID int, now time.Time) AppointmentDateMap {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	out := make(AppointmentDateMap, len(m))
	for day, appts := range m {
		var kept []Appointment
		for _, a := range appts {
			if a.DateTime.Before(today) {
				continue
			}
			if a.Reserved() && a.UserID != userID {
				continue
			}
			kept = append(kept, a)
		}
		if len(kept) > 0 {
			out[day] = kept
		}
	}
	return out
}

// UserAppointments returns the appointments held by userID in date order.
func UserAppointments(m AppointmentDateMap, userID int) []Appointment {
	var out []Appointment
	for _, appts := range m {
		for _, a := range appts {
			if userID != 0 && a.UserID == userID {
				out = append(out, a)
			}
		}
	}
	slices.SortFunc(out, func(a, b Appointment) int { return a.DateTime.Compare(b.DateTime) })
	return out
}

// StaffByTreatment keeps the staff offering treatment.
func StaffByTreatment(staff []Staff, treatment string) []Staff {
	var out []Staff
	for _, s := range staff {
		if slices.Contains(s.TreatmentNames, treatment) {
			out = append(out, s)
		}
	}
	return out
}

// withUser returns a copy of m in which appointment id is held by userID.
// A zero userID frees the slot. The second result is false when id is not
// in m.
func withUser(m AppointmentDateMap, id, userID int) (AppointmentDateMap, bool) {
	out := make(AppointmentDateMap, len(m))
	found := false
	for day, appts := range m {
		cp := slices.Clone(appts)
		for i := range cp {
			if cp[i].ID == id {
				cp[i].UserID = userID
				found = true
			}
		}
		out[day] = cp
	}
	return out, found
}
