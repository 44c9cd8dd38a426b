package booking

import "time"

// Treatment is a bookable service.
type Treatment struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	DurationInMinutes int    `json:"durationInMinutes"`
	Description       string `json:"description"`
	ImageURL          string `json:"imageUrl,omitempty"`
}

// Staff is a member of staff and the treatments they give.
type Staff struct {
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	TreatmentNames []string `json:"treatmentNames"`
	ImageURL       string   `json:"imageUrl,omitempty"`
}

// Appointment is a bookable slot. UserID is zero while the slot is free.
type Appointment struct {
	ID            int       `json:"id"`
	DateTime      time.Time `json:"dateTime"`
	TreatmentName string    `json:"treatmentName"`
	UserID        int       `json:"userId,omitempty"`
}

// Reserved reports whether someone holds the slot.
func (a Appointment) Reserved() bool {
	return a.UserID != 0
}

// AppointmentDateMap groups one month of appointments by day of month.
type AppointmentDateMap map[int][]Appointment

// Find returns the appointment with id.
func (m AppointmentDateMap) Find(id int) (Appointment, bool) {
	for _, day := range m {
		for _, a := range day {
			if a.ID == id {
				return a, true
			}
		}
	}
	return Appointment{}, false
}

// User is the signed-in customer.
type User struct {
	ID      int    `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Token   string `json:"token,omitempty"`
}

// PatchOp is one JSON patch operation.
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}
