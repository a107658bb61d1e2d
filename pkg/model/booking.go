package model

import (
	"time"
)

type ServiceKind string

const (
	ServiceConsultation ServiceKind = "consultation"
	ServiceVoice        ServiceKind = "voice"
	ServiceChat         ServiceKind = "chat"
	ServiceVisit        ServiceKind = "visit"
)

func (s ServiceKind) IsValid() bool {
	switch s {
	case ServiceConsultation, ServiceVoice, ServiceChat, ServiceVisit:
		return true
	}
	return false
}

// ExemptFromConflicts is true for asynchronous services that have a response window instead of a live slot.
func (s ServiceKind) ExemptFromConflicts() bool {
	return s == ServiceChat
}

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusNoShow    BookingStatus = "no-show"
)

var (
	AllStatuses    = []BookingStatus{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow}
	ActiveStatuses = []BookingStatus{StatusPending, StatusConfirmed}
)

func (s BookingStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Occupies reports whether a booking in this status holds its slot.
func (s BookingStatus) Occupies() bool {
	return s == StatusPending || s == StatusConfirmed
}

type ActorRole string

const (
	ActorPatient ActorRole = "patient"
	ActorDoctor  ActorRole = "doctor"
	ActorSystem  ActorRole = "system"
)

type Booking struct {
	ID           string        `json:"id,omitempty" bson:"_id,omitempty"`
	DoctorID     string        `json:"doctor_id" bson:"doctor_id"`
	DoctorName   string        `json:"doctor_name,omitempty" bson:"doctor_name,omitempty"`
	PatientID    string        `json:"patient_id" bson:"patient_id"`
	PatientName  string        `json:"patient_name,omitempty" bson:"patient_name,omitempty"`
	PatientEmail string        `json:"patient_email,omitempty" bson:"patient_email,omitempty"`
	PatientPhone string        `json:"patient_phone,omitempty" bson:"patient_phone,omitempty"`
	Date         string        `json:"date" bson:"date"`
	StartTime    string        `json:"start_time" bson:"start_time"`
	EndTime      string        `json:"end_time" bson:"end_time"`
	Service      ServiceKind   `json:"service" bson:"service"`
	Status       BookingStatus `json:"status" bson:"status"`
	Price        int64         `json:"price" bson:"price"`
	PatientNotes string        `json:"patient_notes,omitempty" bson:"patient_notes,omitempty"`
	DoctorNotes  string        `json:"doctor_notes,omitempty" bson:"doctor_notes,omitempty"`
	CreatedAt    time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" bson:"updated_at"`
}

// Interval returns the booking's [start, end) range in minutes of its date.
func (b *Booking) Interval() (Interval, error) {
	start, err := ParseClock(b.StartTime)
	if err != nil {
		return Interval{}, err
	}
	end, err := ParseClock(b.EndTime)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: start, End: end}, nil
}

// At resolves the wall-clock instant minutes after midnight of the booking date in loc.
func (b *Booking) At(minutes int, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(b.Date)
	if err != nil {
		return time.Time{}, err
	}
	midnight := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return midnight.Add(time.Duration(minutes) * time.Minute), nil
}

// BookingRequest is the input of the requestBooking operation.
type BookingRequest struct {
	DoctorID     string      `json:"doctor_id" validate:"required,max=64"`
	PatientID    string      `json:"patient_id" validate:"required,max=64"`
	PatientName  string      `json:"patient_name,omitempty" validate:"omitempty,max=100"`
	PatientEmail string      `json:"patient_email,omitempty" validate:"omitempty,email"`
	PatientPhone string      `json:"patient_phone,omitempty" validate:"omitempty,e164"`
	Date         string      `json:"date" validate:"required,datetime=2006-01-02"`
	Time         string      `json:"time" validate:"required,datetime=15:04"`
	Service      ServiceKind `json:"service" validate:"required,oneof=consultation voice chat visit"`
	Notes        string      `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// TransitionRequest is the input of the transitionBooking operation.
type TransitionRequest struct {
	Status    BookingStatus `json:"status" validate:"required,oneof=pending confirmed completed cancelled no-show"`
	ActorRole ActorRole     `json:"actor_role" validate:"required,oneof=patient doctor system"`
	Notes     string        `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// DoctorStats summarises a doctor's bookings for the dashboard.
type DoctorStats struct {
	DoctorID string                  `json:"doctor_id"`
	Total    int64                   `json:"total"`
	ByStatus map[BookingStatus]int64 `json:"by_status"`
	Earnings int64                   `json:"earnings"`
}
