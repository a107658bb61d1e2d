package model

import "time"

type Weekday string

const (
	Sunday    Weekday = "Sunday"
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
)

var AllWeekdays = []Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// AvailabilityRule declares one working-hours range either for a recurring weekday or for a
// specific date. Exactly one of Weekday and Date is set. End before Start denotes an overnight range.
type AvailabilityRule struct {
	Weekday Weekday `json:"weekday,omitempty" bson:"weekday,omitempty" validate:"omitempty,oneof=Sunday Monday Tuesday Wednesday Thursday Friday Saturday"`
	Date    string  `json:"date,omitempty" bson:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Start   string  `json:"start" bson:"start" validate:"required,clock"`
	End     string  `json:"end" bson:"end" validate:"required,clock"`
}

type Doctor struct {
	ID                   string             `json:"id,omitempty" bson:"_id,omitempty"`
	Name                 string             `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Email                string             `json:"email,omitempty" bson:"email,omitempty" validate:"omitempty,email"`
	Phone                string             `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,e164"`
	Specialty            string             `json:"specialty" bson:"specialty" validate:"required,min=2,max=100"`
	Hospital             string             `json:"hospital,omitempty" bson:"hospital,omitempty" validate:"omitempty,max=200"`
	Location             string             `json:"location,omitempty" bson:"location,omitempty" validate:"omitempty,max=200"`
	ConsultationFee      int64              `json:"consultation_fee" bson:"consultation_fee" validate:"min=0"`
	IsAvailable          bool               `json:"is_available" bson:"is_available"`
	IsActive             bool               `json:"is_active" bson:"is_active"`
	IsEmergencyAvailable bool               `json:"is_emergency_available" bson:"is_emergency_available"`
	Availability         []AvailabilityRule `json:"availability" bson:"availability" validate:"required,min=1,max=64,dive"`
	AvailabilityText     string             `json:"availability_text,omitempty" bson:"availability_text,omitempty" validate:"omitempty,max=200"`
	SlotGranularityMin   int                `json:"slot_granularity_min,omitempty" bson:"slot_granularity_min,omitempty" validate:"omitempty,min=5,max=240"`
	TimeZone             string             `json:"time_zone,omitempty" bson:"time_zone,omitempty" validate:"omitempty,timezone"`
	CreatedAt            time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at" bson:"updated_at"`
}

// AcceptsBookings reports whether the doctor may receive new bookings at all.
func (d *Doctor) AcceptsBookings() bool {
	return d.IsActive && d.IsAvailable
}

// Loc resolves the doctor's IANA zone, falling back to the given default.
func (d *Doctor) Loc(fallback *time.Location) *time.Location {
	if d.TimeZone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(d.TimeZone)
	if err != nil {
		return fallback
	}
	return loc
}

type DoctorUpdate struct {
	Name                 string              `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Email                string              `json:"email,omitempty" validate:"omitempty,email"`
	Phone                string              `json:"phone,omitempty" validate:"omitempty,e164"`
	Specialty            string              `json:"specialty,omitempty" validate:"omitempty,min=2,max=100"`
	Hospital             string              `json:"hospital,omitempty" validate:"omitempty,max=200"`
	Location             string              `json:"location,omitempty" validate:"omitempty,max=200"`
	ConsultationFee      *int64              `json:"consultation_fee,omitempty" validate:"omitempty,min=0"`
	IsAvailable          *bool               `json:"is_available,omitempty"`
	IsActive             *bool               `json:"is_active,omitempty"`
	IsEmergencyAvailable *bool               `json:"is_emergency_available,omitempty"`
	Availability         *[]AvailabilityRule `json:"availability,omitempty" validate:"omitempty,min=1,max=64,dive"`
	AvailabilityText     string              `json:"availability_text,omitempty" validate:"omitempty,max=200"`
	SlotGranularityMin   *int                `json:"slot_granularity_min,omitempty" validate:"omitempty,min=5,max=240"`
	TimeZone             string              `json:"time_zone,omitempty" validate:"omitempty,timezone"`
}
