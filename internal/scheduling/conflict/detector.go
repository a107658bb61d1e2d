// Package conflict decides whether a candidate booking collides with a doctor's existing bookings.
package conflict

import (
	"fmt"

	apperrors "docslot/pkg/errors"
	"docslot/pkg/model"
)

// Candidate is the booking being requested.
type Candidate struct {
	DoctorID string
	Date     string
	Interval model.Interval
	Service  model.ServiceKind
}

// Detect returns the first existing booking that overlaps the candidate.
//
// Only bookings of the same doctor and date that still occupy their slot and are not
// conflict-exempt participate. Exempt candidates never conflict.
func Detect(candidate Candidate, existing []*model.Booking) (*model.Booking, bool) {
	if candidate.Service.ExemptFromConflicts() {
		return nil, false
	}

	for _, b := range existing {
		if b == nil || b.DoctorID != candidate.DoctorID || b.Date != candidate.Date {
			continue
		}
		if !b.Status.Occupies() || b.Service.ExemptFromConflicts() {
			continue
		}
		iv, err := b.Interval()
		if err != nil {
			continue
		}
		if iv.Overlaps(candidate.Interval) {
			return b, true
		}
	}
	return nil, false
}

// Check wraps Detect into a SlotConflict error carrying the blocking interval.
func Check(candidate Candidate, existing []*model.Booking) error {
	blocking, found := Detect(candidate, existing)
	if !found {
		return nil
	}
	return apperrors.SlotConflict(
		fmt.Sprintf("Requested time %s overlaps an existing booking (%s-%s)",
			candidate.Interval, blocking.StartTime, blocking.EndTime),
	).WithDetails(map[string]any{
		"doctor_id":  candidate.DoctorID,
		"date":       candidate.Date,
		"start_time": blocking.StartTime,
		"end_time":   blocking.EndTime,
	})
}
