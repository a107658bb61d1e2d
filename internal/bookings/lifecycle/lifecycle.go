// Package lifecycle is the booking state machine.
//
//	pending   -> confirmed   doctor
//	pending   -> cancelled   patient, doctor
//	confirmed -> completed   doctor, once the appointment has ended
//	confirmed -> cancelled   patient, doctor, before the appointment starts
//	confirmed -> no-show     doctor, once the appointment has started
//
// The system actor may perform any of these moves. Terminal states have no exits.
package lifecycle

import (
	"fmt"
	"slices"
	"time"

	apperrors "docslot/pkg/errors"
	"docslot/pkg/model"
)

type moment int

const (
	anytime moment = iota
	beforeStart
	afterStart
	afterEnd
)

type edge struct {
	actors []model.ActorRole
	when   moment
}

var (
	doctorOnly = []model.ActorRole{model.ActorDoctor, model.ActorSystem}
	anyParty   = []model.ActorRole{model.ActorPatient, model.ActorDoctor, model.ActorSystem}
)

var table = map[model.BookingStatus]map[model.BookingStatus]edge{
	model.StatusPending: {
		model.StatusConfirmed: {actors: doctorOnly},
		model.StatusCancelled: {actors: anyParty},
	},
	model.StatusConfirmed: {
		model.StatusCompleted: {actors: doctorOnly, when: afterEnd},
		model.StatusCancelled: {actors: anyParty, when: beforeStart},
		model.StatusNoShow:    {actors: doctorOnly, when: afterStart},
	},
}

// Targets lists the statuses reachable from status, in a stable order.
func Targets(status model.BookingStatus) []model.BookingStatus {
	var out []model.BookingStatus
	for _, to := range model.AllStatuses {
		if _, ok := table[status][to]; ok {
			out = append(out, to)
		}
	}
	return out
}

// CanTransition reports whether the edge exists, ignoring actor and time guards.
func CanTransition(from, to model.BookingStatus) bool {
	_, ok := table[from][to]
	return ok
}

// Transition applies one move and returns the updated copy. b is never modified.
// Guards on appointment time are evaluated at instant at, with the booking's date and clock
// times interpreted in loc.
func Transition(b *model.Booking, to model.BookingStatus, actor model.ActorRole, at time.Time, loc *time.Location) (*model.Booking, error) {
	from := b.Status
	if from.IsTerminal() {
		return nil, apperrors.InvalidTransition(string(from), string(to), "booking is already "+string(from))
	}

	e, ok := table[from][to]
	if !ok {
		return nil, apperrors.InvalidTransition(string(from), string(to), "transition is not allowed")
	}
	if !slices.Contains(e.actors, actor) {
		return nil, apperrors.InvalidTransition(string(from), string(to), fmt.Sprintf("actor %q may not perform it", actor))
	}
	if err := checkMoment(b, e.when, at, loc); err != nil {
		return nil, apperrors.InvalidTransition(string(from), string(to), err.Error())
	}

	next := *b
	next.Status = to
	next.UpdatedAt = at
	if b.UpdatedAt.After(at) {
		next.UpdatedAt = b.UpdatedAt
	}
	return &next, nil
}

func checkMoment(b *model.Booking, when moment, at time.Time, loc *time.Location) error {
	if when == anytime {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	iv, err := b.Interval()
	if err != nil {
		return fmt.Errorf("booking has an invalid time range: %v", err)
	}
	start, err := b.At(iv.Start, loc)
	if err != nil {
		return err
	}
	end, err := b.At(iv.End, loc)
	if err != nil {
		return err
	}

	switch when {
	case beforeStart:
		if !at.Before(start) {
			return fmt.Errorf("appointment started at %s", start.Format(time.RFC3339))
		}
	case afterStart:
		if at.Before(start) {
			return fmt.Errorf("appointment starts at %s", start.Format(time.RFC3339))
		}
	case afterEnd:
		if at.Before(end) {
			return fmt.Errorf("appointment ends at %s", end.Format(time.RFC3339))
		}
	}
	return nil
}
