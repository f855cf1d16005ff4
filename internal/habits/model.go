package habits

import (
	"strings"
	"unicode/utf8"

	"habitbot/internal/storage"
)

// Defaults applied to fields a create or full update leaves out.
const (
	DefaultPeriodicity   = 1
	DefaultExecutionTime = 60
)

// Caller is the authenticated user a request acts for.
type Caller struct {
	UserID  int64
	IsStaff bool
}

// CanAccess reports whether c may read or modify h: its owner or staff.
func (c Caller) CanAccess(h storage.Habit) bool {
	if c.IsStaff {
		return true
	}
	return h.OwnerID != nil && *h.OwnerID == c.UserID
}

// HabitInput is the writable part of a habit as it arrives in a request.
type HabitInput struct {
	Place         Optional[int64]  `json:"place"`
	Action        Optional[int64]  `json:"action"`
	IsPleasure    Optional[bool]   `json:"is_pleasure"`
	PleasureHabit Optional[int64]  `json:"pleasure_habit"`
	Periodicity   Optional[int]    `json:"periodicity"`
	Reward        Optional[string] `json:"reward"`
	ExecutionTime Optional[int]    `json:"execution_time"`
	IsPublic      Optional[bool]   `json:"is_public"`
}

// Fields is the candidate state validated by the rule engine: a new habit,
// or a stored habit with an update merged in. ID is zero for a new habit.
type Fields struct {
	ID              int64
	PlaceID         int64
	ActionID        int64
	IsPleasure      bool
	PleasureHabitID *int64
	Periodicity     int
	Reward          *string
	ExecutionTime   int
	IsPublic        bool
}

func defaultFields(id int64) Fields {
	return Fields{ID: id, Periodicity: DefaultPeriodicity, ExecutionTime: DefaultExecutionTime}
}

// FieldsOf returns the candidate view of a stored habit.
func FieldsOf(h storage.Habit) Fields {
	return Fields{
		ID:              h.ID,
		PlaceID:         h.PlaceID,
		ActionID:        h.ActionID,
		IsPleasure:      h.IsPleasure,
		PleasureHabitID: h.PleasureHabitID,
		Periodicity:     h.Periodicity,
		Reward:          h.Reward,
		ExecutionTime:   h.ExecutionTime,
		IsPublic:        h.IsPublic,
	}
}

// applyTo copies the mutable fields onto h. Owner and time_to_perform are kept.
func (f Fields) applyTo(h storage.Habit) storage.Habit {
	h.PlaceID = f.PlaceID
	h.ActionID = f.ActionID
	h.IsPleasure = f.IsPleasure
	h.PleasureHabitID = f.PleasureHabitID
	h.Periodicity = f.Periodicity
	h.Reward = f.Reward
	h.ExecutionTime = f.ExecutionTime
	h.IsPublic = f.IsPublic
	return h
}

func (f Fields) hasReward() bool { return f.Reward != nil }
func (f Fields) hasLink() bool   { return f.PleasureHabitID != nil }

// merge overlays in onto base. With requireAll, place and action must be
// present in the input. Field-level problems are recorded in ve.
func merge(base Fields, in HabitInput, requireAll bool, ve *ValidationError) Fields {
	f := base

	requiredID := func(name string, o Optional[int64], dst *int64) {
		switch {
		case !o.Set:
			if requireAll {
				ve.add(name, msgRequired)
			}
		case o.Null:
			ve.add(name, msgNotNull)
		default:
			*dst = o.V
		}
	}
	requiredID("place", in.Place, &f.PlaceID)
	requiredID("action", in.Action, &f.ActionID)

	setBool := func(name string, o Optional[bool], dst *bool) {
		if !o.Set {
			return
		}
		if o.Null {
			ve.add(name, msgNotNull)
			return
		}
		*dst = o.V
	}
	setBool("is_pleasure", in.IsPleasure, &f.IsPleasure)
	setBool("is_public", in.IsPublic, &f.IsPublic)

	positive := func(name string, o Optional[int], dst *int) {
		switch {
		case !o.Set:
		case o.Null:
			ve.add(name, msgNotNull)
		case o.V < 1:
			ve.add(name, msgMinOne)
		default:
			*dst = o.V
		}
	}
	positive("periodicity", in.Periodicity, &f.Periodicity)
	positive("execution_time", in.ExecutionTime, &f.ExecutionTime)

	if in.PleasureHabit.Set {
		f.PleasureHabitID = nil
		if !in.PleasureHabit.Null {
			id := in.PleasureHabit.V
			f.PleasureHabitID = &id
		}
	}

	if in.Reward.Set {
		f.Reward = nil
		if r, ok := presentText(in.Reward); ok {
			if utf8.RuneCountInString(r) > maxTextLength {
				ve.add("reward", msgMaxLen)
			} else {
				f.Reward = &r
			}
		}
	}
	return f
}

// presentText returns the trimmed value of o and whether it counts as present.
func presentText(o Optional[string]) (string, bool) {
	if !o.Has() {
		return "", false
	}
	s := strings.TrimSpace(o.V)
	return s, s != ""
}
