package habits

import (
	"context"
	"errors"
	"fmt"

	"habitbot/internal/storage"
)

// Limits enforced by the object rules.
const (
	MaxExecutionTime = 120 // seconds
	MaxPeriodicity   = 7   // days
)

// Rule messages, in evaluation order.
const (
	MsgRewardOrLink        = "habit must have a reward or a linked habit"
	MsgRewardAndLink       = "habit cannot have both a reward and a linked habit"
	MsgExecutionTime       = "execution time must not exceed 120 seconds"
	MsgLinkNotPleasurable  = "only pleasurable habits can be linked"
	MsgPleasureHasExtras   = "a pleasurable habit cannot have a reward or a linked habit"
	MsgPeriodicity         = "habit must be performed at least once every 7 days"
	MsgCannotBecomePleased = "habit has a reward or a linked habit, so it cannot become pleasurable"
	MsgRewardBlocksLink    = "habit has a reward, it cannot have a linked habit"
	MsgLinkBlocksReward    = "habit has a linked habit, it cannot have a reward"
)

// HabitLookup dereferences a linked habit.
type HabitLookup interface {
	GetHabit(ctx context.Context, id int64) (storage.Habit, error)
}

// Lookup is what full validation needs: habits plus the place and action catalogs.
// *storage.Q satisfies it.
type Lookup interface {
	HabitLookup
	GetCatalogItem(ctx context.Context, c storage.Catalog, id int64) (storage.CatalogItem, error)
}

// Violations lists broken object rules in evaluation order. Empty means accepted.
type Violations []string

type rule struct {
	name     string
	msg      string
	violated func(ctx context.Context, f Fields, l HabitLookup) (bool, error)
}

var objectRules = []rule{
	{
		name: "reward_or_link",
		msg:  MsgRewardOrLink,
		violated: func(_ context.Context, f Fields, _ HabitLookup) (bool, error) {
			return !f.IsPleasure && !f.hasReward() && !f.hasLink(), nil
		},
	},
	{
		name: "mutual_exclusion",
		msg:  MsgRewardAndLink,
		violated: func(_ context.Context, f Fields, _ HabitLookup) (bool, error) {
			return f.hasReward() && f.hasLink(), nil
		},
	},
	{
		name: "execution_time_bound",
		msg:  MsgExecutionTime,
		violated: func(_ context.Context, f Fields, _ HabitLookup) (bool, error) {
			return f.ExecutionTime > MaxExecutionTime, nil
		},
	},
	{
		name:     "linked_must_be_pleasurable",
		msg:      MsgLinkNotPleasurable,
		violated: linkNotPleasurable,
	},
	{
		name: "pleasure_has_no_extras",
		msg:  MsgPleasureHasExtras,
		violated: func(_ context.Context, f Fields, _ HabitLookup) (bool, error) {
			return f.IsPleasure && (f.hasReward() || f.hasLink()), nil
		},
	},
	{
		name: "periodicity_bound",
		msg:  MsgPeriodicity,
		violated: func(_ context.Context, f Fields, _ HabitLookup) (bool, error) {
			return f.Periodicity > MaxPeriodicity, nil
		},
	},
}

func linkNotPleasurable(ctx context.Context, f Fields, l HabitLookup) (bool, error) {
	if !f.hasLink() {
		return false, nil
	}
	id := *f.PleasureHabitID
	// a habit linking itself is judged by its candidate state
	if f.ID != 0 && id == f.ID {
		return !f.IsPleasure, nil
	}
	linked, err := l.GetHabit(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// reported as a field error before the object rules run
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load linked habit %d: %w", id, err)
	}
	return !linked.IsPleasure, nil
}

// CheckRules evaluates every object rule against f and returns all violations.
// The error is non-nil only when a lookup fails.
func CheckRules(ctx context.Context, f Fields, l HabitLookup) (Violations, error) {
	var out Violations
	for _, r := range objectRules {
		bad, err := r.violated(ctx, f, l)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.name, err)
		}
		if bad {
			out = append(out, r.msg)
		}
	}
	return out, nil
}

// CheckPatch evaluates the update rules that compare the incoming data with
// the stored habit.
func CheckPatch(stored storage.Habit, in HabitInput) Violations {
	var out Violations
	storedReward := stored.Reward != nil
	storedLink := stored.PleasureHabitID != nil

	if in.IsPleasure.Has() && in.IsPleasure.V && (storedReward || storedLink) {
		out = append(out, MsgCannotBecomePleased)
	}
	if storedReward && in.PleasureHabit.Has() {
		out = append(out, MsgRewardBlocksLink)
	}
	if _, ok := presentText(in.Reward); ok && storedLink {
		out = append(out, MsgLinkBlocksReward)
	}
	return out
}

// checkRefs verifies that the referenced place, action and linked habit exist.
func checkRefs(ctx context.Context, l Lookup, f Fields, ve *ValidationError) error {
	catalog := func(name string, c storage.Catalog, id int64) error {
		if len(ve.Fields[name]) > 0 {
			return nil
		}
		_, err := l.GetCatalogItem(ctx, c, id)
		if errors.Is(err, storage.ErrNotFound) {
			ve.add(name, msgNoObject(id))
			return nil
		}
		return err
	}
	if err := catalog("place", storage.Places, f.PlaceID); err != nil {
		return err
	}
	if err := catalog("action", storage.Actions, f.ActionID); err != nil {
		return err
	}

	if f.hasLink() && *f.PleasureHabitID != f.ID {
		_, err := l.GetHabit(ctx, *f.PleasureHabitID)
		if errors.Is(err, storage.ErrNotFound) {
			ve.add("pleasure_habit", msgNoObject(*f.PleasureHabitID))
			return nil
		}
		return err
	}
	return nil
}

// validate builds the candidate state from base and in and runs every check.
// stored is nil on create. Field errors stop evaluation before the object
// rules; patch and object violations are reported together.
func validate(ctx context.Context, l Lookup, base Fields, in HabitInput, requireAll bool, stored *storage.Habit) (Fields, error) {
	ve := &ValidationError{}
	f := merge(base, in, requireAll, ve)
	if err := checkRefs(ctx, l, f, ve); err != nil {
		return f, err
	}
	if len(ve.Fields) > 0 {
		return f, ve
	}

	if stored != nil {
		ve.NonField = append(ve.NonField, CheckPatch(*stored, in)...)
	}
	v, err := CheckRules(ctx, f, l)
	if err != nil {
		return f, err
	}
	ve.NonField = append(ve.NonField, v...)
	return f, ve.orNil()
}
