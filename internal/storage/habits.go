package storage

import (
	"context"

	sq "github.com/Masterminds/squirrel"
)

var habitColumns = []string{
	"id", "owner_id", "place_id", "action_id", "is_pleasure", "pleasure_habit_id",
	"periodicity", "reward", "execution_time", "is_public", "time_to_perform",
}

func qualified(prefix string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + "." + c
	}
	return out
}

func (q *Q) CreateHabit(ctx context.Context, h Habit) (int64, error) {
	return q.insertID(ctx, q.sb.Insert("habits").
		Columns(habitColumns[1:]...).
		Values(h.OwnerID, h.PlaceID, h.ActionID, h.IsPleasure, h.PleasureHabitID,
			h.Periodicity, h.Reward, h.ExecutionTime, h.IsPublic, h.TimeToPerform.UTC()))
}

func (q *Q) GetHabit(ctx context.Context, id int64) (Habit, error) {
	var h Habit
	err := q.get(ctx, &h, q.sb.Select(habitColumns...).From("habits").Where(sq.Eq{"id": id}))
	return h, err
}

// GetHabitDetail loads a habit with its place and action names and the
// owner's chat id.
func (q *Q) GetHabitDetail(ctx context.Context, id int64) (HabitDetail, error) {
	var d HabitDetail
	cols := append(qualified("h", habitColumns),
		"p.name AS place_name", "a.name AS action_name", "u.telegram_chat_id")
	err := q.get(ctx, &d, q.sb.Select(cols...).
		From("habits h").
		Join("places p ON p.id = h.place_id").
		Join("actions a ON a.id = h.action_id").
		LeftJoin("users u ON u.id = h.owner_id").
		Where(sq.Eq{"h.id": id}))
	return d, err
}

func (q *Q) listHabits(ctx context.Context, where sq.Sqlizer, p Page) ([]Habit, int, error) {
	total, err := q.count(ctx, q.sb.Select("COUNT(*)").From("habits").Where(where))
	if err != nil {
		return nil, 0, err
	}
	out := []Habit{}
	err = q.selectAll(ctx, &out, paged(q.sb.Select(habitColumns...).From("habits").Where(where).OrderBy("id"), p))
	return out, total, err
}

// ListHabitsByOwner returns the owner's habits ordered by id.
func (q *Q) ListHabitsByOwner(ctx context.Context, ownerID int64, p Page) ([]Habit, int, error) {
	return q.listHabits(ctx, sq.Eq{"owner_id": ownerID}, p)
}

func (q *Q) ListPublicHabits(ctx context.Context, p Page) ([]Habit, int, error) {
	return q.listHabits(ctx, sq.Eq{"is_public": true}, p)
}

// UpdateHabit writes every mutable column. Owner and time_to_perform are
// fixed at creation.
func (q *Q) UpdateHabit(ctx context.Context, h Habit) error {
	return q.execOne(ctx, q.sb.Update("habits").
		SetMap(map[string]any{
			"place_id":          h.PlaceID,
			"action_id":         h.ActionID,
			"is_pleasure":       h.IsPleasure,
			"pleasure_habit_id": h.PleasureHabitID,
			"periodicity":       h.Periodicity,
			"reward":            h.Reward,
			"execution_time":    h.ExecutionTime,
			"is_public":         h.IsPublic,
		}).
		Where(sq.Eq{"id": h.ID}))
}

// CountHabitLinks counts habits whose pleasure_habit points at id.
func (q *Q) CountHabitLinks(ctx context.Context, id int64) (int, error) {
	return q.count(ctx, q.sb.Select("COUNT(*)").From("habits").Where(sq.Eq{"pleasure_habit_id": id}))
}

// DeleteHabit removes the habit. ErrProtected while other habits link to it.
func (q *Q) DeleteHabit(ctx context.Context, id int64) error {
	n, err := q.CountHabitLinks(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrProtected
	}
	return q.execOne(ctx, q.sb.Delete("habits").Where(sq.Eq{"id": id}))
}
