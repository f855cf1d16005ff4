package httpapi

import (
	"net/http"
	"time"

	"habitbot/internal/habits"
	"habitbot/internal/storage"
)

type habitDTO struct {
	ID            int64     `json:"id"`
	Owner         *int64    `json:"owner"`
	Place         int64     `json:"place"`
	Action        int64     `json:"action"`
	IsPleasure    bool      `json:"is_pleasure"`
	PleasureHabit *int64    `json:"pleasure_habit"`
	Periodicity   int       `json:"periodicity"`
	Reward        *string   `json:"reward"`
	ExecutionTime int       `json:"execution_time"`
	IsPublic      bool      `json:"is_public"`
	TimeToPerform time.Time `json:"time_to_perform"`
}

func toHabitDTO(h storage.Habit) habitDTO {
	return habitDTO{
		ID:            h.ID,
		Owner:         h.OwnerID,
		Place:         h.PlaceID,
		Action:        h.ActionID,
		IsPleasure:    h.IsPleasure,
		PleasureHabit: h.PleasureHabitID,
		Periodicity:   h.Periodicity,
		Reward:        h.Reward,
		ExecutionTime: h.ExecutionTime,
		IsPublic:      h.IsPublic,
		TimeToPerform: h.TimeToPerform.UTC(),
	}
}

type catalogDTO struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func toCatalogDTO(it storage.CatalogItem) catalogDTO {
	return catalogDTO{ID: it.ID, Name: it.Name, Description: it.Description}
}

func mapSlice[T, U any](in []T, f func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}

func writePage[T, U any](a *API, w http.ResponseWriter, r *http.Request, list func(storage.Page) ([]T, int, error), conv func(T) U) {
	pr, err := a.pager.parse(r)
	if err != nil {
		writeErr(w, r, a.log, err)
		return
	}
	items, total, err := list(pr.window())
	if err != nil {
		writeErr(w, r, a.log, err)
		return
	}
	body, err := paginate(r, pr, total, mapSlice(items, conv))
	if err != nil {
		writeErr(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *API) listHabits(w http.ResponseWriter, r *http.Request, _ int64) {
	c := callerFrom(r)
	writePage(a, w, r, func(p storage.Page) ([]storage.Habit, int, error) {
		return a.habits.List(r.Context(), c, p)
	}, toHabitDTO)
}

func (a *API) listPublicHabits(w http.ResponseWriter, r *http.Request, _ int64) {
	writePage(a, w, r, func(p storage.Page) ([]storage.Habit, int, error) {
		return a.habits.ListPublic(r.Context(), p)
	}, toHabitDTO)
}

func (a *API) createHabit(w http.ResponseWriter, r *http.Request, _ int64) {
	var in habits.HabitInput
	if err := decode(w, r, &in); err != nil {
		writeErr(w, r, a.log, err)
		return
	}
	h, err := a.habits.Create(r.Context(), callerFrom(r), in)
	if err != nil {
		writeErr(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHabitDTO(h))
}

func (a *API) getHabit(w http.ResponseWriter, r *http.Request, id int64) {
	h, err := a.habits.Get(r.Context(), callerFrom(r), id)
	if err != nil {
		writeErr(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toHabitDTO(h))
}

func (a *API) updateHabit(partial bool) routeFunc {
	return func(w http.ResponseWriter, r *http.Request, id int64) {
		var in habits.HabitInput
		if err := decode(w, r, &in); err != nil {
			writeErr(w, r, a.log, err)
			return
		}
		h, err := a.habits.Update(r.Context(), callerFrom(r), id, in, partial)
		if err != nil {
			writeErr(w, r, a.log, err)
			return
		}
		writeJSON(w, http.StatusOK, toHabitDTO(h))
	}
}

func (a *API) deleteHabit(w http.ResponseWriter, r *http.Request, id int64) {
	if err := a.habits.Delete(r.Context(), callerFrom(r), id); err != nil {
		writeErr(w, r, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type catalogHandlers struct {
	api *API
	svc *habits.CatalogService
}

func (h catalogHandlers) list(w http.ResponseWriter, r *http.Request, _ int64) {
	writePage(h.api, w, r, func(p storage.Page) ([]storage.CatalogItem, int, error) {
		return h.svc.List(r.Context(), p)
	}, toCatalogDTO)
}

func (h catalogHandlers) create(w http.ResponseWriter, r *http.Request, _ int64) {
	var in habits.CatalogInput
	if err := decode(w, r, &in); err != nil {
		writeErr(w, r, h.api.log, err)
		return
	}
	it, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeErr(w, r, h.api.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCatalogDTO(it))
}

func (h catalogHandlers) get(w http.ResponseWriter, r *http.Request, id int64) {
	it, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeErr(w, r, h.api.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toCatalogDTO(it))
}

func (h catalogHandlers) update(partial bool) routeFunc {
	return func(w http.ResponseWriter, r *http.Request, id int64) {
		var in habits.CatalogInput
		if err := decode(w, r, &in); err != nil {
			writeErr(w, r, h.api.log, err)
			return
		}
		it, err := h.svc.Update(r.Context(), id, in, partial)
		if err != nil {
			writeErr(w, r, h.api.log, err)
			return
		}
		writeJSON(w, http.StatusOK, toCatalogDTO(it))
	}
}

func (h catalogHandlers) delete(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeErr(w, r, h.api.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
