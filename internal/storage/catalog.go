package storage

import (
	"context"

	sq "github.com/Masterminds/squirrel"
)

// Catalog names a name/description table referenced by habits.
type Catalog struct {
	table  string
	refCol string // habits column pointing at the table
}

var (
	Places  = Catalog{table: "places", refCol: "place_id"}
	Actions = Catalog{table: "actions", refCol: "action_id"}
)

func (c Catalog) String() string { return c.table }

func (q *Q) CreateCatalogItem(ctx context.Context, c Catalog, it CatalogItem) (int64, error) {
	return q.insertID(ctx, q.sb.Insert(c.table).
		Columns("name", "description").
		Values(it.Name, it.Description))
}

func (q *Q) GetCatalogItem(ctx context.Context, c Catalog, id int64) (CatalogItem, error) {
	var it CatalogItem
	err := q.get(ctx, &it, q.sb.Select("id", "name", "description").From(c.table).Where(sq.Eq{"id": id}))
	return it, err
}

// ListCatalogItems returns one page ordered by id and the total row count.
func (q *Q) ListCatalogItems(ctx context.Context, c Catalog, p Page) ([]CatalogItem, int, error) {
	total, err := q.count(ctx, q.sb.Select("COUNT(*)").From(c.table))
	if err != nil {
		return nil, 0, err
	}
	out := []CatalogItem{}
	err = q.selectAll(ctx, &out, paged(q.sb.Select("id", "name", "description").From(c.table).OrderBy("id"), p))
	return out, total, err
}

func (q *Q) UpdateCatalogItem(ctx context.Context, c Catalog, it CatalogItem) error {
	return q.execOne(ctx, q.sb.Update(c.table).
		Set("name", it.Name).
		Set("description", it.Description).
		Where(sq.Eq{"id": it.ID}))
}

// DeleteCatalogItem removes the row. ErrProtected while any habit references it.
func (q *Q) DeleteCatalogItem(ctx context.Context, c Catalog, id int64) error {
	n, err := q.CountCatalogRefs(ctx, c, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrProtected
	}
	return q.execOne(ctx, q.sb.Delete(c.table).Where(sq.Eq{"id": id}))
}

// CountCatalogRefs counts habits referencing the row.
func (q *Q) CountCatalogRefs(ctx context.Context, c Catalog, id int64) (int, error) {
	return q.count(ctx, q.sb.Select("COUNT(*)").From("habits").Where(sq.Eq{c.refCol: id}))
}
