package habits

import (
	"context"
	"unicode/utf8"

	"habitbot/internal/storage"
	logx "habitbot/pkg/logx"
)

// CatalogInput is the writable part of a place or action.
type CatalogInput struct {
	Name        Optional[string] `json:"name"`
	Description Optional[string] `json:"description"`
}

// CatalogService manages one name/description table (places or actions).
type CatalogService struct {
	store *storage.Store
	kind  storage.Catalog
	log   logx.Logger
}

func NewCatalogService(store *storage.Store, kind storage.Catalog, log logx.Logger) *CatalogService {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &CatalogService{store: store, kind: kind, log: log.With(logx.String("catalog", kind.String()))}
}

func mergeCatalog(base storage.CatalogItem, in CatalogInput, requireAll bool) (storage.CatalogItem, error) {
	ve := &ValidationError{}
	it := base
	switch {
	case !in.Name.Set:
		if requireAll {
			ve.add("name", msgRequired)
		}
	case in.Name.Null:
		ve.add("name", msgNotNull)
	default:
		name, ok := presentText(in.Name)
		switch {
		case !ok:
			ve.add("name", msgNotBlank)
		case utf8.RuneCountInString(name) > maxTextLength:
			ve.add("name", msgMaxLen)
		default:
			it.Name = name
		}
	}
	if in.Description.Set {
		it.Description = nil
		if d, ok := presentText(in.Description); ok {
			it.Description = &d
		}
	}
	return it, ve.orNil()
}

func (s *CatalogService) Create(ctx context.Context, in CatalogInput) (storage.CatalogItem, error) {
	it, err := mergeCatalog(storage.CatalogItem{}, in, true)
	if err != nil {
		return storage.CatalogItem{}, err
	}
	it.ID, err = s.store.Q(ctx).CreateCatalogItem(ctx, s.kind, it)
	if err != nil {
		return storage.CatalogItem{}, translate(err)
	}
	s.log.Info("catalog item created", logx.Int64("id", it.ID), logx.String("name", it.Name))
	return it, nil
}

func (s *CatalogService) Get(ctx context.Context, id int64) (storage.CatalogItem, error) {
	it, err := s.store.Q(ctx).GetCatalogItem(ctx, s.kind, id)
	return it, translate(err)
}

func (s *CatalogService) List(ctx context.Context, p storage.Page) ([]storage.CatalogItem, int, error) {
	return s.store.Q(ctx).ListCatalogItems(ctx, s.kind, p)
}

// Update replaces (partial=false) or patches item id.
func (s *CatalogService) Update(ctx context.Context, id int64, in CatalogInput, partial bool) (storage.CatalogItem, error) {
	var it storage.CatalogItem
	err := s.store.WithTx(ctx, func(ctx context.Context, q *storage.Q) error {
		stored, err := q.GetCatalogItem(ctx, s.kind, id)
		if err != nil {
			return translate(err)
		}
		base := stored
		if !partial {
			base = storage.CatalogItem{ID: id}
		}
		it, err = mergeCatalog(base, in, !partial)
		if err != nil {
			return err
		}
		return translate(q.UpdateCatalogItem(ctx, s.kind, it))
	})
	if err != nil {
		return storage.CatalogItem{}, err
	}
	s.log.Info("catalog item updated", logx.Int64("id", id), logx.Bool("partial", partial))
	return it, nil
}

// Delete removes item id. ErrProtected while any habit references it.
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	if err := translate(s.store.Q(ctx).DeleteCatalogItem(ctx, s.kind, id)); err != nil {
		return err
	}
	s.log.Info("catalog item deleted", logx.Int64("id", id))
	return nil
}
