package services

import (
	"context"
	"fmt"

	"delivery-pricing/internal/database"
	"delivery-pricing/internal/logger"
	"delivery-pricing/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	menuItemsQuery = `
		SELECT id, name, category_id, base_price, is_active, add_on_ids
		FROM menu_items
		ORDER BY name, id
	`
	sizeOptionsQuery = `
		SELECT id, menu_item_id, name, price_modifier, is_active
		FROM size_options
		ORDER BY menu_item_id, name, id
	`
	addOnsQuery = `
		SELECT id, name, price, is_active, category_ids
		FROM add_ons
		ORDER BY name, id
	`
)

// CatalogService загружает каталог меню для расчета заказов.
type CatalogService struct {
	db  *database.DB
	log *logger.Logger
}

// NewCatalogService создаёт сервис каталога.
func NewCatalogService(db *database.DB, log *logger.Logger) *CatalogService {
	return &CatalogService{db: db, log: log}
}

// Catalog возвращает снимок каталога.
func (s *CatalogService) Catalog(ctx context.Context) (*models.Catalog, error) {
	return s.loadCatalog(ctx, s.db)
}

// loadCatalog читает позиции, размеры и добавки тремя запросами.
func (s *CatalogService) loadCatalog(ctx context.Context, q queryer) (*models.Catalog, error) {
	items, err := s.loadMenuItems(ctx, q)
	if err != nil {
		return nil, err
	}

	index := make(map[uuid.UUID]int, len(items))
	for i := range items {
		index[items[i].ID] = i
	}

	sizes, err := s.loadSizeOptions(ctx, q)
	if err != nil {
		return nil, err
	}
	for _, size := range sizes {
		if i, ok := index[size.MenuItemID]; ok {
			items[i].Sizes = append(items[i].Sizes, size)
		}
	}

	addOns, err := s.loadAddOns(ctx, q)
	if err != nil {
		return nil, err
	}

	return models.NewCatalog(items, addOns), nil
}

func (s *CatalogService) loadMenuItems(ctx context.Context, q queryer) ([]models.MenuItem, error) {
	rows, err := q.QueryContext(ctx, menuItemsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu items: %w", err)
	}
	defer rows.Close()

	var items []models.MenuItem
	for rows.Next() {
		var item models.MenuItem
		if err := rows.Scan(&item.ID, &item.Name, &item.CategoryID, &item.BasePrice, &item.Active, pq.Array(&item.AddOnIDs)); err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate menu items: %w", err)
	}
	return items, nil
}

func (s *CatalogService) loadSizeOptions(ctx context.Context, q queryer) ([]models.SizeOption, error) {
	rows, err := q.QueryContext(ctx, sizeOptionsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to load size options: %w", err)
	}
	defer rows.Close()

	var sizes []models.SizeOption
	for rows.Next() {
		var size models.SizeOption
		if err := rows.Scan(&size.ID, &size.MenuItemID, &size.Name, &size.PriceModifier, &size.Active); err != nil {
			return nil, fmt.Errorf("failed to scan size option: %w", err)
		}
		sizes = append(sizes, size)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate size options: %w", err)
	}
	return sizes, nil
}

func (s *CatalogService) loadAddOns(ctx context.Context, q queryer) ([]models.AddOn, error) {
	rows, err := q.QueryContext(ctx, addOnsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to load add-ons: %w", err)
	}
	defer rows.Close()

	var addOns []models.AddOn
	for rows.Next() {
		var addOn models.AddOn
		if err := rows.Scan(&addOn.ID, &addOn.Name, &addOn.Price, &addOn.Active, pq.Array(&addOn.CategoryIDs)); err != nil {
			return nil, fmt.Errorf("failed to scan add-on: %w", err)
		}
		addOns = append(addOns, addOn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate add-ons: %w", err)
	}
	return addOns, nil
}
