package repository

import (
	"context"
	"errors"
	"fmt"

	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/infrastructure/repository/entity"
	"archie-core-shopify-ingestion/internal/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRecordStore implements RecordStore on a relational database
type GormRecordStore struct {
	db *gorm.DB
}

var _ ports.RecordStore = (*GormRecordStore)(nil)

// NewGormRecordStore creates a record store; call Migrate before first use
func NewGormRecordStore(db *gorm.DB) *GormRecordStore {
	return &GormRecordStore{db: db}
}

// Migrate creates or updates the record tables
func (s *GormRecordStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(entity.AllRecordModels()...); err != nil {
		return fmt.Errorf("failed to migrate record store: %w", err)
	}
	return nil
}

func upsertOn(columns []string) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}, {Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}
}

// UpsertCustomer inserts or updates a customer by (external_id, tenant_id)
func (s *GormRecordStore) UpsertCustomer(ctx context.Context, customer *domain.Customer) error {
	model := entity.CustomerModelFromDomain(customer)
	if err := s.db.WithContext(ctx).Clauses(upsertOn(entity.CustomerUpdateColumns)).Create(model).Error; err != nil {
		return fmt.Errorf("failed to upsert customer %s: %w", customer.ExternalID, err)
	}
	return nil
}

// UpsertProduct inserts or updates a product by (external_id, tenant_id)
func (s *GormRecordStore) UpsertProduct(ctx context.Context, product *domain.Product) error {
	model := entity.ProductModelFromDomain(product)
	if err := s.db.WithContext(ctx).Clauses(upsertOn(entity.ProductUpdateColumns)).Create(model).Error; err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", product.ExternalID, err)
	}
	return nil
}

// UpsertOrder upserts the order and replaces its line items and events in one transaction
func (s *GormRecordStore) UpsertOrder(ctx context.Context, order *domain.Order, items []domain.LineItem, events []domain.OrderEvent) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(upsertOn(entity.OrderUpdateColumns)).Create(entity.OrderModelFromDomain(order)).Error; err != nil {
			return fmt.Errorf("failed to upsert order: %w", err)
		}

		childFilter := "order_external_id = ? AND tenant_id = ?"
		if err := tx.Where(childFilter, order.ExternalID, order.TenantID).Delete(&entity.LineItemModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear line items: %w", err)
		}
		if err := tx.Where(childFilter, order.ExternalID, order.TenantID).Delete(&entity.OrderEventModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear order events: %w", err)
		}

		if len(items) > 0 {
			rows := make([]entity.LineItemModel, len(items))
			for i, li := range items {
				rows[i] = entity.LineItemModelFromDomain(li)
			}
			if err := tx.CreateInBatches(rows, 100).Error; err != nil {
				return fmt.Errorf("failed to insert line items: %w", err)
			}
		}
		if len(events) > 0 {
			rows := make([]entity.OrderEventModel, len(events))
			for i, e := range events {
				rows[i] = entity.OrderEventModelFromDomain(e)
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to insert order events: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert order %s: %w", order.ExternalID, err)
	}
	return nil
}

func modelFor(resource domain.ResourceType) (any, error) {
	switch resource {
	case domain.ResourceCustomers:
		return &entity.CustomerModel{}, nil
	case domain.ResourceProducts:
		return &entity.ProductModel{}, nil
	case domain.ResourceOrders:
		return &entity.OrderModel{}, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownResource, resource)
}

// Exists reports whether a record with the composite key is stored
func (s *GormRecordStore) Exists(ctx context.Context, resource domain.ResourceType, tenantID, externalID string) (bool, error) {
	model, err := modelFor(resource)
	if err != nil {
		return false, err
	}
	var count int64
	err = s.db.WithContext(ctx).Model(model).
		Where("external_id = ? AND tenant_id = ?", externalID, tenantID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", resource, err)
	}
	return count > 0, nil
}

// Delete removes a record; deleting an order also removes its children
func (s *GormRecordStore) Delete(ctx context.Context, resource domain.ResourceType, tenantID, externalID string) error {
	model, err := modelFor(resource)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if resource == domain.ResourceOrders {
			childFilter := "order_external_id = ? AND tenant_id = ?"
			if err := tx.Where(childFilter, externalID, tenantID).Delete(&entity.LineItemModel{}).Error; err != nil {
				return fmt.Errorf("failed to delete line items: %w", err)
			}
			if err := tx.Where(childFilter, externalID, tenantID).Delete(&entity.OrderEventModel{}).Error; err != nil {
				return fmt.Errorf("failed to delete order events: %w", err)
			}
		}
		if err := tx.Where("external_id = ? AND tenant_id = ?", externalID, tenantID).Delete(model).Error; err != nil {
			return fmt.Errorf("failed to delete %s: %w", resource, err)
		}
		return nil
	})
}

// GetCustomer returns nil, nil when absent
func (s *GormRecordStore) GetCustomer(ctx context.Context, tenantID, externalID string) (*domain.Customer, error) {
	var m entity.CustomerModel
	err := s.db.WithContext(ctx).Where("external_id = ? AND tenant_id = ?", externalID, tenantID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return m.ToDomain(), nil
}

// GetProduct returns nil, nil when absent
func (s *GormRecordStore) GetProduct(ctx context.Context, tenantID, externalID string) (*domain.Product, error) {
	var m entity.ProductModel
	err := s.db.WithContext(ctx).Where("external_id = ? AND tenant_id = ?", externalID, tenantID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return m.ToDomain(), nil
}

// GetOrder returns the order with its children, or nil, nil when absent
func (s *GormRecordStore) GetOrder(ctx context.Context, tenantID, externalID string) (*domain.Order, []domain.LineItem, []domain.OrderEvent, error) {
	var m entity.OrderModel
	db := s.db.WithContext(ctx)
	err := db.Where("external_id = ? AND tenant_id = ?", externalID, tenantID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil, nil
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get order: %w", err)
	}

	var itemRows []entity.LineItemModel
	if err := db.Where("order_external_id = ? AND tenant_id = ?", externalID, tenantID).Order("id").Find(&itemRows).Error; err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get line items: %w", err)
	}
	var eventRows []entity.OrderEventModel
	if err := db.Where("order_external_id = ? AND tenant_id = ?", externalID, tenantID).Order("id").Find(&eventRows).Error; err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get order events: %w", err)
	}

	items := make([]domain.LineItem, len(itemRows))
	for i := range itemRows {
		items[i] = itemRows[i].ToDomain()
	}
	events := make([]domain.OrderEvent, len(eventRows))
	for i := range eventRows {
		events[i] = eventRows[i].ToDomain()
	}
	return m.ToDomain(), items, events, nil
}

// CountByTenant returns the number of stored records of a resource for a tenant
func (s *GormRecordStore) CountByTenant(ctx context.Context, resource domain.ResourceType, tenantID string) (int64, error) {
	model, err := modelFor(resource)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", resource, err)
	}
	return count, nil
}
