package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aura-dev/aura/internal/flow"
	"github.com/aura-dev/aura/internal/models"
	"github.com/aura-dev/aura/internal/store"
)

const (
	// CustomRequestContactWindow is how long the team has to answer a request for a missing item.
	CustomRequestContactWindow = 7 * 24 * time.Hour
	// PickupWindow is how long a reserved stock item is held.
	PickupWindow = 3 * 24 * time.Hour
)

var (
	// ErrOutOfStock is returned when a sale would take stock below zero.
	ErrOutOfStock = errors.New("item out of stock")
	// ErrInvalidItem is returned for inventory items without a name or with negative values.
	ErrInvalidItem = errors.New("invalid inventory item")
)

var _ flow.InventoryPort = (*SalesService)(nil)

// SalesService manages the inventory and records sale requests and sales.
type SalesService struct {
	inventory store.InventoryRepo
	sales     store.SalesRepo
	now       Clock
}

func NewSalesService(inventory store.InventoryRepo, sales store.SalesRepo) *SalesService {
	return &SalesService{inventory: inventory, sales: sales, now: time.Now}
}

func (s *SalesService) SetClock(now Clock) { s.now = now }

func (s *SalesService) ListAvailableItems(ctx context.Context) ([]models.InventoryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := s.inventory.ListInventory()
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}

// RegisterSaleRequest stores req and sets the deadline that matches its type.
func (s *SalesService) RegisterSaleRequest(ctx context.Context, req models.SaleRequest) (models.SaleRequestReceipt, error) {
	if err := ctx.Err(); err != nil {
		return models.SaleRequestReceipt{}, err
	}
	now := s.now()
	if req.ID == "" {
		req.ID = newID()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	switch req.Type {
	case models.SaleRequestCustom:
		deadline := req.CreatedAt.Add(CustomRequestContactWindow)
		req.ContactBy = &deadline
		if req.Status == "" {
			req.Status = models.SaleRequestPending
		}
	case models.SaleRequestStock:
		deadline := req.CreatedAt.Add(PickupWindow)
		req.PickupDeadline = &deadline
		if req.Status == "" {
			req.Status = models.SaleRequestConfirmed
		}
	default:
		return models.SaleRequestReceipt{}, fmt.Errorf("unknown sale request type %q", req.Type)
	}
	if err := s.sales.SaveSaleRequest(&req); err != nil {
		return models.SaleRequestReceipt{}, fmt.Errorf("save sale request: %w", err)
	}
	slog.Info("SalesService.RegisterSaleRequest: registered", "requestID", req.ID, "type", req.Type, "userID", req.UserID, "item", req.ItemName)
	return models.SaleRequestReceipt{
		RequestID:      req.ID,
		ContactBy:      req.ContactBy,
		PickupDeadline: req.PickupDeadline,
	}, nil
}

// RegisterSaleTransaction takes one unit of item from stock and stores the sale.
func (s *SalesService) RegisterSaleTransaction(ctx context.Context, item models.InventoryItem, contact string) (*models.SaleRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ok, err := s.inventory.DecrementStock(item.ID, 1)
	if err != nil {
		return nil, fmt.Errorf("decrement stock: %w", err)
	}
	if !ok {
		return nil, ErrOutOfStock
	}
	rec := &models.SaleRecord{
		ID:        newID(),
		ItemID:    item.ID,
		ItemName:  item.Name,
		Quantity:  1,
		UnitPrice: item.UnitPrice,
		Total:     item.UnitPrice,
		Contact:   contact,
		CreatedAt: s.now(),
	}
	if err := s.sales.SaveSaleRecord(rec); err != nil {
		return nil, fmt.Errorf("save sale record: %w", err)
	}
	slog.Info("SalesService.RegisterSaleTransaction: sold", "itemID", item.ID, "total", rec.Total)
	return rec, nil
}

// UpsertItem validates and stores an inventory item, assigning an id when missing.
func (s *SalesService) UpsertItem(item *models.InventoryItem) error {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" || item.UnitPrice < 0 || item.StockQuantity < 0 || item.MinimumStock < 0 {
		return ErrInvalidItem
	}
	if item.ID == "" {
		item.ID = newID()
	}
	item.UpdatedAt = s.now()
	if err := s.inventory.UpsertInventoryItem(item); err != nil {
		return fmt.Errorf("upsert inventory item: %w", err)
	}
	return nil
}

func (s *SalesService) ListItems() ([]models.InventoryItem, error) {
	return s.inventory.ListInventory()
}

func (s *SalesService) ListRequests() ([]models.SaleRequest, error) {
	return s.sales.ListSaleRequests()
}

func (s *SalesService) ListSales() ([]models.SaleRecord, error) {
	return s.sales.ListSaleRecords()
}
