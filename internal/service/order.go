package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/metrics"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

// OrderEventPublisher announces order changes to asynchronous consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, evt model.OrderEvent) error
}

// ProductCache drops cached catalog reads once stock has moved.
type ProductCache interface {
	InvalidateCache(ctx context.Context, ids ...uuid.UUID)
}

var (
	activeStatuses = []model.OrderStatus{model.OrderStatusPending, model.OrderStatusProcessing, model.OrderStatusShipped}
	pastStatuses   = []model.OrderStatus{model.OrderStatusDelivered, model.OrderStatusCancelled}
)

type OrderService struct {
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	publisher   OrderEventPublisher
	cache       ProductCache
	log         *slog.Logger
}

// NewOrderService wires the order engine. publisher and cache may be nil.
func NewOrderService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	publisher OrderEventPublisher,
	cache ProductCache,
	log *slog.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		publisher:   publisher,
		cache:       cache,
		log:         log,
	}
}

// Create checks out the requested items, or the caller's cart when none are
// given. Prices are snapshotted from the catalog; stock is decremented and the
// order stored atomically; the cart is emptied afterwards.
func (s *OrderService) Create(ctx context.Context, p Principal, req dto.CreateOrderRequest) (*model.Order, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	requested := req.Items
	if len(requested) == 0 {
		cart, err := s.cartRepo.GetOrCreate(ctx, p.UserID)
		if err != nil {
			return nil, fmt.Errorf("get cart: %w", err)
		}
		for _, it := range cart.Items {
			requested = append(requested, dto.OrderItemRequest{ProductID: it.ProductID, Quantity: it.Quantity})
		}
	}
	if len(requested) == 0 {
		return nil, ErrEmptyOrder
	}

	items, err := s.snapshot(ctx, requested)
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			metrics.StockRejections.Inc()
		}
		return nil, err
	}

	order := &model.Order{
		UserID:          p.UserID,
		DeliveryAddress: req.DeliveryAddress,
		ReceiverPhone:   req.ReceiverPhone,
		Items:           items,
		TotalAmount:     model.OrderTotal(items),
		OrderStatus:     model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
	}
	if err := s.orderRepo.Place(ctx, order); err != nil {
		if errors.Is(err, repository.ErrStockConflict) {
			metrics.StockRejections.Inc()
			return nil, fmt.Errorf("place order: %w: %w", ErrInsufficientStock, err)
		}
		return nil, fmt.Errorf("place order: %w", err)
	}
	metrics.OrdersCreated.WithLabelValues("checkout").Inc()
	if s.cache != nil {
		s.cache.InvalidateCache(ctx, productIDs(order.Items)...)
	}

	if err := s.cartRepo.Clear(ctx, p.UserID); err != nil {
		s.log.Warn("clear cart after checkout", "user_id", p.UserID, "order_id", order.ID, "error", err)
	}
	s.publish(ctx, model.OrderEventCreated, order)
	return order, nil
}

// snapshot validates the requested lines against the catalog and captures the
// current unit price of each. Stock is checked per product across all lines.
func (s *OrderService) snapshot(ctx context.Context, requested []dto.OrderItemRequest) ([]model.OrderItem, error) {
	needed := make(map[uuid.UUID]int, len(requested))
	for _, r := range requested {
		if r.Quantity <= 0 {
			return nil, validationError("quantity must be greater than zero")
		}
		needed[r.ProductID] += r.Quantity
	}

	products := make(map[uuid.UUID]*model.Product, len(needed))
	items := make([]model.OrderItem, 0, len(requested))
	for _, r := range requested {
		product, ok := products[r.ProductID]
		if !ok {
			var err error
			product, err = s.productRepo.GetByID(ctx, r.ProductID)
			if err != nil {
				return nil, fmt.Errorf("get product: %w", err)
			}
			if product == nil {
				return nil, fmt.Errorf("%w: %s", ErrProductNotFound, r.ProductID)
			}
			if product.Status != model.ProductStatusActive {
				return nil, fmt.Errorf("%w: %s", ErrProductInactive, product.Name)
			}
			if needed[r.ProductID] > product.StockQuantity {
				return nil, fmt.Errorf("%w: %s has %d left, %d requested",
					ErrInsufficientStock, product.Name, product.StockQuantity, needed[r.ProductID])
			}
			products[r.ProductID] = product
		}
		items = append(items, model.OrderItem{
			ProductID:       r.ProductID,
			Quantity:        r.Quantity,
			PriceAtPurchase: product.Price,
		})
	}
	return items, nil
}

// Repeat places a new pending order with the stored items and total of one
// of the caller's earlier orders. Stock and prices are not re-checked.
func (s *OrderService) Repeat(ctx context.Context, p Principal, orderID uuid.UUID) (*model.Order, error) {
	original, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if original == nil || original.UserID != p.UserID {
		return nil, ErrOrderNotFound
	}

	order := &model.Order{
		UserID:          p.UserID,
		DeliveryAddress: original.DeliveryAddress,
		ReceiverPhone:   original.ReceiverPhone,
		Items:           append([]model.OrderItem(nil), original.Items...),
		TotalAmount:     original.TotalAmount,
		OrderStatus:     model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	metrics.OrdersCreated.WithLabelValues("repeat").Inc()
	s.publish(ctx, model.OrderEventRepeated, order)
	return order, nil
}

// Get returns an order visible to p. Other users' orders read as missing.
func (s *OrderService) Get(ctx context.Context, p Principal, orderID uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil || p.RequireSelfOrAdmin(order.UserID) != nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) List(ctx context.Context, p Principal) ([]model.Order, error) {
	orders, err := s.orderRepo.ListByUserID(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// AdminList returns every order matching req, sorted by order date. The
// status filter accepts a single status or the groups "active" and "past".
func (s *OrderService) AdminList(ctx context.Context, p Principal, req dto.ListOrdersRequest) ([]model.Order, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	filter, err := orderFilter(req)
	if err != nil {
		return nil, err
	}
	orders, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func orderFilter(req dto.ListOrdersRequest) (model.OrderFilter, error) {
	var f model.OrderFilter
	switch req.Status {
	case "":
	case "active":
		f.Statuses = activeStatuses
	case "past":
		f.Statuses = pastStatuses
	default:
		status := model.OrderStatus(req.Status)
		if !status.Valid() {
			return f, validationError("unknown order status " + req.Status)
		}
		f.Statuses = []model.OrderStatus{status}
	}

	if req.UserID != "" {
		id, err := uuid.Parse(req.UserID)
		if err != nil {
			return f, validationError("invalid user_id")
		}
		f.UserID = &id
	}
	if req.From != "" {
		from, err := time.Parse(time.DateOnly, req.From)
		if err != nil {
			return f, validationError("invalid from date")
		}
		f.From = &from
	}
	if req.To != "" {
		to, err := time.Parse(time.DateOnly, req.To)
		if err != nil {
			return f, validationError("invalid to date")
		}
		// the to date is inclusive
		to = to.AddDate(0, 0, 1)
		f.To = &to
	}
	f.Ascending = req.Sort == "asc"
	return f, nil
}

// AdminCreate stores an order on behalf of a user with admin-supplied
// prices and statuses. Stock is not touched. TotalAmount overrides the
// computed total when set.
func (s *OrderService) AdminCreate(ctx context.Context, p Principal, req dto.AdminCreateOrderRequest) (*model.Order, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	items, err := s.pricedItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		UserID:          req.UserID,
		DeliveryAddress: req.DeliveryAddress,
		ReceiverPhone:   req.ReceiverPhone,
		Items:           items,
		TotalAmount:     model.OrderTotal(items),
		OrderStatus:     model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
	}
	if req.OrderStatus != "" {
		order.OrderStatus = req.OrderStatus
	}
	if req.PaymentStatus != "" {
		order.PaymentStatus = req.PaymentStatus
	}
	if req.TotalAmount != nil {
		if req.TotalAmount.IsNegative() {
			return nil, validationError("total_amount must not be negative")
		}
		if err := checkMoney("total_amount", *req.TotalAmount); err != nil {
			return nil, err
		}
		order.TotalAmount = *req.TotalAmount
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	metrics.OrdersCreated.WithLabelValues("admin").Inc()
	s.publish(ctx, model.OrderEventCreated, order)
	return order, nil
}

// AdminUpdate applies a partial update. Status changes must follow the order
// and payment state machines. Replaced items are priced as supplied and the
// total is recomputed from them.
func (s *OrderService) AdminUpdate(ctx context.Context, p Principal, orderID uuid.UUID, req dto.UpdateOrderRequest) (*model.Order, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	if req.OrderStatus != nil {
		if !order.OrderStatus.CanTransitionTo(*req.OrderStatus) {
			return nil, fmt.Errorf("%w: order %s -> %s", ErrInvalidTransition, order.OrderStatus, *req.OrderStatus)
		}
		order.OrderStatus = *req.OrderStatus
	}
	if req.PaymentStatus != nil {
		if !order.PaymentStatus.CanTransitionTo(*req.PaymentStatus) {
			return nil, fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, order.PaymentStatus, *req.PaymentStatus)
		}
		order.PaymentStatus = *req.PaymentStatus
	}
	if req.DeliveryAddress != nil {
		order.DeliveryAddress = *req.DeliveryAddress
	}
	if req.ReceiverPhone != nil {
		order.ReceiverPhone = *req.ReceiverPhone
	}

	replaceItems := req.Items != nil
	if replaceItems {
		if len(req.Items) == 0 {
			return nil, ErrEmptyOrder
		}
		items, err := s.pricedItems(ctx, req.Items)
		if err != nil {
			return nil, err
		}
		order.Items = items
		order.TotalAmount = model.OrderTotal(items)
	}

	if err := s.orderRepo.Update(ctx, order, replaceItems); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("update order: %w", err)
	}
	s.publish(ctx, model.OrderEventUpdated, order)
	return order, nil
}

func (s *OrderService) AdminDelete(ctx context.Context, p Principal, orderID uuid.UUID) error {
	if err := p.RequireAdmin(); err != nil {
		return err
	}
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if err := s.orderRepo.Delete(ctx, orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("delete order: %w", err)
	}
	s.publish(ctx, model.OrderEventDeleted, order)
	return nil
}

// pricedItems checks that every product exists and keeps the supplied prices.
func (s *OrderService) pricedItems(ctx context.Context, reqItems []dto.PricedOrderItemRequest) ([]model.OrderItem, error) {
	items := make([]model.OrderItem, 0, len(reqItems))
	for _, it := range reqItems {
		if it.Quantity <= 0 {
			return nil, validationError("quantity must be greater than zero")
		}
		if it.PriceAtPurchase.IsNegative() {
			return nil, validationError("price_at_purchase must not be negative")
		}
		if err := checkMoney("price_at_purchase", it.PriceAtPurchase); err != nil {
			return nil, err
		}
		product, err := s.productRepo.GetByID(ctx, it.ProductID)
		if err != nil {
			return nil, fmt.Errorf("get product: %w", err)
		}
		if product == nil {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
		}
		items = append(items, model.OrderItem{
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase,
		})
	}
	return items, nil
}

func (s *OrderService) publish(ctx context.Context, typ model.OrderEventType, order *model.Order) {
	if s.publisher == nil {
		return
	}
	evt := model.OrderEvent{
		ID:         ulid.Make().String(),
		Type:       typ,
		OrderID:    order.ID,
		UserID:     order.UserID,
		ProductIDs: productIDs(order.Items),
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.PublishOrderEvent(ctx, evt); err != nil {
		s.log.Warn("publish order event", "type", typ, "order_id", order.ID, "error", err)
	}
}

// productIDs returns the distinct products of items in first-seen order.
func productIDs(items []model.OrderItem) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}
