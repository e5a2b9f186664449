package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/easybuy/api/internal/domain"
	"github.com/easybuy/api/internal/repositories"
)

const (
	orderEventCreated         = "order.created"
	orderEventApprovalChanged = "order.approval.changed"
	orderEventDelivered       = "order.delivered"

	orderIDPrefix = "ord_"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderForbidden indicates the caller may not act on this order.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderInvalidState indicates an invalid lifecycle transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates the product was concurrently sold or a
	// conflicting approval decision was attempted.
	ErrOrderConflict = errors.New("order: conflict")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Checkout    repositories.CheckoutStore
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      Logger
}

type orderService struct {
	orders   repositories.OrderRepository
	checkout repositories.CheckoutStore
	clock    func() time.Time
	newID    func() string
	events   OrderEventPublisher
	logger   Logger
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Checkout == nil {
		return nil, errors.New("order service: checkout store is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}

	return &orderService{
		orders:   deps.Orders,
		checkout: deps.Checkout,
		clock:    clock,
		newID:    idGen,
		events:   deps.Events,
		logger:   logger,
	}, nil
}

// Checkout validates the buyer's input and delegates the availability check,
// the sold transition, and the order creation to one atomic store operation.
func (s *orderService) Checkout(ctx context.Context, cmd CheckoutCommand) (domain.Order, error) {
	if strings.TrimSpace(cmd.BuyerID) == "" {
		return domain.Order{}, fmt.Errorf("%w: buyer id is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(cmd.ProductID) == "" {
		return domain.Order{}, fmt.Errorf("%w: product id is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(cmd.ShippingAddress) == "" {
		return domain.Order{}, fmt.Errorf("%w: shipping address is required", ErrOrderInvalidInput)
	}
	method, ok := domain.ParsePaymentMethod(cmd.PaymentMethod)
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, cmd.PaymentMethod)
	}

	order, err := s.checkout.PlaceOrder(ctx, repositories.CheckoutRequest{
		OrderID:         orderIDPrefix + s.newID(),
		ProductID:       strings.TrimSpace(cmd.ProductID),
		BuyerID:         cmd.BuyerID,
		PaymentMethod:   method,
		ShippingAddress: strings.TrimSpace(cmd.ShippingAddress),
	})
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventCreated,
		OrderID:        order.ID,
		ProductID:      order.ProductID,
		BuyerID:        order.BuyerID,
		SellerID:       order.SellerID,
		OrderStatus:    string(order.OrderStatus),
		ApprovalStatus: string(order.ApprovalStatus),
		ActorID:        cmd.BuyerID,
		OccurredAt:     s.now(),
	})
	return order, nil
}

// EditPendingOrder lets the buyer adjust shipping address or payment method
// while the order still awaits approval. A method change re-derives the
// payment status.
func (s *orderService) EditPendingOrder(ctx context.Context, cmd EditOrderCommand) (domain.Order, error) {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if cmd.ShippingAddress == nil && cmd.PaymentMethod == nil {
		return domain.Order{}, fmt.Errorf("%w: no editable fields provided", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	if order.BuyerID != cmd.BuyerID {
		return domain.Order{}, fmt.Errorf("%w: only the buyer may edit the order", ErrOrderForbidden)
	}
	if order.ApprovalStatus != domain.ApprovalPending {
		return domain.Order{}, fmt.Errorf("%w: order %s is no longer editable after the approval decision", ErrOrderForbidden, order.ID)
	}

	if cmd.ShippingAddress != nil {
		address := strings.TrimSpace(*cmd.ShippingAddress)
		if address == "" {
			return domain.Order{}, fmt.Errorf("%w: shipping address cannot be empty", ErrOrderInvalidInput)
		}
		order.ShippingAddress = address
	}
	if cmd.PaymentMethod != nil {
		method, ok := domain.ParsePaymentMethod(*cmd.PaymentMethod)
		if !ok {
			return domain.Order{}, fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, *cmd.PaymentMethod)
		}
		order.PaymentMethod = method
		order.PaymentStatus = domain.PaymentStatusFor(method)
	}
	order.UpdatedAt = s.now()

	if err := s.orders.Update(ctx, order); err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

// SetApproval records the admin decision. Re-applying the already stored
// decision is a no-op; reversing a settled decision is a conflict.
func (s *orderService) SetApproval(ctx context.Context, cmd ApprovalCommand) (domain.Order, error) {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	decision, ok := domain.ParseApprovalDecision(cmd.Decision)
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: decision must be Approved or Rejected", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	if order.ApprovalStatus == decision {
		return order, nil
	}
	if order.ApprovalStatus != domain.ApprovalPending {
		return domain.Order{}, fmt.Errorf("%w: order %s already %s", ErrOrderConflict, order.ID, order.ApprovalStatus)
	}

	now := s.now()
	order.ApprovalStatus = decision
	switch decision {
	case domain.ApprovalApproved:
		order.OrderStatus = domain.OrderConfirmed
		order.PaymentStatus = domain.PaymentCompleted
	case domain.ApprovalRejected:
		// The product stays sold; rejected orders do not restock it.
		order.OrderStatus = domain.OrderCancelled
	}
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventApprovalChanged,
		OrderID:        order.ID,
		ProductID:      order.ProductID,
		BuyerID:        order.BuyerID,
		SellerID:       order.SellerID,
		OrderStatus:    string(order.OrderStatus),
		ApprovalStatus: string(order.ApprovalStatus),
		ActorID:        cmd.ActorID,
		OccurredAt:     now,
	})
	return order, nil
}

// SetPaymentStatus lets an admin override the settlement state directly, for
// example to record an out-of-band COD payment. Writing the stored value again
// is a no-op.
func (s *orderService) SetPaymentStatus(ctx context.Context, cmd PaymentStatusCommand) (domain.Order, error) {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	status, ok := domain.ParsePaymentStatus(cmd.Status)
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: payment status must be Pending or Completed", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	if order.PaymentStatus == status {
		return order, nil
	}

	order.PaymentStatus = status
	order.UpdatedAt = s.now()
	if err := s.orders.Update(ctx, order); err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

// MarkDelivered completes an order on behalf of its seller or an admin,
// stamping the delivery time and settling the payment.
func (s *orderService) MarkDelivered(ctx context.Context, cmd DeliverCommand) (domain.Order, error) {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	isAdmin := strings.EqualFold(cmd.ActorRole, string(domain.RoleAdmin))
	if !isAdmin && order.SellerID != cmd.ActorID {
		return domain.Order{}, fmt.Errorf("%w: only the seller or an admin may mark delivery", ErrOrderForbidden)
	}
	if order.OrderStatus == domain.OrderDelivered {
		return order, nil
	}
	// Delivery may be recorded ahead of the approval decision, for example
	// when a COD order is handed over in person. Only cancelled orders are
	// out of reach.
	if order.OrderStatus == domain.OrderCancelled {
		return domain.Order{}, fmt.Errorf("%w: order %s is cancelled", ErrOrderInvalidState, order.ID)
	}

	now := s.now()
	order.OrderStatus = domain.OrderDelivered
	order.PaymentStatus = domain.PaymentCompleted
	order.DeliveredAt = &now
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventDelivered,
		OrderID:        order.ID,
		ProductID:      order.ProductID,
		BuyerID:        order.BuyerID,
		SellerID:       order.SellerID,
		OrderStatus:    string(order.OrderStatus),
		ApprovalStatus: string(order.ApprovalStatus),
		ActorID:        cmd.ActorID,
		OccurredAt:     now,
	})
	return order, nil
}

// ListOrders returns the caller's orders, or every order for admins asking
// for the full view. Results are newest first with ID as tie-break.
func (s *orderService) ListOrders(ctx context.Context, query OrderListQuery) ([]domain.Order, error) {
	filter := repositories.OrderListFilter{Limit: query.Limit}

	switch {
	case query.All:
		if !strings.EqualFold(query.Role, string(domain.RoleAdmin)) {
			return nil, fmt.Errorf("%w: only admins may list all orders", ErrOrderForbidden)
		}
	case strings.EqualFold(query.Role, string(domain.RoleSeller)):
		filter.SellerID = query.UserID
	default:
		filter.BuyerID = query.UserID
	}

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}

	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
	return orders, nil
}

// GetOrder returns the order when the caller is its buyer, its seller, or an admin.
func (s *orderService) GetOrder(ctx context.Context, orderID string, reader OrderReadContext) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	isAdmin := strings.EqualFold(reader.Role, string(domain.RoleAdmin))
	if !isAdmin && order.BuyerID != reader.UserID && order.SellerID != reader.UserID {
		return domain.Order{}, fmt.Errorf("%w: not a participant of order %s", ErrOrderForbidden, orderID)
	}
	return order, nil
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) now() time.Time {
	return s.clock().UTC()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}
