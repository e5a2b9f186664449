package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/easybuy/api/internal/domain"
	"github.com/easybuy/api/internal/repositories"
)

var testTime = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

func newTestOrderService(t *testing.T, deps OrderServiceDeps) OrderService {
	t.Helper()
	if deps.Clock == nil {
		deps.Clock = fixedClock(testTime)
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = sequentialIDs("TEST01")
	}
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("NewOrderService error: %v", err)
	}
	return svc
}

func TestOrderService_Checkout_Success(t *testing.T) {
	store := &stubCheckoutStore{
		placeOrderFn: func(ctx context.Context, req repositories.CheckoutRequest) (domain.Order, error) {
			return domain.Order{
				ID:              req.OrderID,
				ProductID:       req.ProductID,
				BuyerID:         req.BuyerID,
				SellerID:        "usr_seller",
				Price:           4500,
				PaymentMethod:   req.PaymentMethod,
				ShippingAddress: req.ShippingAddress,
				PaymentStatus:   domain.PaymentStatusFor(req.PaymentMethod),
				OrderStatus:     domain.OrderPending,
				ApprovalStatus:  domain.ApprovalPending,
				CreatedAt:       testTime,
				UpdatedAt:       testTime,
			}, nil
		},
	}
	publisher := &capturingPublisher{}
	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:   &stubOrderRepository{},
		Checkout: store,
		Events:   publisher,
	})

	order, err := svc.Checkout(context.Background(), CheckoutCommand{
		BuyerID:         "usr_buyer",
		ProductID:       "prd_1",
		PaymentMethod:   "Visa",
		ShippingAddress: "  12 Hill Road, Pune  ",
	})
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}

	if order.ID != "ord_TEST01" {
		t.Fatalf("expected generated id ord_TEST01, got %q", order.ID)
	}
	if order.PaymentStatus != domain.PaymentCompleted {
		t.Fatalf("expected card payment completed, got %q", order.PaymentStatus)
	}
	if order.OrderStatus != domain.OrderPending || order.ApprovalStatus != domain.ApprovalPending {
		t.Fatalf("expected pending order awaiting approval, got %q/%q", order.OrderStatus, order.ApprovalStatus)
	}
	if len(store.requests) != 1 {
		t.Fatalf("expected one store call, got %d", len(store.requests))
	}
	if store.requests[0].ShippingAddress != "12 Hill Road, Pune" {
		t.Fatalf("expected trimmed address, got %q", store.requests[0].ShippingAddress)
	}

	events := publisher.captured()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].Type != "order.created" || events[0].OrderID != order.ID {
		t.Fatalf("unexpected event %+v", events[0])
	}
}

func TestOrderService_Checkout_CashOnDeliveryStaysPending(t *testing.T) {
	store := &stubCheckoutStore{
		placeOrderFn: func(ctx context.Context, req repositories.CheckoutRequest) (domain.Order, error) {
			return domain.Order{
				ID:            req.OrderID,
				PaymentMethod: req.PaymentMethod,
				PaymentStatus: domain.PaymentStatusFor(req.PaymentMethod),
			}, nil
		},
	}
	svc := newTestOrderService(t, OrderServiceDeps{Orders: &stubOrderRepository{}, Checkout: store})

	order, err := svc.Checkout(context.Background(), CheckoutCommand{
		BuyerID:         "usr_buyer",
		ProductID:       "prd_1",
		PaymentMethod:   "COD",
		ShippingAddress: "12 Hill Road",
	})
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}
	if order.PaymentStatus != domain.PaymentPending {
		t.Fatalf("expected cash on delivery to stay pending, got %q", order.PaymentStatus)
	}
}

func TestOrderService_Checkout_InvalidInput(t *testing.T) {
	svc := newTestOrderService(t, OrderServiceDeps{Orders: &stubOrderRepository{}, Checkout: &stubCheckoutStore{}})

	cases := []struct {
		name string
		cmd  CheckoutCommand
	}{
		{name: "missing buyer", cmd: CheckoutCommand{ProductID: "prd_1", PaymentMethod: "COD", ShippingAddress: "a"}},
		{name: "missing product", cmd: CheckoutCommand{BuyerID: "usr_1", PaymentMethod: "COD", ShippingAddress: "a"}},
		{name: "missing address", cmd: CheckoutCommand{BuyerID: "usr_1", ProductID: "prd_1", PaymentMethod: "COD"}},
		{name: "unknown method", cmd: CheckoutCommand{BuyerID: "usr_1", ProductID: "prd_1", PaymentMethod: "Bitcoin", ShippingAddress: "a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Checkout(context.Background(), tc.cmd); !errors.Is(err, ErrOrderInvalidInput) {
				t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
			}
		})
	}
}

func TestOrderService_Checkout_SoldProductConflicts(t *testing.T) {
	store := &stubCheckoutStore{
		placeOrderFn: func(ctx context.Context, req repositories.CheckoutRequest) (domain.Order, error) {
			return domain.Order{}, conflictErr("product prd_1 is no longer available")
		},
	}
	svc := newTestOrderService(t, OrderServiceDeps{Orders: &stubOrderRepository{}, Checkout: store})

	_, err := svc.Checkout(context.Background(), CheckoutCommand{
		BuyerID:         "usr_buyer",
		ProductID:       "prd_1",
		PaymentMethod:   "COD",
		ShippingAddress: "12 Hill Road",
	})
	if !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected ErrOrderConflict, got %v", err)
	}
}

func TestOrderService_Checkout_ConcurrentBuyersSingleWinner(t *testing.T) {
	product := domain.Product{
		ID:       "prd_1",
		Price:    999,
		Status:   domain.ProductAvailable,
		SellerID: "usr_seller",
	}
	store := newMemoryCheckoutStore(fixedClock(testTime), product)
	ids := make(chan string, 2)
	ids <- "AAAA"
	ids <- "BBBB"
	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:      &stubOrderRepository{},
		Checkout:    store,
		IDGenerator: func() string { return <-ids },
	})

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, buyer := range []string{"usr_alice", "usr_bob"} {
		wg.Add(1)
		go func(slot int, buyerID string) {
			defer wg.Done()
			_, results[slot] = svc.Checkout(context.Background(), CheckoutCommand{
				BuyerID:         buyerID,
				ProductID:       "prd_1",
				PaymentMethod:   "COD",
				ShippingAddress: "12 Hill Road",
			})
		}(i, buyer)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrOrderConflict):
			conflicts++
		default:
			t.Fatalf("unexpected checkout error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("expected exactly one winner and one conflict, got %d wins and %d conflicts", wins, conflicts)
	}
	if got := store.products["prd_1"].Status; got != domain.ProductSold {
		t.Fatalf("expected product sold after checkout, got %q", got)
	}
	if len(store.orders) != 1 {
		t.Fatalf("expected exactly one order created, got %d", len(store.orders))
	}
}

func TestOrderService_Checkout_SelfPurchaseRejected(t *testing.T) {
	product := domain.Product{ID: "prd_1", Status: domain.ProductAvailable, SellerID: "usr_seller"}
	store := newMemoryCheckoutStore(fixedClock(testTime), product)
	svc := newTestOrderService(t, OrderServiceDeps{Orders: &stubOrderRepository{}, Checkout: store})

	_, err := svc.Checkout(context.Background(), CheckoutCommand{
		BuyerID:         "usr_seller",
		ProductID:       "prd_1",
		PaymentMethod:   "COD",
		ShippingAddress: "12 Hill Road",
	})
	if !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected ErrOrderConflict for self purchase, got %v", err)
	}
	if got := store.products["prd_1"].Status; got != domain.ProductAvailable {
		t.Fatalf("expected product untouched, got %q", got)
	}
}

func pendingOrder() domain.Order {
	return domain.Order{
		ID:              "ord_1",
		ProductID:       "prd_1",
		BuyerID:         "usr_buyer",
		SellerID:        "usr_seller",
		Price:           4500,
		PaymentMethod:   domain.PaymentCOD,
		ShippingAddress: "12 Hill Road",
		PaymentStatus:   domain.PaymentPending,
		OrderStatus:     domain.OrderPending,
		ApprovalStatus:  domain.ApprovalPending,
		CreatedAt:       testTime.Add(-time.Hour),
		UpdatedAt:       testTime.Add(-time.Hour),
	}
}

func TestOrderService_EditPendingOrder_RederivesPaymentStatus(t *testing.T) {
	repo := &stubOrderRepository{
		findByIDFn: func(ctx context.Context, orderID string) (domain.Order, error) {
			return pendingOrder(), nil
		},
	}
	svc := newTestOrderService(t, OrderServiceDeps{Orders: repo, Checkout: &stubCheckoutStore{}})

	method := "MasterCard"
	address := "44 Lake View"
	order, err := svc.EditPendingOrder(context.Background(), EditOrderCommand{
		OrderID:         "ord_1",
		BuyerID:         "usr_buyer",
		ShippingAddress: &address,
		PaymentMethod:   &method,
	})
	if err != nil {
		t.Fatalf("EditPendingOrder error: %v", err)
	}
	if order.PaymentMethod != domain.PaymentMasterCard {
		t.Fatalf("expected MasterCard, got %q", order.PaymentMethod)
	}
	if order.PaymentStatus != domain.PaymentCompleted {
		t.Fatalf("expected payment re-derived to completed, got %q", order.PaymentStatus)
	}
	if order.ShippingAddress != "44 Lake View" {
		t.Fatalf("expected new address, got %q", order.ShippingAddress)
	}
	if len(repo.updated) != 1 {
		t.Fatalf("expected one update, got %d", len(repo.updated))
	}
}

func TestOrderService_EditPendingOrder_OnlyBuyer(t *testing.T) {
	repo := &stubOrderRepository{
		findByIDFn: func(ctx context.Context, orderID string) (domain.Order, error) {
			return pendingOrder(), nil
		},
	}
	svc := newTestOrderService(t, OrderServiceDeps{Orders: repo, Checkout: &stubCheckoutStore{}})

	address := "44 Lake View"
	_, err := svc.EditPendingOrder(context.Background(), EditOrderCommand{
		OrderID:         "ord_1",
		BuyerID:         "usr_seller",
		ShippingAddress: &address,
	})
	if !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden, got %v", err)
	}
	if len(repo.updated) != 0 {
		t.Fatalf("expected no update, got %d", len(repo.updated))
	}
}

func TestOrderService_EditPendingOrder_LockedAfterDecision(t *testing.T) {
	order := pendingOrder()
	order.ApprovalStatus = domain.ApprovalApproved
	order.OrderStatus = domain.OrderConfirmed
	repo := &stubOrderRepository{
		findByIDFn: func(ctx context.Context, orderID string) (domain.Order, error) {
			return order, nil
		},
	}
	svc := newTestOrderService(t, OrderServiceDeps{Orders: repo, Checkout: &stubCheckoutStore{}})

	address := "44 Lake View"
	_, err := svc.EditPendingOrder(context.Background(), EditOrderCommand{
		OrderID:         "ord_1",
		BuyerID:         "usr_buyer",
		ShippingAddress: &address,
	})
	if !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden, got %v", err)
	}
}

func TestOrderService_SetApproval_Approve(t *testing.T) {
	repo := &stubOrderRepository{
		findByIDFn: func(ctx context.Context, orderID string) (domain.Order, error) {
			return pendingOrder(), nil
		},
	}
	publisher := &capturingPublisher{}
	svc := newTestOrderService(t, OrderServiceDeps{Orders: repo, Checkout: &stubCheckoutStore{}, Events: publisher})

	order, err := svc.SetApproval(context.Background(), ApprovalCommand{
		OrderID:  "ord_1",
		ActorID:  "usr_admin",
		Decision: "Approved",
	})
	if err != nil {
		t.Fatalf("SetApproval error: %v", err)
	}
	if order.ApprovalStatus != domain.ApprovalApproved {
		t.Fatalf("expected approved, got %q", order.ApprovalStatus)
	}
	if order.OrderStatus != domain.OrderConfirmed {
		t.Fatalf("expected confirmed, got %q", order.OrderStatus)
	}
	if order.PaymentStatus != domain.PaymentCompleted {
		t.Fatalf("expected payment completed on approval, got %q", order.PaymentStatus)
	}

	events := publisher.captured()
	if len(events) != 1 || events[0].Type != "order.approval.changed" {
		t.Fatalf("expected approval event, got %+v", events)
	}
}

func TestOrderService_SetApproval_RejectCancelsWithoutRestockOrRefund(t *testing.T) {
	repo := &stubOrderRepository{
		findByIDFn: func(ctx context.Context, orderID string) (domain.Order, error) {
			return pendingOrder(), nil
		},
	}
	svc := newTestOrderService(t, OrderServiceDeps{Orders: repo, Checkout: &stubCheckoutStore{}})

	order, err := svc.SetApproval(context.Background(), ApprovalCommand{
		OrderID:  "ord_1",
		ActorID:  "usr_admin",
		Decision: "Rejected",
	})
	if err != nil {
		t.Fatalf("SetApproval error: %v", err)
	}
	if order.OrderStatus != domain.OrderCancelled {
		t.Fatalf("expected cancelled, got %q", order.OrderStatus)
	}
	if order.PaymentStatus != domain.PaymentPending {
		t.Fatalf("expected payment status untouched on rejection, got %q", order.PaymentStatus)
	}
}

func TestOrderService_SetApproval_SameDecisionIdempotent(t *testing.T) {
	order := pendingOrder()
	order.ApprovalStatus = domain.ApprovalApproved
	order.OrderStatus = domain.OrderConfirmed
	order.PaymentStatus = domain.PaymentCompleted
	repo := &stubOrderRepository{
		findByIDFn: func(ctx context.Context, orderID string) (domain.Order, error) {
			return order, nil
		},
	}
	publisher := &capturingPublisher{}
	svc := newTestOrderService(t, OrderServiceDeps{Orders: repo, Checkout: &stubCheckoutStore{}, Events: publisher})

	got, err := svc.SetApproval(context.Background(), ApprovalCommand{
		OrderID:  "ord_1",
		ActorID:  "usr_admin",
		Decision: "Approved",
	})
	if err != nil {
		t.Fatalf("SetApproval error: %v", err)
	}
	if got.UpdatedAt != order.UpdatedAt {
		t.Fatalf("expected order returned unchanged")
	}
	if len(repo.updated) != 0 {
		t.Fatalf("expected no write for repeated decision, got %d", len(repo.updated))
	}
	if len(publisher.captured()) != 0 {
		t.Fatalf("expected no event for repeated decision")
	}
}

func TestOrderService_SetApproval_ReversalConflicts(t *testing.T) {
	order := pendingOrder()
	order.ApprovalStatus = domain.ApprovalRejected
	order.OrderStatus = domain.OrderCancelled
	repo := &stubOrderRepository{
		findByIDFn: func(ctx context.Context, orderID string) (domain.Order, error) {
			return order, nil
		},
	}
	svc := newTestOrderService(t, OrderServiceDeps{Orders: repo, Checkout: &stubCheckoutStore{}})

	_, err := svc.SetApproval(context.Background(), ApprovalCommand{
		OrderID:  "ord_1",
		ActorID:  "usr_admin",
		Decision: "Approved",
	})
	if !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected ErrOrderConflict, got %v", err)
	}
}

func TestOrderService_SetApproval_UnknownDecision(t *testing.T) {
	svc := newTestOrderService(t, OrderServiceDeps{Orders: &stubOrderRepository{}, Checkout: &stubCheckoutStore{}})

	_, err := svc.SetApproval(context.Background(), ApprovalCommand{
		OrderID:  "ord_1",
		ActorID:  "usr_admin",
		Decision: "Maybe",
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestOrderService_SetPaymentStatus_Override(t *testing.T) {
	repo := &stubOrderRepository{
		findByIDFn: func(ctx context.Context, orderID string) (domain.Order, error) {
			return pendingOrder(), nil
		},
	}
	svc := newTestOrderService(t, OrderServiceDeps{Orders: repo, Checkout: &stubCheckoutStore{}})

	order, err := svc.SetPaymentStatus(context.Background(), PaymentStatusCommand{
		OrderID: "ord_1",
		ActorID: "usr_admin",
		Status:  "Completed",
	})
	if err != nil {
		t.Fatalf("SetPaymentStatus error: %v", err)
	}
	if order.PaymentStatus != domain.PaymentCompleted {
		t.Fatalf("expected Completed, got %s", order.PaymentStatus)
	}
	if !order.UpdatedAt.Equal(testTime) {
		t.Fatalf("expected updatedAt %v, got %v", testTime, order.UpdatedAt)
	}
	if len(repo.updated) != 1 {
		t.Fatalf("expected one update, got %d", len(repo.updated))
	}
}

func TestOrderService_SetPaymentStatus_SameValueNoWrite(t *testing.T) {
	repo := &stubOrderRepository{
		findByIDFn: func(ctx context.Context, orderID string) (domain.Order, error) {
			return pendingOrder(), nil
		},
	}
	svc := newTestOrderService(t, OrderServiceDeps{Orders: repo, Checkout: &stubCheckoutStore{}})

	order, err := svc.SetPaymentStatus(context.Background(), PaymentStatusCommand{
		OrderID: "ord_1",
		ActorID: "usr_admin",
		Status:  "Pending",
	})
	if err != nil {
		t.Fatalf("SetPaymentStatus error: %v", err)
	}
	if order.PaymentStatus != domain.PaymentPending {
		t.Fatalf("expected Pending, got %s", order.PaymentStatus)
	}
	if len(repo.updated) != 0 {
		t.Fatalf("expected no writes, got %d", len(repo.updated))
	}
}

func TestOrderService_SetPaymentStatus_UnknownValue(t *testing.T) {
	svc := newTestOrderService(t, OrderServiceDeps{Orders: &stubOrderRepository{}, Checkout: &stubCheckoutStore{}})

	_, err := svc.SetPaymentStatus(context.Background(), PaymentStatusCommand{
		OrderID: "ord_1",
		ActorID: "usr_admin",
		Status:  "Refunded",
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestOrderService_MarkDelivered_BySeller(t *testing.T) {
	order := pendingOrder()
	order.ApprovalStatus = domain.ApprovalApproved
	order.OrderStatus = domain.OrderConfirmed
	order.PaymentStatus = domain.PaymentCompleted
	repo := &stubOrderRepository{
		findByIDFn: func(ctx context.Context, orderID string) (domain.Order, error) {
			return order, nil
		},
	}
	publisher := &capturingPublisher{}
	svc := newTestOrderService(t, OrderServiceDeps{Orders: repo, Checkout: &stubCheckoutStore{}, Events: publisher})

	got, err := svc.MarkDelivered(context.Background(), DeliverCommand{
		OrderID:   "ord_1",
		ActorID:   "usr_seller",
		ActorRole: "seller",
	})
	if err != nil {
		t.Fatalf("MarkDelivered error: %v", err)
	}
	if got.OrderStatus != domain.OrderDelivered {
		t.Fatalf("expected delivered, got %q", got.OrderStatus)
	}
	if got.DeliveredAt == nil || !got.DeliveredAt.Equal(testTime) {
		t.Fatalf("expected deliveredAt stamped with clock, got %v", got.DeliveredAt)
	}
	if got.PaymentStatus != domain.PaymentCompleted {
		t.Fatalf("expected payment completed, got %q", got.PaymentStatus)
	}
	events := publisher.captured()
	if len(events) != 1 || events[0].Type != "order.delivered" {
		t.Fatalf("expected delivered event, got %+v", events)
	}
}

func TestOrderService_MarkDelivered_StrangerForbidden(t *testing.T) {
	order := pendingOrder()
	order.OrderStatus = domain.OrderConfirmed
	repo := &stubOrderRepository{
		findByIDFn: func(ctx context.Context, orderID string) (domain.Order, error) {
			return order, nil
		},
	}
	svc := newTestOrderService(t, OrderServiceDeps{Orders: repo, Checkout: &stubCheckoutStore{}})

	_, err := svc.MarkDelivered(context.Background(), DeliverCommand{
		OrderID:   "ord_1",
		ActorID:   "usr_other",
		ActorRole: "seller",
	})
	if !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden, got %v", err)
	}
}

func TestOrderService_MarkDelivered_BeforeApproval(t *testing.T) {
	repo := &stubOrderRepository{
		findByIDFn: func(ctx context.Context, orderID string) (domain.Order, error) {
			return pendingOrder(), nil
		},
	}
	svc := newTestOrderService(t, OrderServiceDeps{Orders: repo, Checkout: &stubCheckoutStore{}})

	got, err := svc.MarkDelivered(context.Background(), DeliverCommand{
		OrderID:   "ord_1",
		ActorID:   "usr_seller",
		ActorRole: "seller",
	})
	if err != nil {
		t.Fatalf("MarkDelivered error: %v", err)
	}
	if got.OrderStatus != domain.OrderDelivered {
		t.Fatalf("expected delivered, got %q", got.OrderStatus)
	}
	if got.PaymentStatus != domain.PaymentCompleted {
		t.Fatalf("expected handover to settle payment, got %q", got.PaymentStatus)
	}
	if got.DeliveredAt == nil || !got.DeliveredAt.Equal(testTime) {
		t.Fatalf("expected deliveredAt stamped with clock, got %v", got.DeliveredAt)
	}
}

func TestOrderService_MarkDelivered_CancelledRejected(t *testing.T) {
	order := pendingOrder()
	order.ApprovalStatus = domain.ApprovalRejected
	order.OrderStatus = domain.OrderCancelled
	repo := &stubOrderRepository{
		findByIDFn: func(ctx context.Context, orderID string) (domain.Order, error) {
			return order, nil
		},
	}
	svc := newTestOrderService(t, OrderServiceDeps{Orders: repo, Checkout: &stubCheckoutStore{}})

	_, err := svc.MarkDelivered(context.Background(), DeliverCommand{
		OrderID:   "ord_1",
		ActorID:   "usr_admin",
		ActorRole: "admin",
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected ErrOrderInvalidState, got %v", err)
	}
}

func TestOrderService_MarkDelivered_Idempotent(t *testing.T) {
	delivered := testTime.Add(-time.Hour)
	order := pendingOrder()
	order.OrderStatus = domain.OrderDelivered
	order.DeliveredAt = &delivered
	repo := &stubOrderRepository{
		findByIDFn: func(ctx context.Context, orderID string) (domain.Order, error) {
			return order, nil
		},
	}
	svc := newTestOrderService(t, OrderServiceDeps{Orders: repo, Checkout: &stubCheckoutStore{}})

	got, err := svc.MarkDelivered(context.Background(), DeliverCommand{
		OrderID:   "ord_1",
		ActorID:   "usr_seller",
		ActorRole: "seller",
	})
	if err != nil {
		t.Fatalf("MarkDelivered error: %v", err)
	}
	if !got.DeliveredAt.Equal(delivered) {
		t.Fatalf("expected original delivery timestamp preserved, got %v", got.DeliveredAt)
	}
	if len(repo.updated) != 0 {
		t.Fatalf("expected no write on repeated delivery, got %d", len(repo.updated))
	}
}

func TestOrderService_ListOrders_RoleScoping(t *testing.T) {
	repo := &stubOrderRepository{}
	svc := newTestOrderService(t, OrderServiceDeps{Orders: repo, Checkout: &stubCheckoutStore{}})

	cases := []struct {
		name       string
		query      OrderListQuery
		wantBuyer  string
		wantSeller string
	}{
		{name: "buyer sees purchases", query: OrderListQuery{UserID: "usr_b", Role: "buyer"}, wantBuyer: "usr_b"},
		{name: "seller sees sales", query: OrderListQuery{UserID: "usr_s", Role: "seller"}, wantSeller: "usr_s"},
		{name: "admin all unscoped", query: OrderListQuery{UserID: "usr_a", Role: "admin", All: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo.listFilters = nil
			if _, err := svc.ListOrders(context.Background(), tc.query); err != nil {
				t.Fatalf("ListOrders error: %v", err)
			}
			filter := repo.listFilters[0]
			if filter.BuyerID != tc.wantBuyer || filter.SellerID != tc.wantSeller {
				t.Fatalf("unexpected filter %+v", filter)
			}
		})
	}
}

func TestOrderService_ListOrders_AllRequiresAdmin(t *testing.T) {
	svc := newTestOrderService(t, OrderServiceDeps{Orders: &stubOrderRepository{}, Checkout: &stubCheckoutStore{}})

	_, err := svc.ListOrders(context.Background(), OrderListQuery{UserID: "usr_b", Role: "buyer", All: true})
	if !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden, got %v", err)
	}
}

func TestOrderService_ListOrders_NewestFirstWithIDTieBreak(t *testing.T) {
	older := testTime.Add(-time.Hour)
	repo := &stubOrderRepository{
		listFn: func(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
			return []domain.Order{
				{ID: "ord_a", CreatedAt: older},
				{ID: "ord_b", CreatedAt: testTime},
				{ID: "ord_c", CreatedAt: testTime},
			}, nil
		},
	}
	svc := newTestOrderService(t, OrderServiceDeps{Orders: repo, Checkout: &stubCheckoutStore{}})

	orders, err := svc.ListOrders(context.Background(), OrderListQuery{UserID: "usr_b", Role: "buyer"})
	if err != nil {
		t.Fatalf("ListOrders error: %v", err)
	}
	gotIDs := []string{orders[0].ID, orders[1].ID, orders[2].ID}
	wantIDs := []string{"ord_c", "ord_b", "ord_a"}
	for i := range wantIDs {
		if gotIDs[i] != wantIDs[i] {
			t.Fatalf("expected order %v, got %v", wantIDs, gotIDs)
		}
	}
}

func TestOrderService_GetOrder_ParticipantsOnly(t *testing.T) {
	repo := &stubOrderRepository{
		findByIDFn: func(ctx context.Context, orderID string) (domain.Order, error) {
			return pendingOrder(), nil
		},
	}
	svc := newTestOrderService(t, OrderServiceDeps{Orders: repo, Checkout: &stubCheckoutStore{}})

	cases := []struct {
		name    string
		reader  OrderReadContext
		wantErr error
	}{
		{name: "buyer", reader: OrderReadContext{UserID: "usr_buyer", Role: "buyer"}},
		{name: "seller", reader: OrderReadContext{UserID: "usr_seller", Role: "seller"}},
		{name: "admin", reader: OrderReadContext{UserID: "usr_admin", Role: "admin"}},
		{name: "stranger", reader: OrderReadContext{UserID: "usr_other", Role: "buyer"}, wantErr: ErrOrderForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.GetOrder(context.Background(), "ord_1", tc.reader)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("GetOrder error: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestOrderService_GetOrder_NotFound(t *testing.T) {
	svc := newTestOrderService(t, OrderServiceDeps{Orders: &stubOrderRepository{}, Checkout: &stubCheckoutStore{}})

	_, err := svc.GetOrder(context.Background(), "ord_missing", OrderReadContext{UserID: "usr_b", Role: "admin"})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
