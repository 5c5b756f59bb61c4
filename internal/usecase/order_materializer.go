package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/Moisinho/odym-ecommerce-sub000/internal/domain/model"
	repo "github.com/Moisinho/odym-ecommerce-sub000/internal/repository"

	"go.uber.org/zap"
)

const premiumBoxItemPrefix = "Premium Box: "

// errAlreadyMaterialized rolls the insert back when another delivery won the unique index.
var errAlreadyMaterialized = errors.New("order already materialized")

type MaterializeResult struct {
	Order            model.Order
	Items            []model.OrderItem
	AlreadyProcessed bool
}

type StandardOrderInput struct {
	UserID  *int64
	Cart    []CartLine
	Session CheckoutSession
}

type PremiumBoxInput struct {
	UserID   int64
	Products []model.Product
	// Session is the subscription purchase; the box reference is derived from its payment reference.
	Session CheckoutSession
}

// 注文の確定（在庫減算＋注文作成）を1トランザクションで行う
type OrderMaterializer struct {
	tx        repo.TransactionManager
	publisher OrderEventPublisher
	record    func(operation string, success bool)
	clock     Clock
	currency  string
	log       *zap.Logger
}

func NewOrderMaterializer(
	tx repo.TransactionManager,
	publisher OrderEventPublisher,
	record func(operation string, success bool),
	clock Clock,
	currency string,
	log *zap.Logger,
) *OrderMaterializer {
	if record == nil {
		record = func(string, bool) {}
	}
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderMaterializer{
		tx:        tx,
		publisher: publisher,
		record:    record,
		clock:     clock,
		currency:  currency,
		log:       log,
	}
}

type draftLine struct {
	productID int64
	quantity  int64
	unitPrice int64
	// boxed items are labeled and free
	boxed bool
}

type orderDraft struct {
	userID    *int64
	orderType model.OrderType
	ref       string
	lines     []draftLine
	session   CheckoutSession
}

func (m *OrderMaterializer) MaterializeStandard(ctx context.Context, in StandardOrderInput) (MaterializeResult, error) {
	if len(in.Cart) == 0 {
		return MaterializeResult{}, OrderCreationError(errors.New("empty cart"))
	}
	if in.Session.PaymentRef() == "" {
		return MaterializeResult{}, OrderCreationError(errors.New("missing payment reference"))
	}

	lines := make([]draftLine, 0, len(in.Cart))
	for _, l := range in.Cart {
		lines = append(lines, draftLine{productID: l.ProductID, quantity: l.Quantity, unitPrice: l.UnitPrice})
	}

	return m.materialize(ctx, orderDraft{
		userID:    in.UserID,
		orderType: model.OrderTypeStandard,
		ref:       in.Session.PaymentRef(),
		lines:     lines,
		session:   in.Session,
	})
}

func (m *OrderMaterializer) MaterializePremiumBox(ctx context.Context, in PremiumBoxInput) (MaterializeResult, error) {
	if in.UserID <= 0 {
		return MaterializeResult{}, OrderCreationError(errors.New("premium box requires a user"))
	}
	if len(in.Products) == 0 {
		return MaterializeResult{}, OrderCreationError(errors.New("no products available for premium box"))
	}
	if in.Session.PaymentRef() == "" {
		return MaterializeResult{}, OrderCreationError(errors.New("missing payment reference"))
	}

	lines := make([]draftLine, 0, len(in.Products))
	for _, p := range in.Products {
		lines = append(lines, draftLine{productID: p.ID, quantity: 1, unitPrice: 0, boxed: true})
	}

	userID := in.UserID
	return m.materialize(ctx, orderDraft{
		userID:    &userID,
		orderType: model.OrderTypePremiumBox,
		ref:       PremiumBoxRef(in.Session.PaymentRef()),
		lines:     lines,
		session:   in.Session,
	})
}

// PremiumBoxRef derives the box order's payment reference from the subscription payment.
func PremiumBoxRef(ref string) string {
	return ref + model.PremiumBoxRefSuffix
}

// FindByPaymentRef returns the order already materialized for ref, if any.
func (m *OrderMaterializer) FindByPaymentRef(ctx context.Context, ref string) (MaterializeResult, bool, error) {
	var (
		res   MaterializeResult
		found bool
	)
	err := m.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		res, found, err = loadExisting(ctx, r, ref)
		return err
	})
	if err != nil {
		return MaterializeResult{}, false, OrderCreationError(err)
	}
	return res, found, nil
}

func (m *OrderMaterializer) materialize(ctx context.Context, d orderDraft) (MaterializeResult, error) {
	var res MaterializeResult
	operation := "materialize_" + string(d.orderType)

	err := m.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//同じ決済参照なら既存注文を返す
		existing, found, err := loadExisting(ctx, r, d.ref)
		if err != nil {
			return OrderCreationError(err)
		}
		if found {
			res = existing
			return nil
		}

		now := m.clock.Now()
		items := make([]model.OrderItem, 0, len(d.lines))
		var total int64

		for _, l := range d.lines {
			p, err := r.Products().FindByID(ctx, l.productID)
			if errors.Is(err, repo.ErrNotFound) {
				return OrderCreationError(fmt.Errorf("product %d not found", l.productID))
			}
			if err != nil {
				return OrderCreationError(err)
			}

			//在庫が足りるときだけ減らす。足りなければ注文ごと取り消し
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, l.productID, l.quantity)
			if err != nil {
				return OrderCreationError(err)
			}
			if !ok {
				return StockError([]StockIssue{{
					ProductID: p.ID,
					Name:      p.Name,
					Requested: l.quantity,
					Available: p.Stock,
				}})
			}

			name := p.Name
			if l.boxed {
				name = premiumBoxItemPrefix + p.Name
			}
			items = append(items, model.OrderItem{
				ProductID:           p.ID,
				ProductNameSnapshot: name,
				UnitPriceSnapshot:   l.unitPrice,
				ImageSnapshot:       p.FirstImage(),
				Quantity:            l.quantity,
				CreatedAt:           now,
			})
			total += l.unitPrice * l.quantity
		}

		ship, err := m.resolveShipping(ctx, r, d)
		if err != nil {
			return err
		}

		currency := d.session.Currency
		if currency == "" {
			currency = m.currency
		}

		order := model.Order{
			UserID:          d.userID,
			Status:          model.OrderStatusProcessing,
			PaymentStatus:   model.PaymentStatusPaid,
			OrderType:       d.orderType,
			TotalAmount:     total,
			Currency:        currency,
			CustomerEmail:   d.session.CustomerEmail,
			PaymentRef:      d.ref,
			ShippingAddress: ship,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		orderID, err := r.Orders().Create(ctx, order)
		if errors.Is(err, repo.ErrDuplicate) {
			return errAlreadyMaterialized
		}
		if err != nil {
			return OrderCreationError(err)
		}
		order.ID = orderID

		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return OrderCreationError(err)
		}
		for i := range items {
			items[i].OrderID = orderID
		}

		//決済の記録（監査用）
		if err := r.Payments().Create(ctx, model.Payment{
			OrderID:                 orderID,
			UserID:                  d.userID,
			ExternalSessionID:       d.session.ID,
			ExternalPaymentIntentID: d.session.PaymentIntentID,
			Amount:                  d.session.AmountTotal,
			Currency:                currency,
			Status:                  string(model.PaymentStatusPaid),
			BillingName:             d.session.CustomerName,
			BillingEmail:            d.session.CustomerEmail,
			CreatedAt:               now,
		}); err != nil {
			return OrderCreationError(err)
		}

		res = MaterializeResult{Order: order, Items: items}
		return nil
	})

	if errors.Is(err, errAlreadyMaterialized) {
		existing, found, ferr := m.FindByPaymentRef(ctx, d.ref)
		if ferr != nil {
			m.record(operation, false)
			return MaterializeResult{}, ferr
		}
		if !found {
			m.record(operation, false)
			return MaterializeResult{}, OrderCreationError(fmt.Errorf("order for %s vanished after duplicate insert", d.ref))
		}
		m.record(operation, true)
		return existing, nil
	}
	if err != nil {
		m.record(operation, false)
		return MaterializeResult{}, err
	}

	m.record(operation, true)
	if !res.AlreadyProcessed {
		m.publishCreated(ctx, res)
	}
	return res, nil
}

// profile default address first, then whatever the provider collected
func (m *OrderMaterializer) resolveShipping(ctx context.Context, r repo.TxRepos, d orderDraft) (model.ShippingAddress, error) {
	if d.userID == nil {
		return d.session.ShippingAddress, nil
	}

	if _, err := r.Users().FindByID(ctx, *d.userID); err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return model.ShippingAddress{}, OrderCreationError(fmt.Errorf("user %d not found", *d.userID))
		}
		return model.ShippingAddress{}, OrderCreationError(err)
	}

	addr, found, err := r.Addresses().FindDefaultByUserID(ctx, *d.userID)
	if err != nil {
		return model.ShippingAddress{}, OrderCreationError(err)
	}
	if found {
		return addr.ToShipping(), nil
	}
	return d.session.ShippingAddress, nil
}

func (m *OrderMaterializer) publishCreated(ctx context.Context, res MaterializeResult) {
	if m.publisher == nil {
		return
	}
	ev := OrderCreatedEvent{
		OrderID:     res.Order.ID,
		UserID:      res.Order.UserID,
		OrderType:   res.Order.OrderType,
		TotalAmount: res.Order.TotalAmount,
		Currency:    res.Order.Currency,
		PaymentRef:  res.Order.PaymentRef,
		ItemCount:   len(res.Items),
		CreatedAt:   res.Order.CreatedAt,
	}
	if err := m.publisher.PublishOrderCreated(ctx, ev); err != nil {
		m.log.Warn("Failed to publish order.created",
			zap.Int64("order_id", res.Order.ID),
			zap.String("payment_ref", res.Order.PaymentRef),
			zap.Error(err),
		)
	}
}

func loadExisting(ctx context.Context, r repo.TxRepos, ref string) (MaterializeResult, bool, error) {
	o, found, err := r.Orders().FindByPaymentRef(ctx, ref)
	if err != nil || !found {
		return MaterializeResult{}, false, err
	}
	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return MaterializeResult{}, false, err
	}
	return MaterializeResult{Order: o, Items: items, AlreadyProcessed: true}, true, nil
}
