package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Moisinho/odym-ecommerce-sub000/internal/domain/model"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type materializerFixture struct {
	store     *memStore
	publisher *recordingPublisher
	ops       *opRecorder
	m         *usecase.OrderMaterializer
}

func newMaterializerFixture(t *testing.T) materializerFixture {
	t.Helper()
	store := newMemStore()
	pub := &recordingPublisher{}
	ops := newOpRecorder()
	m := usecase.NewOrderMaterializer(store, pub, ops.record, fixedClock{now: testNow}, "usd", zap.NewNop())
	return materializerFixture{store: store, publisher: pub, ops: ops, m: m}
}

func paidSession(id, intent string) usecase.CheckoutSession {
	return usecase.CheckoutSession{
		ID:              id,
		Status:          "complete",
		PaymentStatus:   "paid",
		Paid:            true,
		CustomerEmail:   "buyer@example.com",
		CustomerName:    "Buyer",
		AmountTotal:     3000,
		Currency:        "usd",
		PaymentIntentID: intent,
		ShippingAddress: model.ShippingAddress{
			Name: "Buyer", Line1: "1 Provider St", City: "Austin", State: "TX", PostalCode: "73301", Country: "US",
		},
	}
}

func TestMaterializeStandard_GuestOrder(t *testing.T) {
	f := newMaterializerFixture(t)
	f.store.addProduct(model.Product{ID: 1, Name: "Mug", Price: 1000, Stock: 5, IsActive: true, Images: []string{"mug.png"}})

	res, err := f.m.MaterializeStandard(context.Background(), usecase.StandardOrderInput{
		Cart:    []usecase.CartLine{{ProductID: 1, Quantity: 3, UnitPrice: 1000}},
		Session: paidSession("cs_1", "pi_1"),
	})
	require.NoError(t, err)

	assert.False(t, res.AlreadyProcessed)
	assert.Nil(t, res.Order.UserID)
	assert.Equal(t, model.OrderStatusProcessing, res.Order.Status)
	assert.Equal(t, model.PaymentStatusPaid, res.Order.PaymentStatus)
	assert.Equal(t, model.OrderTypeStandard, res.Order.OrderType)
	assert.Equal(t, int64(3000), res.Order.TotalAmount)
	assert.Equal(t, "pi_1", res.Order.PaymentRef)
	assert.Equal(t, "1 Provider St", res.Order.ShippingAddress.Line1)

	require.Len(t, res.Items, 1)
	assert.Equal(t, "Mug", res.Items[0].ProductNameSnapshot)
	assert.Equal(t, int64(1000), res.Items[0].UnitPriceSnapshot)
	assert.Equal(t, "mug.png", res.Items[0].ImageSnapshot)
	assert.Equal(t, res.Order.ID, res.Items[0].OrderID)

	assert.Equal(t, int64(2), f.store.stock(1))

	st := f.store.snapshot()
	require.Len(t, st.payments, 1)
	assert.Equal(t, "cs_1", st.payments[0].ExternalSessionID)
	assert.Equal(t, "pi_1", st.payments[0].ExternalPaymentIntentID)

	require.Equal(t, 1, f.publisher.count())
	assert.Equal(t, res.Order.ID, f.publisher.events[0].OrderID)
	assert.Equal(t, []bool{true}, f.ops.ops["materialize_standard"])
}

// 既定住所があればそちらを使う
func TestMaterializeStandard_UserDefaultAddressWins(t *testing.T) {
	f := newMaterializerFixture(t)
	f.store.addProduct(model.Product{ID: 1, Name: "Mug", Price: 1000, Stock: 5, IsActive: true})
	f.store.addUser(model.User{ID: 7, Email: "u@example.com", IsActive: true})
	f.store.addAddress(model.Address{
		ID: 70, UserID: 7, Name: "Home", Line1: "9 Profile Rd", City: "Denver", State: "CO", PostalCode: "80014", Country: "US", IsDefault: true,
	})

	res, err := f.m.MaterializeStandard(context.Background(), usecase.StandardOrderInput{
		UserID:  int64Ptr(7),
		Cart:    []usecase.CartLine{{ProductID: 1, Quantity: 1, UnitPrice: 700}},
		Session: paidSession("cs_2", "pi_2"),
	})
	require.NoError(t, err)

	require.NotNil(t, res.Order.UserID)
	assert.Equal(t, int64(7), *res.Order.UserID)
	assert.Equal(t, "9 Profile Rd", res.Order.ShippingAddress.Line1)
	// 課金された単価で記録する
	assert.Equal(t, int64(700), res.Items[0].UnitPriceSnapshot)
	assert.Equal(t, int64(700), res.Order.TotalAmount)
}

func TestMaterializeStandard_UnknownUserFails(t *testing.T) {
	f := newMaterializerFixture(t)
	f.store.addProduct(model.Product{ID: 1, Name: "Mug", Price: 1000, Stock: 5, IsActive: true})

	_, err := f.m.MaterializeStandard(context.Background(), usecase.StandardOrderInput{
		UserID:  int64Ptr(404),
		Cart:    []usecase.CartLine{{ProductID: 1, Quantity: 1, UnitPrice: 1000}},
		Session: paidSession("cs_3", "pi_3"),
	})
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, he.Status)
	assert.Equal(t, int64(5), f.store.stock(1))
	assert.Equal(t, 0, f.store.orderCount())
}

func TestMaterializeStandard_DuplicateDeliveryCreatesOneOrder(t *testing.T) {
	f := newMaterializerFixture(t)
	f.store.addProduct(model.Product{ID: 1, Name: "Mug", Price: 1000, Stock: 5, IsActive: true})

	in := usecase.StandardOrderInput{
		Cart:    []usecase.CartLine{{ProductID: 1, Quantity: 2, UnitPrice: 1000}},
		Session: paidSession("cs_dup", "pi_dup"),
	}

	first, err := f.m.MaterializeStandard(context.Background(), in)
	require.NoError(t, err)
	second, err := f.m.MaterializeStandard(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, second.AlreadyProcessed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Len(t, second.Items, 1)
	assert.Equal(t, 1, f.store.orderCount())
	assert.Equal(t, int64(3), f.store.stock(1))
	assert.Equal(t, 1, f.publisher.count())
}

// lookupをすり抜けた重複はunique制約で止まり、既存注文を返す
func TestMaterializeStandard_DuplicateInsertRollsBack(t *testing.T) {
	f := newMaterializerFixture(t)
	f.store.addProduct(model.Product{ID: 1, Name: "Mug", Price: 1000, Stock: 5, IsActive: true})

	in := usecase.StandardOrderInput{
		Cart:    []usecase.CartLine{{ProductID: 1, Quantity: 2, UnitPrice: 1000}},
		Session: paidSession("cs_race", "pi_race"),
	}
	first, err := f.m.MaterializeStandard(context.Background(), in)
	require.NoError(t, err)

	f.store.hideRefOnce = "pi_race"
	second, err := f.m.MaterializeStandard(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, second.AlreadyProcessed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, int64(3), f.store.stock(1))
	assert.Equal(t, 1, f.store.orderCount())
	assert.Len(t, f.store.snapshot().payments, 1)
}

func TestMaterializeStandard_ConcurrentDeliveries(t *testing.T) {
	f := newMaterializerFixture(t)
	f.store.addProduct(model.Product{ID: 1, Name: "Mug", Price: 1000, Stock: 10, IsActive: true})

	in := usecase.StandardOrderInput{
		Cart:    []usecase.CartLine{{ProductID: 1, Quantity: 1, UnitPrice: 1000}},
		Session: paidSession("cs_c", "pi_c"),
	}

	var wg sync.WaitGroup
	ids := make([]int64, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.m.MaterializeStandard(context.Background(), in)
			ids[i], errs[i] = res.Order.ID, err
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, f.store.orderCount())
	assert.Equal(t, int64(9), f.store.stock(1))
}

func TestMaterializeStandard_ShortageRollsBackEveryLine(t *testing.T) {
	f := newMaterializerFixture(t)
	f.store.addProduct(model.Product{ID: 1, Name: "Mug", Price: 1000, Stock: 5, IsActive: true})
	f.store.addProduct(model.Product{ID: 2, Name: "Tee", Price: 2000, Stock: 1, IsActive: true})

	_, err := f.m.MaterializeStandard(context.Background(), usecase.StandardOrderInput{
		Cart: []usecase.CartLine{
			{ProductID: 1, Quantity: 2, UnitPrice: 1000},
			{ProductID: 2, Quantity: 2, UnitPrice: 2000},
		},
		Session: paidSession("cs_short", "pi_short"),
	})
	require.Error(t, err)
	assert.True(t, usecase.IsStockError(err))

	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok)
	issues, ok := he.Details.([]usecase.StockIssue)
	require.True(t, ok)
	require.Len(t, issues, 1)
	assert.Equal(t, int64(2), issues[0].ProductID)
	assert.Equal(t, int64(1), issues[0].Available)

	// 1行目の減算も戻っている
	assert.Equal(t, int64(5), f.store.stock(1))
	assert.Equal(t, int64(1), f.store.stock(2))
	assert.Equal(t, 0, f.store.orderCount())
	assert.Equal(t, 0, f.publisher.count())
	assert.Equal(t, []bool{false}, f.ops.ops["materialize_standard"])
}

func TestMaterializeStandard_ExactStockSucceeds(t *testing.T) {
	f := newMaterializerFixture(t)
	f.store.addProduct(model.Product{ID: 1, Name: "Mug", Price: 1000, Stock: 2, IsActive: true})

	_, err := f.m.MaterializeStandard(context.Background(), usecase.StandardOrderInput{
		Cart:    []usecase.CartLine{{ProductID: 1, Quantity: 2, UnitPrice: 1000}},
		Session: paidSession("cs_exact", "pi_exact"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.store.stock(1))
}

func TestMaterializeStandard_MissingProductFails(t *testing.T) {
	f := newMaterializerFixture(t)

	_, err := f.m.MaterializeStandard(context.Background(), usecase.StandardOrderInput{
		Cart:    []usecase.CartLine{{ProductID: 99, Quantity: 1, UnitPrice: 1000}},
		Session: paidSession("cs_missing", "pi_missing"),
	})
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, he.Status)
	assert.Equal(t, "order creation failed", he.Message)
}

func TestMaterializeStandard_RequiresPaymentRef(t *testing.T) {
	f := newMaterializerFixture(t)

	_, err := f.m.MaterializeStandard(context.Background(), usecase.StandardOrderInput{
		Cart: []usecase.CartLine{{ProductID: 1, Quantity: 1, UnitPrice: 1000}},
	})
	require.Error(t, err)
	assert.Equal(t, 0, f.store.orderCount())
}

func TestMaterializeStandard_SessionIDIsFallbackRef(t *testing.T) {
	f := newMaterializerFixture(t)
	f.store.addProduct(model.Product{ID: 1, Name: "Mug", Price: 1000, Stock: 5, IsActive: true})

	res, err := f.m.MaterializeStandard(context.Background(), usecase.StandardOrderInput{
		Cart:    []usecase.CartLine{{ProductID: 1, Quantity: 1, UnitPrice: 1000}},
		Session: paidSession("cs_no_intent", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_no_intent", res.Order.PaymentRef)
}

// 商品を後から編集しても明細は変わらない
func TestMaterializeStandard_SnapshotSurvivesProductEdit(t *testing.T) {
	f := newMaterializerFixture(t)
	f.store.addProduct(model.Product{ID: 1, Name: "Mug", Price: 1000, Stock: 5, IsActive: true})

	res, err := f.m.MaterializeStandard(context.Background(), usecase.StandardOrderInput{
		Cart:    []usecase.CartLine{{ProductID: 1, Quantity: 1, UnitPrice: 1000}},
		Session: paidSession("cs_snap", "pi_snap"),
	})
	require.NoError(t, err)

	f.store.addProduct(model.Product{ID: 1, Name: "Giant Mug", Price: 5000, Stock: 4, IsActive: true})

	again, found, err := f.m.FindByPaymentRef(context.Background(), "pi_snap")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, res.Order.ID, again.Order.ID)
	assert.Equal(t, "Mug", again.Items[0].ProductNameSnapshot)
	assert.Equal(t, int64(1000), again.Items[0].UnitPriceSnapshot)
}

func TestMaterializeStandard_PublishFailureDoesNotFailOrder(t *testing.T) {
	f := newMaterializerFixture(t)
	f.publisher.err = errors.New("broker down")
	f.store.addProduct(model.Product{ID: 1, Name: "Mug", Price: 1000, Stock: 5, IsActive: true})

	_, err := f.m.MaterializeStandard(context.Background(), usecase.StandardOrderInput{
		Cart:    []usecase.CartLine{{ProductID: 1, Quantity: 1, UnitPrice: 1000}},
		Session: paidSession("cs_pub", "pi_pub"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.orderCount())
}

func TestMaterializePremiumBox(t *testing.T) {
	f := newMaterializerFixture(t)
	f.store.addUser(model.User{ID: 7, Email: "u@example.com", IsActive: true})
	f.store.addProduct(model.Product{ID: 1, Name: "Mug", Price: 1000, Stock: 5, IsActive: true})
	f.store.addProduct(model.Product{ID: 2, Name: "Tee", Price: 2000, Stock: 3, IsActive: true})

	products := []model.Product{
		{ID: 1, Name: "Mug", Price: 1000, Stock: 5},
		{ID: 2, Name: "Tee", Price: 2000, Stock: 3},
	}
	res, err := f.m.MaterializePremiumBox(context.Background(), usecase.PremiumBoxInput{
		UserID:   7,
		Products: products,
		Session:  paidSession("cs_sub", "pi_sub"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.OrderTypePremiumBox, res.Order.OrderType)
	assert.Equal(t, "pi_sub_premium_box", res.Order.PaymentRef)
	assert.Equal(t, int64(0), res.Order.TotalAmount)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Premium Box: Mug", res.Items[0].ProductNameSnapshot)
	assert.Equal(t, int64(0), res.Items[0].UnitPriceSnapshot)
	assert.Equal(t, int64(1), res.Items[0].Quantity)

	assert.Equal(t, int64(4), f.store.stock(1))
	assert.Equal(t, int64(2), f.store.stock(2))
	assert.Equal(t, []bool{true}, f.ops.ops["materialize_premium_box"])
}

func TestMaterializePremiumBox_RequiresProducts(t *testing.T) {
	f := newMaterializerFixture(t)
	f.store.addUser(model.User{ID: 7, IsActive: true})

	_, err := f.m.MaterializePremiumBox(context.Background(), usecase.PremiumBoxInput{
		UserID:  7,
		Session: paidSession("cs_sub", "pi_sub"),
	})
	require.Error(t, err)
	assert.Equal(t, 0, f.store.orderCount())
}
