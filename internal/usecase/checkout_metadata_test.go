package usecase_test

import (
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/Moisinho/odym-ecommerce-sub000/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutMetadata_EncodeDecode(t *testing.T) {
	in := usecase.CheckoutMetadata{
		UserID:      int64Ptr(12),
		Cart:        []usecase.CartLine{{ProductID: 3, Quantity: 2, UnitPrice: 700}},
		TotalAmount: 1400,
		Discounted:  true,
	}
	md, err := in.Encode()
	require.NoError(t, err)

	assert.Equal(t, "standard", md["type"])
	assert.Equal(t, usecase.MetadataSchemaVersion, md["schema_version"])
	assert.Equal(t, "12", md["user_id"])
	assert.Equal(t, "1", md["cart_parts"])
	assert.JSONEq(t, `[{"productId":3,"quantity":2,"unitPrice":700}]`, md["cart_0"])

	out, err := usecase.DecodeCheckoutMetadata(md)
	require.NoError(t, err)
	assert.Equal(t, int64(12), *out.UserID)
	assert.Equal(t, in.Cart, out.Cart)
	assert.Equal(t, int64(1400), out.TotalAmount)
	assert.True(t, out.Discounted)
}

func TestCheckoutMetadata_GuestUser(t *testing.T) {
	md, err := usecase.CheckoutMetadata{Cart: []usecase.CartLine{{ProductID: 1, Quantity: 1, UnitPrice: 100}}}.Encode()
	require.NoError(t, err)
	assert.Equal(t, "guest", md["user_id"])

	out, err := usecase.DecodeCheckoutMetadata(md)
	require.NoError(t, err)
	assert.Nil(t, out.UserID)
}

func TestDecodeCheckoutMetadata_Rejects(t *testing.T) {
	valid := func() map[string]string {
		return map[string]string{
			"type":           "standard",
			"schema_version": usecase.MetadataSchemaVersion,
			"user_id":        "guest",
			"cart":           `[{"productId":1,"quantity":1,"unitPrice":100}]`,
			"total_amount":   "100",
		}
	}

	cases := map[string]func(md map[string]string){
		"missing version": func(md map[string]string) { delete(md, "schema_version") },
		"old version":     func(md map[string]string) { md["schema_version"] = "1" },
		"bad user":        func(md map[string]string) { md["user_id"] = "abc" },
		"bad total":       func(md map[string]string) { md["total_amount"] = "1.5" },
		"bad cart":        func(md map[string]string) { md["cart"] = `{"not":"a list"}` },
		"empty cart":      func(md map[string]string) { delete(md, "cart") },
		"missing part":    func(md map[string]string) { md["cart_parts"] = "2"; md["cart_0"] = md["cart"] },
		"bad part count":  func(md map[string]string) { md["cart_parts"] = "x" },
		"zero quantity":   func(md map[string]string) { md["cart"] = `[{"productId":1,"quantity":0,"unitPrice":100}]` },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			md := valid()
			mutate(md)
			_, err := usecase.DecodeCheckoutMetadata(md)
			assert.True(t, errors.Is(err, usecase.ErrIncompatibleMetadata), "err=%v", err)
		})
	}
}

func TestDecodeCheckoutMetadata_SubscriptionWithoutCart(t *testing.T) {
	md, err := usecase.CheckoutMetadata{Type: usecase.MetadataTypePremiumSubscription, UserID: int64Ptr(5)}.Encode()
	require.NoError(t, err)

	out, err := usecase.DecodeCheckoutMetadata(md)
	require.NoError(t, err)
	assert.True(t, out.IsPremiumSubscription())
	assert.Empty(t, out.Cart)
}

// 大きいカートでも1値500文字以内に収まり、元に戻せる
func TestCheckoutMetadata_LargeCartFitsValueLimit(t *testing.T) {
	cart := make([]usecase.CartLine, 50)
	var total int64
	for i := range cart {
		cart[i] = usecase.CartLine{ProductID: int64(1000 + i), Quantity: 99, UnitPrice: 12999}
		total += 99 * 12999
	}

	md, err := usecase.CheckoutMetadata{UserID: int64Ptr(1234), Cart: cart, TotalAmount: total}.Encode()
	require.NoError(t, err)

	assert.LessOrEqual(t, len(md), 50)
	for k, v := range md {
		assert.LessOrEqual(t, len(v), 500, "key %s", k)
		assert.LessOrEqual(t, len(k), 40, "key %s", k)
	}
	assert.NotContains(t, md, "cart")

	parts, err := strconv.Atoi(md["cart_parts"])
	require.NoError(t, err)
	assert.Greater(t, parts, 1)
	for i := 0; i < parts; i++ {
		assert.Contains(t, md, fmt.Sprintf("cart_%d", i))
	}

	out, err := usecase.DecodeCheckoutMetadata(md)
	require.NoError(t, err)
	assert.Equal(t, cart, out.Cart)
}

// 分割前に作られたセッションの "cart" キーも読める
func TestDecodeCheckoutMetadata_SingleCartKey(t *testing.T) {
	out, err := usecase.DecodeCheckoutMetadata(map[string]string{
		"schema_version": usecase.MetadataSchemaVersion,
		"cart":           `[{"productId":1,"quantity":2,"unitPrice":100}]`,
	})
	require.NoError(t, err)
	assert.Equal(t, []usecase.CartLine{{ProductID: 1, Quantity: 2, UnitPrice: 100}}, out.Cart)
}
