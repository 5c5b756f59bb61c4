package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	MetadataSchemaVersion = "2"

	MetadataTypeStandard            = "standard"
	MetadataTypePremiumSubscription = "premium_subscription"

	metaKeyType          = "type"
	metaKeySchemaVersion = "schema_version"
	metaKeyCart          = "cart"
	metaKeyCartParts     = "cart_parts"
	metaKeyUserID        = "user_id"
	metaKeyTotalAmount   = "total_amount"
	metaKeyDiscounted    = "discounted"

	guestUserID = "guest"

	// Stripe の metadata 制限
	maxMetadataValueLen = 500
	maxMetadataKeys     = 50
)

// ErrIncompatibleMetadata means the session was created by a checkout with another payload schema.
var ErrIncompatibleMetadata = errors.New("incompatible checkout metadata")

// CartLine is one purchased line as it was charged.
type CartLine struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
	UnitPrice int64 `json:"unitPrice"`
}

// CheckoutMetadata travels inside the provider session so that completion can rebuild the order
// without reading mutable product prices again.
type CheckoutMetadata struct {
	Type          string
	SchemaVersion string
	UserID        *int64
	Cart          []CartLine
	TotalAmount   int64
	Discounted    bool
}

func (m CheckoutMetadata) IsPremiumSubscription() bool {
	return m.Type == MetadataTypePremiumSubscription
}

func (m CheckoutMetadata) Encode() (map[string]string, error) {
	typ := m.Type
	if typ == "" {
		typ = MetadataTypeStandard
	}

	out := map[string]string{
		metaKeyType:          typ,
		metaKeySchemaVersion: MetadataSchemaVersion,
		metaKeyUserID:        guestUserID,
		metaKeyTotalAmount:   strconv.FormatInt(m.TotalAmount, 10),
		metaKeyDiscounted:    strconv.FormatBool(m.Discounted),
	}
	if m.UserID != nil {
		out[metaKeyUserID] = strconv.FormatInt(*m.UserID, 10)
	}

	if len(m.Cart) > 0 {
		b, err := json.Marshal(m.Cart)
		if err != nil {
			return nil, fmt.Errorf("encode cart: %w", err)
		}
		//1値500文字までなので cart_0..cart_n に分割する
		parts := splitChunks(string(b), maxMetadataValueLen)
		if len(out)+len(parts)+1 > maxMetadataKeys {
			return nil, fmt.Errorf("encode cart: %d metadata parts exceed the key limit", len(parts))
		}
		for i, p := range parts {
			out[cartPartKey(i)] = p
		}
		out[metaKeyCartParts] = strconv.Itoa(len(parts))
	}
	return out, nil
}

func cartPartKey(i int) string {
	return metaKeyCart + "_" + strconv.Itoa(i)
}

func splitChunks(s string, size int) []string {
	var out []string
	for len(s) > size {
		out = append(out, s[:size])
		s = s[size:]
	}
	return append(out, s)
}

// joinCart reassembles the cart JSON. A single "cart" key is still read for sessions created before the split.
func joinCart(md map[string]string) (string, error) {
	raw := md[metaKeyCartParts]
	if raw == "" {
		return md[metaKeyCart], nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxMetadataKeys {
		return "", fmt.Errorf("%w: cart_parts %q", ErrIncompatibleMetadata, raw)
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		part, ok := md[cartPartKey(i)]
		if !ok || part == "" {
			return "", fmt.Errorf("%w: missing %s", ErrIncompatibleMetadata, cartPartKey(i))
		}
		b.WriteString(part)
	}
	return b.String(), nil
}

func DecodeCheckoutMetadata(md map[string]string) (CheckoutMetadata, error) {
	version := md[metaKeySchemaVersion]
	if version != MetadataSchemaVersion {
		return CheckoutMetadata{}, fmt.Errorf("%w: schema_version %q", ErrIncompatibleMetadata, version)
	}

	m := CheckoutMetadata{
		Type:          md[metaKeyType],
		SchemaVersion: version,
	}
	if m.Type == "" {
		m.Type = MetadataTypeStandard
	}

	rawUser := strings.TrimSpace(md[metaKeyUserID])
	if rawUser != "" && rawUser != guestUserID {
		id, err := strconv.ParseInt(rawUser, 10, 64)
		if err != nil || id <= 0 {
			return CheckoutMetadata{}, fmt.Errorf("%w: user_id %q", ErrIncompatibleMetadata, rawUser)
		}
		m.UserID = &id
	}

	if raw := md[metaKeyTotalAmount]; raw != "" {
		total, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return CheckoutMetadata{}, fmt.Errorf("%w: total_amount %q", ErrIncompatibleMetadata, raw)
		}
		m.TotalAmount = total
	}
	m.Discounted = md[metaKeyDiscounted] == "true"

	raw, err := joinCart(md)
	if err != nil {
		return CheckoutMetadata{}, err
	}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &m.Cart); err != nil {
			return CheckoutMetadata{}, fmt.Errorf("%w: cart: %v", ErrIncompatibleMetadata, err)
		}
	}
	if !m.IsPremiumSubscription() && len(m.Cart) == 0 {
		return CheckoutMetadata{}, fmt.Errorf("%w: empty cart", ErrIncompatibleMetadata)
	}
	for _, l := range m.Cart {
		if l.ProductID <= 0 || l.Quantity <= 0 || l.UnitPrice < 0 {
			return CheckoutMetadata{}, fmt.Errorf("%w: invalid cart line for product %d", ErrIncompatibleMetadata, l.ProductID)
		}
	}
	return m, nil
}
