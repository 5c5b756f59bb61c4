package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/Moisinho/odym-ecommerce-sub000/internal/domain/model"
	repo "github.com/Moisinho/odym-ecommerce-sub000/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// premium members pay 70% of the list price
var premiumPriceFactor = decimal.RequireFromString("0.7")

const maxCartLines = 50

type CheckoutSettings struct {
	Currency          string
	FrontendURL       string
	PremiumPriceCents int64
}

type CheckoutUsecase struct {
	products repo.ProductRepository
	users    repo.UserRepository
	provider PaymentProvider
	settings CheckoutSettings
	clock    Clock
	record   func(operation string, success bool)
	log      *zap.Logger
}

func NewCheckoutUsecase(
	products repo.ProductRepository,
	users repo.UserRepository,
	provider PaymentProvider,
	settings CheckoutSettings,
	clock Clock,
	record func(operation string, success bool),
	log *zap.Logger,
) *CheckoutUsecase {
	if clock == nil {
		clock = SystemClock()
	}
	if record == nil {
		record = func(string, bool) {}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckoutUsecase{
		products: products,
		users:    users,
		provider: provider,
		settings: settings,
		clock:    clock,
		record:   record,
		log:      log,
	}
}

type CheckoutItemInput struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
}

type CreateSessionInput struct {
	Items         []CheckoutItemInput
	CustomerEmail string
	// nil for guests
	UserID *int64
}

type CreateSessionOutput struct {
	SessionID   string `json:"sessionId"`
	URL         string `json:"url"`
	TotalAmount int64  `json:"totalAmount"`
	Discounted  bool   `json:"discounted"`
}

type SessionStatusOutput struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	CustomerEmail string `json:"customerEmail"`
	AmountTotal   int64  `json:"amountTotal"`
	Currency      string `json:"currency"`
}

// CreateSession validates the cart against current stock and prices and opens a hosted checkout.
// Nothing is written locally; stock is only taken when the completed session is reconciled.
func (u *CheckoutUsecase) CreateSession(ctx context.Context, in CreateSessionInput) (CreateSessionOutput, error) {
	lines, err := mergeCartLines(in.Items)
	if err != nil {
		return CreateSessionOutput{}, err
	}

	email := strings.TrimSpace(in.CustomerEmail)
	if email == "" && in.UserID != nil {
		if user, err := u.users.FindByID(ctx, *in.UserID); err == nil {
			email = user.Email
		}
	}
	if !isEmail(email) {
		return CreateSessionOutput{}, ValidationError("valid customerEmail is required")
	}

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	found, err := u.products.FindByIDs(ctx, ids)
	if err != nil {
		return CreateSessionOutput{}, &HTTPError{Status: http.StatusInternalServerError, Message: "db error", Err: err}
	}
	byID := make(map[int64]model.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	//商品の存在チェック
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok || !p.IsActive {
			return CreateSessionOutput{}, ValidationError(fmt.Sprintf("product %d not found", l.ProductID))
		}
	}

	//在庫チェック（目安。確定時に再度条件付きで減算する）
	var issues []StockIssue
	for _, l := range lines {
		p := byID[l.ProductID]
		if l.Quantity > p.Stock {
			issues = append(issues, StockIssue{
				ProductID: p.ID,
				Name:      p.Name,
				Requested: l.Quantity,
				Available: p.Stock,
			})
		}
	}
	if len(issues) > 0 {
		return CreateSessionOutput{}, StockError(issues)
	}

	premium, err := u.isPremium(ctx, in.UserID, email)
	if err != nil {
		return CreateSessionOutput{}, err
	}

	items := make([]CheckoutLineItem, 0, len(lines))
	charged := make([]CartLine, 0, len(lines))
	var total int64
	for _, l := range lines {
		p := byID[l.ProductID]
		unit := p.Price
		if premium {
			unit = DiscountedPrice(p.Price)
		}
		items = append(items, CheckoutLineItem{
			Name:       p.Name,
			Images:     p.Images,
			UnitAmount: unit,
			Quantity:   l.Quantity,
		})
		charged = append(charged, CartLine{ProductID: p.ID, Quantity: l.Quantity, UnitPrice: unit})
		total += unit * l.Quantity
	}

	metadata, err := CheckoutMetadata{
		Type:        MetadataTypeStandard,
		UserID:      in.UserID,
		Cart:        charged,
		TotalAmount: total,
		Discounted:  premium,
	}.Encode()
	if err != nil {
		return CreateSessionOutput{}, &HTTPError{Status: http.StatusInternalServerError, Message: "internal error", Err: err}
	}

	sess, err := u.provider.CreateCheckoutSession(ctx, CreateSessionParams{
		LineItems:     items,
		Currency:      u.settings.Currency,
		SuccessURL:    u.successURL(),
		CancelURL:     u.cancelURL(),
		CustomerEmail: email,
		Metadata:      metadata,
	})
	if err != nil {
		u.record("create_checkout_session", false)
		u.log.Error("Failed to create checkout session", zap.String("email", email), zap.Error(err))
		return CreateSessionOutput{}, ExternalProviderError(err)
	}
	u.record("create_checkout_session", true)

	return CreateSessionOutput{
		SessionID:   sess.ID,
		URL:         sess.URL,
		TotalAmount: total,
		Discounted:  premium,
	}, nil
}

// CreateSubscriptionSession opens a hosted checkout for one premium period.
func (u *CheckoutUsecase) CreateSubscriptionSession(ctx context.Context, userID int64) (CreateSessionOutput, error) {
	if userID <= 0 {
		return CreateSessionOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if u.settings.PremiumPriceCents <= 0 {
		return CreateSessionOutput{}, NewHTTPError(http.StatusInternalServerError, "premium price not configured")
	}

	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repo.ErrUserNotFound) {
		return CreateSessionOutput{}, NotFoundError("user not found")
	}
	if err != nil {
		return CreateSessionOutput{}, &HTTPError{Status: http.StatusInternalServerError, Message: "db error", Err: err}
	}
	if user.Subscription.IsPremium(u.clock.Now()) {
		return CreateSessionOutput{}, NewHTTPError(http.StatusConflict, "subscription already active")
	}

	metadata, err := CheckoutMetadata{
		Type:        MetadataTypePremiumSubscription,
		UserID:      &userID,
		TotalAmount: u.settings.PremiumPriceCents,
	}.Encode()
	if err != nil {
		return CreateSessionOutput{}, &HTTPError{Status: http.StatusInternalServerError, Message: "internal error", Err: err}
	}

	sess, err := u.provider.CreateCheckoutSession(ctx, CreateSessionParams{
		LineItems: []CheckoutLineItem{{
			Name:       "Premium Subscription",
			UnitAmount: u.settings.PremiumPriceCents,
			Quantity:   1,
		}},
		Currency:      u.settings.Currency,
		SuccessURL:    u.successURL(),
		CancelURL:     u.cancelURL(),
		CustomerEmail: user.Email,
		Metadata:      metadata,
	})
	if err != nil {
		u.record("create_subscription_session", false)
		u.log.Error("Failed to create subscription session", zap.Int64("user_id", userID), zap.Error(err))
		return CreateSessionOutput{}, ExternalProviderError(err)
	}
	u.record("create_subscription_session", true)

	return CreateSessionOutput{
		SessionID:   sess.ID,
		URL:         sess.URL,
		TotalAmount: u.settings.PremiumPriceCents,
	}, nil
}

func (u *CheckoutUsecase) GetSessionStatus(ctx context.Context, sessionID string) (SessionStatusOutput, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return SessionStatusOutput{}, ValidationError("sessionId is required")
	}

	sess, err := u.provider.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return SessionStatusOutput{}, ExternalProviderError(err)
	}

	return SessionStatusOutput{
		ID:            sess.ID,
		Status:        sess.Status,
		PaymentStatus: sess.PaymentStatus,
		CustomerEmail: sess.CustomerEmail,
		AmountTotal:   sess.AmountTotal,
		Currency:      sess.Currency,
	}, nil
}

// DiscountedPrice applies the premium factor, rounding half up to the cent.
func DiscountedPrice(cents int64) int64 {
	return decimal.NewFromInt(cents).Mul(premiumPriceFactor).Round(0).IntPart()
}

// tier by user id first, then by email
func (u *CheckoutUsecase) isPremium(ctx context.Context, userID *int64, email string) (bool, error) {
	now := u.clock.Now()

	if userID != nil {
		user, err := u.users.FindByID(ctx, *userID)
		if err == nil {
			return user.Subscription.IsPremium(now), nil
		}
		if !errors.Is(err, repo.ErrUserNotFound) {
			return false, &HTTPError{Status: http.StatusInternalServerError, Message: "db error", Err: err}
		}
	}

	if email == "" {
		return false, nil
	}
	user, err := u.users.FindByEmail(ctx, email)
	if errors.Is(err, repo.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &HTTPError{Status: http.StatusInternalServerError, Message: "db error", Err: err}
	}
	return user.Subscription.IsPremium(now), nil
}

func (u *CheckoutUsecase) successURL() string {
	return strings.TrimRight(u.settings.FrontendURL, "/") + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"
}

func (u *CheckoutUsecase) cancelURL() string {
	return strings.TrimRight(u.settings.FrontendURL, "/") + "/cart"
}

// same product twice in one cart is one line
func mergeCartLines(items []CheckoutItemInput) ([]CheckoutItemInput, error) {
	if len(items) == 0 {
		return nil, ValidationError("cart is empty")
	}
	if len(items) > maxCartLines {
		return nil, ValidationError("too many cart lines")
	}

	merged := make([]CheckoutItemInput, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, it := range items {
		if it.ProductID <= 0 {
			return nil, ValidationError("invalid productId")
		}
		if it.Quantity <= 0 {
			return nil, ValidationError("quantity must be >= 1")
		}
		if i, ok := index[it.ProductID]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, it)
	}
	return merged, nil
}

func isEmail(s string) bool {
	if s == "" {
		return false
	}
	_, err := mail.ParseAddress(s)
	return err == nil
}
