package usecase

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Moisinho/odym-ecommerce-sub000/internal/domain/model"
	repo "github.com/Moisinho/odym-ecommerce-sub000/internal/repository"

	"go.uber.org/zap"
)

type SubscriptionUsecase struct {
	users        repo.UserRepository
	products     repo.ProductRepository
	materializer *OrderMaterializer
	clock        Clock
	months       int
	boxSize      int
	log          *zap.Logger
}

func NewSubscriptionUsecase(
	users repo.UserRepository,
	products repo.ProductRepository,
	materializer *OrderMaterializer,
	clock Clock,
	months int,
	boxSize int,
	log *zap.Logger,
) *SubscriptionUsecase {
	if clock == nil {
		clock = SystemClock()
	}
	if months <= 0 {
		months = 1
	}
	if boxSize <= 0 {
		boxSize = 3
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SubscriptionUsecase{
		users:        users,
		products:     products,
		materializer: materializer,
		clock:        clock,
		months:       months,
		boxSize:      boxSize,
		log:          log,
	}
}

type ActivateInput struct {
	UserID  *int64
	Session CheckoutSession
}

type ActivateResult struct {
	Subscription     model.Subscription
	BoxOrder         MaterializeResult
	AlreadyProcessed bool
}

type SubscriptionOutput struct {
	Status    model.SubscriptionStatus `json:"subscription_status"`
	StartDate *time.Time               `json:"subscription_start_date"`
	EndDate   *time.Time               `json:"subscription_end_date"`
	IsPremium bool                     `json:"is_premium"`
}

// Activate turns on the buyer's subscription and materializes the premium box.
// A redelivered completion finds the box order by its derived reference and changes nothing.
func (u *SubscriptionUsecase) Activate(ctx context.Context, in ActivateInput) (ActivateResult, error) {
	if in.UserID == nil || *in.UserID <= 0 {
		return ActivateResult{}, ValidationError("subscription requires a registered user")
	}
	userID := *in.UserID

	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repo.ErrUserNotFound) {
		return ActivateResult{}, NotFoundError("user not found")
	}
	if err != nil {
		return ActivateResult{}, &HTTPError{Status: http.StatusInternalServerError, Message: "db error", Err: err}
	}

	existing, found, err := u.materializer.FindByPaymentRef(ctx, PremiumBoxRef(in.Session.PaymentRef()))
	if err != nil {
		return ActivateResult{}, err
	}
	if found {
		return ActivateResult{
			Subscription:     user.Subscription,
			BoxOrder:         existing,
			AlreadyProcessed: true,
		}, nil
	}

	now := u.clock.Now()
	end := now.AddDate(0, u.months, 0)
	sub := model.Subscription{
		SubscriptionStatus:    model.SubscriptionActive,
		SubscriptionStartDate: &now,
		SubscriptionEndDate:   &end,
		StripeCustomerID:      in.Session.CustomerID,
		StripeSubscriptionID:  in.Session.SubscriptionID,
	}
	if err := u.users.UpdateSubscription(ctx, userID, sub); err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return ActivateResult{}, NotFoundError("user not found")
		}
		return ActivateResult{}, &HTTPError{Status: http.StatusInternalServerError, Message: "db error", Err: err}
	}

	u.log.Info("Subscription activated",
		zap.Int64("user_id", userID),
		zap.Time("end_date", end),
	)

	//ボックスの中身: 在庫が多い順
	candidates, err := u.products.ListBoxCandidates(ctx, u.boxSize)
	if err != nil {
		return ActivateResult{}, OrderCreationError(err)
	}

	box, err := u.materializer.MaterializePremiumBox(ctx, PremiumBoxInput{
		UserID:   userID,
		Products: candidates,
		Session:  in.Session,
	})
	if err != nil {
		return ActivateResult{}, err
	}

	return ActivateResult{
		Subscription:     sub,
		BoxOrder:         box,
		AlreadyProcessed: box.AlreadyProcessed,
	}, nil
}

func (u *SubscriptionUsecase) GetMine(ctx context.Context, userID int64) (SubscriptionOutput, error) {
	if userID <= 0 {
		return SubscriptionOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repo.ErrUserNotFound) {
		return SubscriptionOutput{}, NotFoundError("not found")
	}
	if err != nil {
		return SubscriptionOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	now := u.clock.Now()
	return SubscriptionOutput{
		Status:    user.Subscription.EffectiveStatus(now),
		StartDate: user.Subscription.SubscriptionStartDate,
		EndDate:   user.Subscription.SubscriptionEndDate,
		IsPremium: user.Subscription.IsPremium(now),
	}, nil
}
