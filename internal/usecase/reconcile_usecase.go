package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type ReconcileUsecase struct {
	provider      PaymentProvider
	materializer  *OrderMaterializer
	subscriptions *SubscriptionUsecase
	record        func(operation string, success bool)
	log           *zap.Logger
}

func NewReconcileUsecase(
	provider PaymentProvider,
	materializer *OrderMaterializer,
	subscriptions *SubscriptionUsecase,
	record func(operation string, success bool),
	log *zap.Logger,
) *ReconcileUsecase {
	if record == nil {
		record = func(string, bool) {}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReconcileUsecase{
		provider:      provider,
		materializer:  materializer,
		subscriptions: subscriptions,
		record:        record,
		log:           log,
	}
}

type VerifyResult struct {
	Order            OrderOutput         `json:"order"`
	AlreadyProcessed bool                `json:"alreadyProcessed"`
	Subscription     *SubscriptionOutput `json:"subscription,omitempty"`
}

// HandleWebhook verifies the event signature and reconciles completed sessions.
// Only a signature failure is returned; anything after verification is logged and acknowledged.
func (u *ReconcileUsecase) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := u.provider.ConstructEvent(payload, signature)
	if err != nil {
		u.log.Warn("Webhook signature verification failed", zap.Error(err))
		return SignatureError(err)
	}

	if ev.DecodeErr != nil {
		u.record("webhook_reconcile", false)
		u.log.Error("Failed to decode webhook event",
			zap.String("event_id", ev.ID),
			zap.String("event_type", ev.Type),
			zap.Error(ev.DecodeErr),
		)
		return nil
	}

	if ev.Type != EventCheckoutSessionCompleted || ev.Session == nil {
		u.log.Info("Unhandled webhook event type",
			zap.String("event_id", ev.ID),
			zap.String("event_type", ev.Type),
		)
		return nil
	}

	sess := *ev.Session
	if !sess.Paid {
		u.log.Info("Checkout session completed without payment",
			zap.String("event_id", ev.ID),
			zap.String("session_id", sess.ID),
			zap.String("payment_status", sess.PaymentStatus),
		)
		return nil
	}

	res, err := u.dispatch(ctx, sess)
	if err != nil {
		u.record("webhook_reconcile", false)
		u.log.Error("Failed to reconcile checkout session",
			zap.String("event_id", ev.ID),
			zap.String("session_id", sess.ID),
			zap.String("payment_ref", sess.PaymentRef()),
			zap.Error(err),
		)
		return nil
	}

	u.record("webhook_reconcile", true)
	u.log.Info("Checkout session reconciled",
		zap.String("event_id", ev.ID),
		zap.String("session_id", sess.ID),
		zap.Int64("order_id", res.Order.ID),
		zap.Bool("already_processed", res.AlreadyProcessed),
	)
	return nil
}

// VerifySession is the polling alternative to the webhook.
func (u *ReconcileUsecase) VerifySession(ctx context.Context, sessionID string) (VerifyResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return VerifyResult{}, ValidationError("sessionId is required")
	}

	sess, err := u.provider.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return VerifyResult{}, ExternalProviderError(err)
	}
	if !sess.Paid {
		return VerifyResult{}, ValidationError("payment not completed")
	}

	res, err := u.dispatch(ctx, sess)
	if err != nil {
		u.record("verify_session", false)
		return VerifyResult{}, err
	}
	u.record("verify_session", true)
	return res, nil
}

func (u *ReconcileUsecase) dispatch(ctx context.Context, sess CheckoutSession) (VerifyResult, error) {
	md, err := DecodeCheckoutMetadata(sess.Metadata)
	if err != nil {
		if errors.Is(err, ErrIncompatibleMetadata) {
			return VerifyResult{}, &HTTPError{Status: http.StatusBadRequest, Message: "incompatible checkout metadata", Err: err}
		}
		return VerifyResult{}, err
	}

	if md.IsPremiumSubscription() {
		act, err := u.subscriptions.Activate(ctx, ActivateInput{UserID: md.UserID, Session: sess})
		if err != nil {
			return VerifyResult{}, err
		}
		now := u.subscriptions.clock.Now()
		return VerifyResult{
			Order:            toOrderOutput(act.BoxOrder.Order, act.BoxOrder.Items),
			AlreadyProcessed: act.AlreadyProcessed,
			Subscription: &SubscriptionOutput{
				Status:    act.Subscription.EffectiveStatus(now),
				StartDate: act.Subscription.SubscriptionStartDate,
				EndDate:   act.Subscription.SubscriptionEndDate,
				IsPremium: act.Subscription.IsPremium(now),
			},
		}, nil
	}

	res, err := u.materializer.MaterializeStandard(ctx, StandardOrderInput{
		UserID:  md.UserID,
		Cart:    md.Cart,
		Session: sess,
	})
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{
		Order:            toOrderOutput(res.Order, res.Items),
		AlreadyProcessed: res.AlreadyProcessed,
	}, nil
}
