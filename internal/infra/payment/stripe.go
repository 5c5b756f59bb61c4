package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Moisinho/odym-ecommerce-sub000/internal/domain/model"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/usecase"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
)

// StripeProvider implements usecase.PaymentProvider with hosted Checkout.
type StripeProvider struct {
	sessions      *session.Client
	webhookSecret string
	timeout       time.Duration
}

func NewStripeProvider(secretKey, webhookSecret string, timeout time.Duration) *StripeProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient: &http.Client{Timeout: timeout},
	})
	return &StripeProvider{
		sessions:      &session.Client{B: backend, Key: secretKey},
		webhookSecret: webhookSecret,
		timeout:       timeout,
	}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, in usecase.CreateSessionParams) (usecase.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(in.LineItems))
	for _, li := range in.LineItems {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(li.Name),
		}
		if len(li.Images) > 0 {
			productData.Images = stripe.StringSlice(li.Images)
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(in.Currency),
				UnitAmount:  stripe.Int64(li.UnitAmount),
				ProductData: productData,
			},
			Quantity: stripe.Int64(li.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:                     stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:                lineItems,
		SuccessURL:               stripe.String(in.SuccessURL),
		CancelURL:                stripe.String(in.CancelURL),
		BillingAddressCollection: stripe.String("required"),
		Metadata:                 in.Metadata,
	}
	if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	params.Context = ctx

	s, err := p.sessions.New(params)
	if err != nil {
		return usecase.CheckoutSession{}, fmt.Errorf("stripe create session: %w", err)
	}
	return toCheckoutSession(s), nil
}

func (p *StripeProvider) RetrieveCheckoutSession(ctx context.Context, sessionID string) (usecase.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := p.sessions.Get(sessionID, params)
	if err != nil {
		return usecase.CheckoutSession{}, fmt.Errorf("stripe retrieve session: %w", err)
	}
	return toCheckoutSession(s), nil
}

// ConstructEvent checks the Stripe-Signature header against the endpoint secret.
func (p *StripeProvider) ConstructEvent(payload []byte, signature string) (usecase.ProviderEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return usecase.ProviderEvent{}, err
	}

	out := usecase.ProviderEvent{ID: ev.ID, Type: string(ev.Type)}
	if out.Type == usecase.EventCheckoutSessionCompleted {
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			//署名は正しいので再送させない
			out.DecodeErr = fmt.Errorf("decode checkout session: %w", err)
			return out, nil
		}
		cs := toCheckoutSession(&s)
		out.Session = &cs
	}
	return out, nil
}

func toCheckoutSession(s *stripe.CheckoutSession) usecase.CheckoutSession {
	out := usecase.CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		Paid:          s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		CustomerEmail: s.CustomerEmail,
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		Metadata:      s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	if d := s.CustomerDetails; d != nil {
		if out.CustomerEmail == "" {
			out.CustomerEmail = d.Email
		}
		out.CustomerName = d.Name
		if a := d.Address; a != nil {
			out.ShippingAddress = model.ShippingAddress{
				Name:       d.Name,
				Line1:      a.Line1,
				Line2:      a.Line2,
				City:       a.City,
				State:      a.State,
				PostalCode: a.PostalCode,
				Country:    a.Country,
				Phone:      d.Phone,
			}
		}
	}
	return out
}
