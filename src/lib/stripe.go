package lib

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

var stripeClient *stripe.Client

func GetStripeClient() *stripe.Client {
	if stripeClient != nil {
		return stripeClient
	}
	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	sc := stripe.NewClient(apiKey)
	stripeClient = sc

	return sc
}

func NewStripeClient(c *stripe.Client) {
	stripeClient = c
}

type ConnectedAccountState struct {
	AccountID        string
	DetailsSubmitted bool
	PayoutsEnabled   bool
}

type CreateChargeInput struct {
	Amount               float64
	PlatformFee          float64
	Currency             string
	DestinationAccountID string
	Metadata             map[string]string
}

type ChargeIntent struct {
	ID           string
	ClientSecret string
}

// PaymentProcessor is the narrow surface of the external processor the
// service actually uses. Swap with NewPaymentProcessor in tests.
type PaymentProcessor interface {
	CreateAccount(ctx context.Context, email string, metadata map[string]string) (string, error)
	CreateAccountLink(ctx context.Context, accountId string) (string, error)
	GetAccount(ctx context.Context, accountId string) (*ConnectedAccountState, error)
	CreateCharge(ctx context.Context, input *CreateChargeInput) (*ChargeIntent, error)
	GetBalance(ctx context.Context, accountId string) (available float64, pending float64, err error)
	CreatePayout(ctx context.Context, accountId string, amount float64, currency string) (string, error)
	VerifyWebhook(payload []byte, sigHeader string) (*stripe.Event, error)
}

var paymentProcessor PaymentProcessor

func GetPaymentProcessor() PaymentProcessor {
	if paymentProcessor != nil {
		return paymentProcessor
	}
	paymentProcessor = &stripeProcessor{client: GetStripeClient()}
	return paymentProcessor
}

func NewPaymentProcessor(p PaymentProcessor) {
	paymentProcessor = p
}

type stripeProcessor struct {
	client *stripe.Client
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (s *stripeProcessor) CreateAccount(ctx context.Context, email string, metadata map[string]string) (string, error) {
	acc, err := s.client.V1Accounts.Create(ctx, &stripe.AccountCreateParams{
		Type:     stripe.String("express"),
		Email:    stripe.String(email),
		Metadata: metadata,
		Capabilities: &stripe.AccountCreateCapabilitiesParams{
			CardPayments: &stripe.AccountCreateCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers: &stripe.AccountCreateCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
	})
	if err != nil {
		return "", err
	}
	return acc.ID, nil
}

func (s *stripeProcessor) CreateAccountLink(ctx context.Context, accountId string) (string, error) {
	accLink, err := s.client.V1AccountLinks.Create(ctx, &stripe.AccountLinkCreateParams{
		Account:    stripe.String(accountId),
		Type:       stripe.String("account_onboarding"),
		ReturnURL:  stripe.String(fmt.Sprint(os.Getenv("APP_HOST"), "/dashboard")),
		RefreshURL: stripe.String(fmt.Sprint(os.Getenv("APP_HOST"), "/callback/account/refresh")),
	})
	if err != nil {
		return "", err
	}
	return accLink.URL, nil
}

func (s *stripeProcessor) GetAccount(ctx context.Context, accountId string) (*ConnectedAccountState, error) {
	acc, err := s.client.V1Accounts.GetByID(ctx, accountId, nil)
	if err != nil {
		return nil, err
	}
	return &ConnectedAccountState{
		AccountID:        acc.ID,
		DetailsSubmitted: acc.DetailsSubmitted,
		PayoutsEnabled:   acc.PayoutsEnabled,
	}, nil
}

func (s *stripeProcessor) CreateCharge(ctx context.Context, input *CreateChargeInput) (*ChargeIntent, error) {
	pi, err := s.client.V1PaymentIntents.Create(ctx, &stripe.PaymentIntentCreateParams{
		Amount:               stripe.Int64(toCents(input.Amount)),
		Currency:             stripe.String(input.Currency),
		ApplicationFeeAmount: stripe.Int64(toCents(input.PlatformFee)),
		TransferData: &stripe.PaymentIntentCreateTransferDataParams{
			Destination: stripe.String(input.DestinationAccountID),
		},
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: input.Metadata,
	})
	if err != nil {
		return nil, err
	}
	return &ChargeIntent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (s *stripeProcessor) GetBalance(ctx context.Context, accountId string) (float64, float64, error) {
	bal, err := s.client.V1Balance.Retrieve(ctx, &stripe.BalanceRetrieveParams{
		Params: stripe.Params{StripeAccount: stripe.String(accountId)},
	})
	if err != nil {
		return 0, 0, err
	}
	var available, pending float64
	for _, a := range bal.Available {
		available += float64(a.Amount) / 100
	}
	for _, p := range bal.Pending {
		pending += float64(p.Amount) / 100
	}
	return available, pending, nil
}

func (s *stripeProcessor) CreatePayout(ctx context.Context, accountId string, amount float64, currency string) (string, error) {
	po, err := s.client.V1Payouts.Create(ctx, &stripe.PayoutCreateParams{
		Amount:   stripe.Int64(toCents(amount)),
		Currency: stripe.String(currency),
		Params:   stripe.Params{StripeAccount: stripe.String(accountId)},
	})
	if err != nil {
		return "", err
	}
	return po.ID, nil
}

func (s *stripeProcessor) VerifyWebhook(payload []byte, sigHeader string) (*stripe.Event, error) {
	whsecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, whsecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}
