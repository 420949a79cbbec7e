package payment

import (
	"context"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

// StripeProvider реализует Provider поверх Stripe PaymentIntents
// с manual capture и выплатой на connected account за вычетом комиссии.
type StripeProvider struct {
	api    *client.API
	logger *zap.Logger
}

func NewStripeProvider(secretKey string, logger *zap.Logger) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)

	return &StripeProvider{
		api:    api,
		logger: logger,
	}
}

// toMinorUnits переводит сумму в минорные единицы валюты (центы)
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreateHold создаёт manual-capture PaymentIntent: средства блокируются,
// но не списываются до явного Capture
func (p *StripeProvider) CreateHold(ctx context.Context, req HoldRequest) (*Hold, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context:        ctx,
			IdempotencyKey: stripe.String(req.IdempotencyKey),
		},
		Amount:               stripe.Int64(toMinorUnits(req.Amount)),
		Currency:             stripe.String(req.Currency),
		CaptureMethod:        stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		ApplicationFeeAmount: stripe.Int64(toMinorUnits(req.PlatformFee)),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(req.DestinationAccount),
		},
		Description: stripe.String(req.Description),
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}

	intent, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	p.logger.Info("Payment hold created",
		zap.String("intent_id", intent.ID),
		zap.Int64("amount", intent.Amount),
		zap.String("currency", string(intent.Currency)),
	)

	return &Hold{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

// Capture списывает ранее заблокированные средства
func (p *StripeProvider) Capture(ctx context.Context, intentID string) (*CaptureResult, error) {
	params := &stripe.PaymentIntentCaptureParams{
		Params: stripe.Params{Context: ctx},
	}

	intent, err := p.api.PaymentIntents.Capture(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("capture payment intent: %w", err)
	}

	p.logger.Info("Payment captured",
		zap.String("intent_id", intent.ID),
		zap.Int64("amount_received", intent.AmountReceived),
	)

	return &CaptureResult{
		AmountCaptured: float64(intent.AmountReceived) / 100,
	}, nil
}

// Cancel отменяет hold до списания
func (p *StripeProvider) Cancel(ctx context.Context, intentID, reason string) error {
	params := &stripe.PaymentIntentCancelParams{
		Params:             stripe.Params{Context: ctx},
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonRequestedByCustomer)),
	}

	intent, err := p.api.PaymentIntents.Cancel(intentID, params)
	if err != nil {
		return fmt.Errorf("cancel payment intent: %w", err)
	}

	p.logger.Info("Payment hold canceled",
		zap.String("intent_id", intent.ID),
		zap.String("reason", reason),
	)

	return nil
}

// Refund возвращает средства после списания
func (p *StripeProvider) Refund(ctx context.Context, intentID, reason string) error {
	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(intentID),
	}

	refund, err := p.api.Refunds.New(params)
	if err != nil {
		return fmt.Errorf("refund payment intent: %w", err)
	}

	p.logger.Info("Payment refunded",
		zap.String("intent_id", intentID),
		zap.String("refund_id", refund.ID),
		zap.String("reason", reason),
	)

	return nil
}
