package gateway

import (
	"context"
	"fmt"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"go.uber.org/zap"

	"github.com/proedge/enrollment-api/pkg/config"
	appErrors "github.com/proedge/enrollment-api/pkg/errors"
)

// Order is the subset of the gateway order we persist and hand to the client.
type Order struct {
	ID       string
	Amount   int64
	Currency string
}

// PaymentGateway creates orders and verifies settlement signatures.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, receipt string) (*Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
	VerifyWebhook(body []byte, signature string) bool
	KeyID() string
}

// RazorpayGateway adapts the Razorpay SDK. Amounts cross the boundary in
// whole currency units and are converted to the smallest unit (paise) here.
type RazorpayGateway struct {
	client        *razorpay.Client
	keyID         string
	keySecret     string
	webhookSecret string
	currency      string
	timeout       time.Duration
	logger        *zap.Logger
}

func NewRazorpayGateway(cfg config.RazorpayConfig, logger *zap.Logger) *RazorpayGateway {
	return &RazorpayGateway{
		client:        razorpay.NewClient(cfg.KeyID, cfg.KeySecret),
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		currency:      cfg.Currency,
		timeout:       cfg.OrderTimeout,
		logger:        logger,
	}
}

func (g *RazorpayGateway) KeyID() string {
	return g.keyID
}

// CreateOrder registers a payable order with the gateway. The SDK has no
// context support, so the call runs in a goroutine bounded by the configured
// timeout and the caller's context.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, receipt string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		body map[string]interface{}
		err  error
	}

	done := make(chan result, 1)
	go func() {
		body, err := g.client.Order.Create(map[string]interface{}{
			"amount":   amount * 100,
			"currency": g.currency,
			"receipt":  receipt,
		}, nil)
		done <- result{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		g.logger.Warn("gateway order creation timed out", zap.String("receipt", receipt))
		return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrGatewayUnavailable.Code,
			appErrors.ErrGatewayUnavailable.Status, "payment gateway did not respond in time")
	case res := <-done:
		if res.err != nil {
			g.logger.Error("gateway order creation failed", zap.String("receipt", receipt), zap.Error(res.err))
			return nil, appErrors.Wrap(res.err, appErrors.ErrGatewayUnavailable.Code,
				appErrors.ErrGatewayUnavailable.Status, "payment gateway rejected the order")
		}
		orderID, ok := res.body["id"].(string)
		if !ok || orderID == "" {
			return nil, appErrors.New(appErrors.ErrGatewayUnavailable.Code,
				appErrors.ErrGatewayUnavailable.Status,
				fmt.Sprintf("payment gateway returned malformed order: %v", res.body["id"]))
		}
		return &Order{ID: orderID, Amount: amount, Currency: g.currency}, nil
	}
}

func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifyPaymentSignature(g.keySecret, orderID, paymentID, signature)
}

func (g *RazorpayGateway) VerifyWebhook(body []byte, signature string) bool {
	return VerifyWebhookSignature(g.webhookSecret, body, signature)
}
