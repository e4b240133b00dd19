package rabbit

import (
	"context"
	"encoding/json"
	"time"

	"cart-order-service/internal/model"
	"cart-order-service/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentConsumer applies payment-gateway outcomes to the order state
// machine: success advances in_cart to paid and commits the coin
// reservation; failure or abandonment marks the order and restores the
// coins.
type PaymentConsumer struct {
	Service *service.OrderService
	log     *zap.Logger
}

func NewPaymentConsumer(s *service.OrderService, log *zap.Logger) *PaymentConsumer {
	return &PaymentConsumer{Service: s, log: log}
}

type PaymentEventMessage struct {
	CorrelationID string `json:"correlation_id"`
	Exchange      string `json:"exchange"`
	RoutingKey    string `json:"routing_key"`
	Message       struct {
		UserID    string `json:"userId"`
		PaymentID string `json:"paymentId"`
		Channel   string `json:"channel"`
		// success, failed or abandoned
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"message"`
}

func (c *PaymentConsumer) Handle(msg []byte) error {
	var event PaymentEventMessage
	if err := json.Unmarshal(msg, &event); err != nil {
		c.log.Error("failed to parse payment event", zap.Error(err))
		return err
	}
	if event.CorrelationID == "" {
		event.CorrelationID = uuid.NewString()
	}

	log := c.log.With(
		zap.String("correlation_id", event.CorrelationID),
		zap.String("user", event.Message.UserID),
		zap.String("status", event.Message.Status),
	)
	log.Info("payment event received")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var err error
	switch event.Message.Status {
	case "success":
		err = c.Service.CompleteCheckout(ctx, event.Message.UserID, model.PaymentDetails{
			Channel:   event.Message.Channel,
			PaymentID: event.Message.PaymentID,
			PaidAt:    time.Now().UTC(),
		})
	case "failed":
		err = c.Service.FailCheckout(ctx, event.Message.UserID, false, event.Message.Reason)
	case "abandoned":
		err = c.Service.FailCheckout(ctx, event.Message.UserID, true, event.Message.Reason)
	default:
		log.Warn("unknown payment event status, ignoring")
		return nil
	}

	if err != nil {
		log.Error("failed to apply payment event", zap.Error(err))
		return err
	}
	log.Info("payment event applied")
	return nil
}
