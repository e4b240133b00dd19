// setup.go
package rabbit

import (
	"cart-order-service/internal/service"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// SetupConsumers binds the payment-events queue and starts consuming. The
// payment gateway publishes to a fanout exchange; this service owns its own
// queue on it.
func SetupConsumers(ch *amqp091.Channel, svc *service.OrderService, log *zap.Logger) {
	consumer := NewPaymentConsumer(svc, log)

	q, err := ch.QueueDeclare(
		"cart_order_service_payments",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		log.Error("failed to declare payment queue", zap.Error(err))
		return
	}

	err = ch.QueueBind(
		q.Name,
		"", // fanout ignores the routing key
		"payment_events",
		false,
		nil,
	)
	if err != nil {
		log.Error("failed to bind payment exchange", zap.Error(err))
		return
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		log.Error("failed to consume payment queue", zap.Error(err))
		return
	}

	go func() {
		for m := range msgs {
			consumer.Handle(m.Body)
		}
	}()

	log.Info("subscribed to payment_events exchange", zap.String("queue", q.Name))
}
