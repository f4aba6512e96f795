package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	"github.com/ulaundry/laundry-api/internal/handler/helper"
	"github.com/ulaundry/laundry-api/internal/service"
)

// NotificationQueue receives every order event for email delivery.
const NotificationQueue = "laundry.order.notifications"

// Consumer turns order events into customer email.
type Consumer struct {
	url      string
	exchange string
	email    service.EmailService
}

func NewConsumer(url, exchange string, email service.EmailService) (*Consumer, error) {
	if url == "" {
		return nil, errors.New("broker URL is required for Consumer")
	}
	if email == nil {
		return nil, errors.New("EmailService is required for Consumer")
	}
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Consumer{url: url, exchange: exchange, email: email}, nil
}

// Run consumes until ctx is cancelled, reconnecting with exponential backoff.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			log.Printf("[Consumer] dial failed: %v; retrying in %s", err, backoff)
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[Consumer] consume loop ended: %v; reconnecting", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		log.Printf("[Consumer] set QoS failed: %v", err)
	}
	if err := ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if _, err := ch.QueueDeclare(NotificationQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(NotificationQueue, "order.#", c.exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}

	msgs, err := ch.Consume(NotificationQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(ctx, d.Body); err != nil {
				log.Printf("[Consumer] handle message failed: %v", err)
				// Do not requeue to avoid tight redelivery loops.
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle renders and sends the email for one event body.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var ev service.OrderEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Email == "" {
		return fmt.Errorf("order ID=%d event has no recipient", ev.OrderID)
	}

	subject := "Laundry order status updated"
	switch {
	case ev.Type == service.EventOrderPlaced:
		subject = "Order confirmation"
	case ev.Type == service.EventOrderStatusChanged && ev.Status == entity.StatusOrderPlaced:
		subject = "Payment received"
	}

	html, err := service.OrderStatusEmail(service.OrderEmailData{
		OrderID:      ev.OrderID,
		Name:         ev.Name,
		Status:       string(ev.Status),
		TotalClothes: ev.Items,
		Amount:       helper.FormatMinorUnits(ev.Amount),
		Currency:     ev.Currency,
	})
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := c.email.Send(ctx, ev.Email, subject, html); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	log.Printf("[Consumer] %s email sent for order ID=%d", ev.Type, ev.OrderID)
	return nil
}
