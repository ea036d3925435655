package notify

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pricewatch/pricewatch/internal/domain"
)

// duplicateSuppressionWindow is the minimum gap between two notifications
// for the same (product, alert) pair, regardless of how many times the
// underlying condition re-triggers within it (§8 testable property: no two
// SENT notifications for the same product/alert within 24h at the same
// price).
const duplicateSuppressionWindow = 24 * time.Hour

// duplicatePriceEpsilon is how close the new price must be to the last sent
// notification's price for the send to count as a duplicate. A repeat alert
// carrying a materially different price (e.g. a further markdown) is a new
// event and must not be suppressed (§4.12, §8).
const duplicatePriceEpsilon = 0.01

// RenderedSender is satisfied by channels that can deliver a pre-rendered
// template, e.g. *EmailChannel.
type RenderedSender interface {
	Name() string
	SendRendered(ctx context.Context, r Rendered) error
}

// Dispatcher renders and delivers alert-triggered notifications, persisting
// a Notification row per attempt and suppressing duplicates within
// duplicateSuppressionWindow.
type Dispatcher struct {
	store    domain.NotificationStore
	channels []RenderedSender
}

// NewDispatcher builds a Dispatcher over the given channels, tried in order
// until one accepts the send (§4.12 best-effort fan-out across channels).
func NewDispatcher(store domain.NotificationStore, channels ...RenderedSender) *Dispatcher {
	return &Dispatcher{store: store, channels: channels}
}

// DispatchPriceAlert renders and sends a price_alert or back_in_stock
// notification for a triggered Alert, recording delivery status.
func (d *Dispatcher) DispatchPriceAlert(ctx context.Context, alert domain.Alert, product domain.Product, previousPrice *float64) error {
	template := "price_alert"
	if alert.Type == domain.AlertTypeBackInStock {
		template = "back_in_stock"
	}
	price := 0.0
	if product.CurrentPrice != nil {
		price = *product.CurrentPrice
	}
	return d.dispatch(ctx, template, &alert.ID, product, domain.NotificationPayload{
		ProductName:   product.Name,
		CurrentPrice:  price,
		PreviousPrice: previousPrice,
		AlertType:     string(alert.Type),
	})
}

// DispatchProductError notifies that a product has exceeded its consecutive
// failure threshold and needs attention (§4.13).
func (d *Dispatcher) DispatchProductError(ctx context.Context, product domain.Product) error {
	return d.dispatch(ctx, "product_error", nil, product, domain.NotificationPayload{
		ProductName: product.Name,
	})
}

// DispatchStoreFlagged notifies that a store's rolling success rate has
// crossed the flagging threshold (§4.16).
func (d *Dispatcher) DispatchStoreFlagged(ctx context.Context, store domain.Store) error {
	n := domain.Notification{
		ProductID: store.Domain,
		Channel:   "",
		Status:    domain.NotificationStatusPending,
		Payload: domain.NotificationPayload{
			ProductName: store.DisplayName,
		},
	}
	rendered, err := RenderTemplate("store_flagged", TemplateContext{
		StoreDomain: store.Domain,
		SuccessRate: store.SuccessRate,
	})
	if err != nil {
		return err
	}
	return d.send(ctx, n, rendered)
}

func (d *Dispatcher) dispatch(ctx context.Context, template string, alertID *string, product domain.Product, payload domain.NotificationPayload) error {
	if d.store != nil {
		since := time.Now().Add(-duplicateSuppressionWindow)
		if last, err := d.store.LastSent(ctx, product.ID, alertID, since); err == nil && last.ID != "" {
			if math.Abs(last.Payload.CurrentPrice-payload.CurrentPrice) < duplicatePriceEpsilon {
				return nil
			}
		}
	}

	rendered, err := RenderTemplate(template, TemplateContext{
		ProductName:   product.Name,
		ProductURL:    product.URL,
		CurrentPrice:  payload.CurrentPrice,
		PreviousPrice: payload.PreviousPrice,
		AlertType:     payload.AlertType,
	})
	if err != nil {
		return err
	}

	n := domain.Notification{
		AlertID:   alertID,
		ProductID: product.ID,
		Status:    domain.NotificationStatusPending,
		Payload:   payload,
	}
	return d.send(ctx, n, rendered)
}

func (d *Dispatcher) send(ctx context.Context, n domain.Notification, rendered Rendered) error {
	var sendErr error
	sent := false
	for _, ch := range d.channels {
		n.Channel = ch.Name()
		if err := ch.SendRendered(ctx, rendered); err != nil {
			sendErr = err
			continue
		}
		sent = true
		break
	}

	now := time.Now()
	if sent {
		n.Status = domain.NotificationStatusSent
		n.SentAt = &now
	} else {
		n.Status = domain.NotificationStatusFailed
		if sendErr != nil {
			n.ErrorMessage = sendErr.Error()
		}
	}

	if d.store != nil {
		if _, err := d.store.Create(ctx, n); err != nil {
			return fmt.Errorf("notify: record notification: %w", err)
		}
	}

	if !sent {
		return fmt.Errorf("notify: all channels failed: %w", sendErr)
	}
	return nil
}
