package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pricewatch/pricewatch/internal/domain"
)

type fakeStore struct {
	lastSent    domain.Notification
	lastSentErr error
	created     []domain.Notification
}

func (f *fakeStore) Create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	n.ID = "notif-1"
	f.created = append(f.created, n)
	return n, nil
}

func (f *fakeStore) Update(ctx context.Context, n domain.Notification) error { return nil }

func (f *fakeStore) LastSent(ctx context.Context, productID string, alertID *string, since time.Time) (domain.Notification, error) {
	return f.lastSent, f.lastSentErr
}

func (f *fakeStore) ListOlderThan(ctx context.Context, before time.Time) ([]domain.Notification, error) {
	return nil, nil
}

func (f *fakeStore) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeChannel struct {
	name    string
	sendErr error
	sent    []Rendered
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) SendRendered(ctx context.Context, r Rendered) error {
	f.sent = append(f.sent, r)
	return f.sendErr
}

func testProduct() domain.Product {
	price := 80.0
	return domain.Product{ID: "prod-1", Name: "Widget", URL: "https://example.com/widget", CurrentPrice: &price}
}

func TestDispatchPriceAlertSendsWhenNoPriorNotification(t *testing.T) {
	store := &fakeStore{lastSentErr: errors.New("not found")}
	ch := &fakeChannel{name: "email"}
	d := NewDispatcher(store, ch)

	alert := domain.Alert{ID: "alert-1", Type: domain.AlertTypeTargetPrice}
	if err := d.DispatchPriceAlert(context.Background(), alert, testProduct(), nil); err != nil {
		t.Fatalf("DispatchPriceAlert returned error: %v", err)
	}
	if len(ch.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(ch.sent))
	}
	if len(store.created) != 1 || store.created[0].Status != domain.NotificationStatusSent {
		t.Fatalf("expected a SENT notification recorded, got %+v", store.created)
	}
}

func TestDispatchPriceAlertSuppressesDuplicateAtSamePrice(t *testing.T) {
	store := &fakeStore{lastSent: domain.Notification{
		ID:      "prior",
		Payload: domain.NotificationPayload{CurrentPrice: 80.0},
	}}
	ch := &fakeChannel{name: "email"}
	d := NewDispatcher(store, ch)

	alert := domain.Alert{ID: "alert-1", Type: domain.AlertTypeTargetPrice}
	if err := d.DispatchPriceAlert(context.Background(), alert, testProduct(), nil); err != nil {
		t.Fatalf("DispatchPriceAlert returned error: %v", err)
	}
	if len(ch.sent) != 0 {
		t.Fatalf("expected send to be suppressed, got %d sends", len(ch.sent))
	}
	if len(store.created) != 0 {
		t.Fatalf("expected no notification recorded for a suppressed duplicate, got %+v", store.created)
	}
}

func TestDispatchPriceAlertSuppressesWithinEpsilon(t *testing.T) {
	store := &fakeStore{lastSent: domain.Notification{
		ID:      "prior",
		Payload: domain.NotificationPayload{CurrentPrice: 80.005},
	}}
	ch := &fakeChannel{name: "email"}
	d := NewDispatcher(store, ch)

	alert := domain.Alert{ID: "alert-1", Type: domain.AlertTypeTargetPrice}
	if err := d.DispatchPriceAlert(context.Background(), alert, testProduct(), nil); err != nil {
		t.Fatalf("DispatchPriceAlert returned error: %v", err)
	}
	if len(ch.sent) != 0 {
		t.Fatalf("expected send within epsilon to be suppressed, got %d sends", len(ch.sent))
	}
}

func TestDispatchPriceAlertSendsWhenPriceDiffers(t *testing.T) {
	store := &fakeStore{lastSent: domain.Notification{
		ID:      "prior",
		Payload: domain.NotificationPayload{CurrentPrice: 95.0},
	}}
	ch := &fakeChannel{name: "email"}
	d := NewDispatcher(store, ch)

	alert := domain.Alert{ID: "alert-1", Type: domain.AlertTypeTargetPrice}
	if err := d.DispatchPriceAlert(context.Background(), alert, testProduct(), nil); err != nil {
		t.Fatalf("DispatchPriceAlert returned error: %v", err)
	}
	if len(ch.sent) != 1 {
		t.Fatalf("expected a legitimately different price to send, got %d sends", len(ch.sent))
	}
	if len(store.created) != 1 {
		t.Fatalf("expected a notification recorded, got %+v", store.created)
	}
}

func TestDispatchFallsBackToNextChannelOnFailure(t *testing.T) {
	store := &fakeStore{lastSentErr: errors.New("not found")}
	failing := &fakeChannel{name: "sms", sendErr: errors.New("down")}
	ok := &fakeChannel{name: "email"}
	d := NewDispatcher(store, failing, ok)

	alert := domain.Alert{ID: "alert-1", Type: domain.AlertTypeTargetPrice}
	if err := d.DispatchPriceAlert(context.Background(), alert, testProduct(), nil); err != nil {
		t.Fatalf("DispatchPriceAlert returned error: %v", err)
	}
	if len(failing.sent) != 1 || len(ok.sent) != 1 {
		t.Fatalf("expected both channels tried, failing=%d ok=%d", len(failing.sent), len(ok.sent))
	}
	if store.created[0].Status != domain.NotificationStatusSent || store.created[0].Channel != "email" {
		t.Fatalf("expected SENT via email channel, got %+v", store.created[0])
	}
}

func TestDispatchRecordsFailedWhenAllChannelsFail(t *testing.T) {
	store := &fakeStore{lastSentErr: errors.New("not found")}
	ch := &fakeChannel{name: "email", sendErr: errors.New("down")}
	d := NewDispatcher(store, ch)

	alert := domain.Alert{ID: "alert-1", Type: domain.AlertTypeTargetPrice}
	err := d.DispatchPriceAlert(context.Background(), alert, testProduct(), nil)
	if err == nil {
		t.Fatal("expected an error when all channels fail")
	}
	if len(store.created) != 1 || store.created[0].Status != domain.NotificationStatusFailed {
		t.Fatalf("expected a FAILED notification recorded, got %+v", store.created)
	}
}

func TestDispatchProductErrorUsesProductErrorTemplate(t *testing.T) {
	store := &fakeStore{lastSentErr: errors.New("not found")}
	ch := &fakeChannel{name: "email"}
	d := NewDispatcher(store, ch)

	product := testProduct()
	product.Status = domain.ProductStatusNeedsAttention
	if err := d.DispatchProductError(context.Background(), product); err != nil {
		t.Fatalf("DispatchProductError returned error: %v", err)
	}
	if len(ch.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(ch.sent))
	}
	if store.created[0].AlertID != nil {
		t.Fatalf("product_error notification should carry no alert ID, got %+v", store.created[0].AlertID)
	}
}

func TestDispatchStoreFlaggedBypassesDuplicateSuppression(t *testing.T) {
	store := &fakeStore{lastSent: domain.Notification{
		ID:      "prior",
		Payload: domain.NotificationPayload{CurrentPrice: 0},
	}}
	ch := &fakeChannel{name: "email"}
	d := NewDispatcher(store, ch)

	s := domain.Store{Domain: "amazon.ca", DisplayName: "Amazon", SuccessRate: 0.4}
	if err := d.DispatchStoreFlagged(context.Background(), s); err != nil {
		t.Fatalf("DispatchStoreFlagged returned error: %v", err)
	}
	if len(ch.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(ch.sent))
	}
}
