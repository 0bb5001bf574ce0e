package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	shippingwebhook "github.com/loterodev/swapmarket-backend/internal/webhooks/shipping"
	pkgerrors "github.com/loterodev/swapmarket-backend/pkg/errors"
)

const testWebhookSecret = "whsec_test"

func TestShippingWebhook_SuccessAndIdempotent(t *testing.T) {
	payload, header := buildSignedShippingEvent(t, "shipment.delivered")
	service := &fakeShippingWebhookService{}
	guard := newTestGuard(t)
	handler := ShippingWebhook(service, testWebhookSecret, guard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shipping", bytes.NewReader(payload))
	req.Header.Set(signatureHeader, header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}

	// Replay the same event
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shipping", bytes.NewReader(payload))
	req2.Header.Set(signatureHeader, header)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d (%s)", rec2.Code, rec2.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected duplicate not processed, call count %d", service.calls)
	}
}

func TestShippingWebhook_InvalidSignature(t *testing.T) {
	payload, _ := buildSignedShippingEvent(t, "shipment.in_transit")
	service := &fakeShippingWebhookService{}
	handler := ShippingWebhook(service, testWebhookSecret, newTestGuard(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shipping", bytes.NewReader(payload))
	req.Header.Set(signatureHeader, "deadbeef")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for invalid signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be invoked on invalid signature")
	}
}

func TestShippingWebhook_MissingSignature(t *testing.T) {
	payload, _ := buildSignedShippingEvent(t, "shipment.in_transit")
	handler := ShippingWebhook(&fakeShippingWebhookService{}, testWebhookSecret, newTestGuard(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shipping", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing signature, got %d", rec.Code)
	}
}

func TestShippingWebhook_RetryableFailureUnmarksEvent(t *testing.T) {
	payload, header := buildSignedShippingEvent(t, "shipment.delivered")
	service := &fakeShippingWebhookService{
		err: pkgerrors.New(pkgerrors.CodeDependency, "db down"),
	}
	guard := newTestGuard(t)
	handler := ShippingWebhook(service, testWebhookSecret, guard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shipping", bytes.NewReader(payload))
	req.Header.Set(signatureHeader, header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 so the carrier retries, got %d", rec.Code)
	}

	// The carrier's retry must reach the service again.
	service.err = nil
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shipping", bytes.NewReader(payload))
	req2.Header.Set(signatureHeader, header)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected retry to succeed, got %d", rec2.Code)
	}
	if service.calls != 2 {
		t.Fatalf("expected retry to be processed, call count %d", service.calls)
	}
}

func buildSignedShippingEvent(t *testing.T, eventType string) ([]byte, string) {
	t.Helper()
	event := shippingwebhook.ShippingEvent{
		EventID:    "evt_" + uuid.NewString(),
		EventType:  eventType,
		SaleID:     uuid.New(),
		SellerID:   uuid.New(),
		OccurredAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(payload)
	return payload, hex.EncodeToString(mac.Sum(nil))
}

func newTestGuard(t *testing.T) *shippingwebhook.IdempotencyGuard {
	t.Helper()
	guard, err := shippingwebhook.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "shipping-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return guard
}

type fakeShippingWebhookService struct {
	calls int
	err   error
}

func (f *fakeShippingWebhookService) HandleEvent(ctx context.Context, event *shippingwebhook.ShippingEvent) error {
	f.calls++
	return f.err
}

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{
		data: make(map[string]string),
	}
}

func (s *inMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("sm:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}
