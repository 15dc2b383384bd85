package stripeclient

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

const testSecret = "whsec_test_secret"

func TestConstructEvent_ValidSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","customer":"cus_1","amount_total":500000,"payment_intent":"pi_1"}}}`)
	header := SignPayload(payload, testSecret, time.Now())

	event, err := ConstructEvent(payload, header, testSecret, DefaultWebhookTolerance)
	if err != nil {
		t.Fatalf("expected valid event, got %v", err)
	}
	if event.Kind() != EventCheckoutSessionCompleted {
		t.Fatalf("expected checkout session kind, got %v", event.Kind())
	}

	var object CheckoutSessionObject
	if err := unmarshalObject(event, &object); err != nil {
		t.Fatalf("failed to decode object: %v", err)
	}
	if object.PaymentIntentID() != "pi_1" {
		t.Fatalf("expected payment intent pi_1, got %q", object.PaymentIntentID())
	}
	if object.AmountTotal != 500000 {
		t.Fatalf("expected amount 500000, got %d", object.AmountTotal)
	}
}

func TestConstructEvent_ExpandedPaymentIntentObject(t *testing.T) {
	payload := []byte(`{"id":"evt_2","type":"checkout.session.completed","data":{"object":{"id":"cs_2","customer":"cus_2","amount_total":1000,"payment_intent":{"id":"pi_2"}}}}`)
	header := SignPayload(payload, testSecret, time.Now())

	event, err := ConstructEvent(payload, header, testSecret, DefaultWebhookTolerance)
	if err != nil {
		t.Fatalf("expected valid event, got %v", err)
	}

	var object CheckoutSessionObject
	if err := unmarshalObject(event, &object); err != nil {
		t.Fatalf("failed to decode object: %v", err)
	}
	if object.PaymentIntentID() != "pi_2" {
		t.Fatalf("expected payment intent pi_2, got %q", object.PaymentIntentID())
	}
}

func TestConstructEvent_RejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_3","type":"payout.paid","data":{"object":{"id":"po_1"}}}`)
	header := SignPayload(payload, "whsec_other", time.Now())

	if _, err := ConstructEvent(payload, header, testSecret, DefaultWebhookTolerance); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
}

func TestConstructEvent_RejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_4","type":"payout.paid","data":{"object":{"id":"po_1"}}}`)
	header := SignPayload(payload, testSecret, time.Now())
	tampered := []byte(`{"id":"evt_4","type":"payout.paid","data":{"object":{"id":"po_999"}}}`)

	if _, err := ConstructEvent(tampered, header, testSecret, DefaultWebhookTolerance); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
}

func TestConstructEvent_RejectsStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_5","type":"payout.failed","data":{"object":{"id":"po_2"}}}`)
	header := SignPayload(payload, testSecret, time.Now().Add(-1*time.Hour))

	if _, err := ConstructEvent(payload, header, testSecret, DefaultWebhookTolerance); !errors.Is(err, ErrTimestampTooOld) {
		t.Fatalf("expected stale timestamp rejection, got %v", err)
	}
}

func TestConstructEvent_RejectsMissingOrMalformedHeader(t *testing.T) {
	payload := []byte(`{"id":"evt_6","type":"payout.paid","data":{"object":{}}}`)

	if _, err := ConstructEvent(payload, "", testSecret, DefaultWebhookTolerance); !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("expected missing signature error, got %v", err)
	}
	if _, err := ConstructEvent(payload, "v1=deadbeef", testSecret, DefaultWebhookTolerance); !errors.Is(err, ErrMalformedSignature) {
		t.Fatalf("expected malformed signature error, got %v", err)
	}
}

func TestEventKind_UnknownTypeIsUnhandled(t *testing.T) {
	event := &Event{Type: "invoice.finalized"}
	if event.Kind() != EventUnhandled {
		t.Fatalf("expected unhandled kind, got %v", event.Kind())
	}
}

func TestPayoutObject_TransferIDPrefersMetadata(t *testing.T) {
	source := "tr_from_source"
	object := PayoutObject{
		ID:                "po_3",
		Metadata:          map[string]string{"transfer_id": "tr_from_meta"},
		SourceTransaction: &source,
	}
	if object.TransferID() != "tr_from_meta" {
		t.Fatalf("expected metadata transfer id, got %q", object.TransferID())
	}

	object.Metadata = nil
	if object.TransferID() != "tr_from_source" {
		t.Fatalf("expected source transaction fallback, got %q", object.TransferID())
	}
}

func unmarshalObject(event *Event, out interface{}) error {
	return json.Unmarshal(event.Data.Raw, out)
}
