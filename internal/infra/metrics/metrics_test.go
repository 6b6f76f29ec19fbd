//go:build !integration

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWebhookCounters(t *testing.T) {
	before := testutil.ToFloat64(webhookEventsTotal.WithLabelValues("charge_succeeded", "applied"))
	IncWebhookEvent(" Charge_Succeeded ", "APPLIED")
	after := testutil.ToFloat64(webhookEventsTotal.WithLabelValues("charge_succeeded", "applied"))
	if after-before != 1 {
		t.Errorf("expected normalized labels to increment once, got delta %v", after-before)
	}
}

func TestPaymentRevenue(t *testing.T) {
	before := testutil.ToFloat64(paymentsRevenueTotal.WithLabelValues("ghs"))
	AddPaymentRevenue("GHS", 75000)
	if got := testutil.ToFloat64(paymentsRevenueTotal.WithLabelValues("ghs")) - before; got != 75000 {
		t.Errorf("expected 75000, got %v", got)
	}
}

func TestMustRegister_Idempotent(t *testing.T) {
	MustRegister()
	MustRegister()
}
