package notify

import (
	"fmt"

	"edtech-enrollment/internal/domain/model"
	"edtech-enrollment/internal/domain/ports/adapter"
	"edtech-enrollment/internal/infra/i18n"
)

// Render builds the operator alert text for n from the catalog.
func Render(tr *i18n.Translator, n adapter.Notification) string {
	switch n.Kind {
	case model.EventChargeSucceeded:
		if n.EnrollmentRef == "" {
			return tr.T("notify.charge_orphan", n.Key, FormatAmount(n.Amount, n.Currency), orDash(n.Email))
		}
		return tr.T("notify.charge_succeeded", n.Key, FormatAmount(n.Amount, n.Currency), orDash(n.Email))
	case model.EventSubscriptionCreated:
		return tr.T("notify.subscription_created", n.Key, orDash(n.EnrollmentRef), orDash(n.Email))
	case model.EventInvoicePaid:
		return tr.T("notify.invoice_paid", n.Key, FormatAmount(n.Amount, n.Currency), orDash(n.EnrollmentRef))
	case model.EventSubscriptionDisabled:
		return tr.T("notify.subscription_disabled", n.Key)
	default:
		return tr.T("notify.unknown", n.Kind, n.Key)
	}
}

// FormatAmount renders minor units as "GHS 750.00".
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s %s%d.%02d", currency, sign, minor/100, minor%100)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
