package businessflow

import (
	"strings"
	"time"

	"github.com/amirphl/Yata-no-Kagami/models"
	"github.com/amirphl/Yata-no-Kagami/utils"
)

const (
	// MinPaymentMatchScore is the lowest combined date and text score accepted for a payment
	MinPaymentMatchScore = 1.1

	// paymentWindowDays is the widest calendar distance that still earns a date score
	paymentWindowDays = 7
)

// FindMatchingPayment selects the payment of the same customer that best explains an attendance.
// Returns nil when the attendance has no parsed time or no candidate reaches MinPaymentMatchScore.
func FindMatchingPayment(att models.AttendanceRecord, payments []models.PaymentRecord, rules []models.PricingRule) *models.PaymentRecord {
	if !att.HasEventTime() {
		return nil
	}
	customer := normalizeCustomerName(att.CustomerName)
	if customer == "" {
		return nil
	}

	aliases := paymentAliasesFor(ClassifySessionType(att.OfferingType), rules)

	var best *models.PaymentRecord
	bestScore := 0.0
	for i := range payments {
		p := payments[i]
		if !p.HasDate() || normalizeCustomerName(p.CustomerName) != customer {
			continue
		}
		score := dateScore(*att.EventTime, p) + textScore(att.MembershipName, p.Memo, aliases)
		if best == nil || score > bestScore {
			best, bestScore = &p, score
		}
	}
	if best == nil || bestScore < MinPaymentMatchScore {
		return nil
	}
	return best
}

func dateScore(eventTime time.Time, p models.PaymentRecord) float64 {
	switch {
	case utils.SameDay(eventTime, *p.PaidAt):
		return 1.0
	case utils.DaysApart(eventTime, *p.PaidAt) <= paymentWindowDays:
		return 0.7
	default:
		return 0
	}
}

func textScore(membership, memo string, aliases []string) float64 {
	for _, alias := range aliases {
		if CanonicalEqual(memo, alias) {
			return 2.0
		}
	}
	for _, alias := range aliases {
		if FuzzyContains(alias, memo) {
			return 1.8
		}
	}
	if FuzzyContains(membership, memo) {
		return 1.5
	}
	return TextJaccard(membership, memo)
}

func paymentAliasesFor(category models.SessionCategory, rules []models.PricingRule) []string {
	aliases := make([]string, 0, len(rules))
	for _, r := range rules {
		if NormalizeSessionCategory(string(r.SessionType)) != category {
			continue
		}
		if strings.TrimSpace(r.PaymentMemoAlias) != "" {
			aliases = append(aliases, r.PaymentMemoAlias)
		}
	}
	return aliases
}

func normalizeCustomerName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
