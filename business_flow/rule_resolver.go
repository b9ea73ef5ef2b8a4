package businessflow

import (
	"strings"

	"github.com/amirphl/Yata-no-Kagami/models"
)

// MinRuleMatchScore is the lowest fuzzy score accepted for a rule
const MinRuleMatchScore = 0.5

// FindMatchingRule selects the pricing rule for a membership label within one session category.
// Precedence: attendance alias exact, package name exact, best fuzzy score, category default.
// Returns nil when nothing applies. The returned rule is a copy.
func FindMatchingRule(membership string, category models.SessionCategory, rules []models.PricingRule) *models.PricingRule {
	candidates := rulesInCategory(rules, category)
	if len(candidates) == 0 {
		return nil
	}

	for _, r := range candidates {
		if CanonicalEqual(r.AttendanceAlias, membership) {
			return copyRule(r)
		}
	}
	for _, r := range candidates {
		if CanonicalEqual(r.PackageName, membership) {
			return copyRule(r)
		}
	}

	var best *models.PricingRule
	bestScore := 0.0
	for _, r := range candidates {
		if r.IsDefault() {
			continue
		}
		score := ruleScore(r, membership)
		if best == nil || score > bestScore {
			best, bestScore = copyRule(r), score
		}
	}
	if best != nil && bestScore >= MinRuleMatchScore {
		return best
	}

	for _, r := range candidates {
		if r.IsDefault() {
			return copyRule(r)
		}
	}
	return nil
}

func ruleScore(r models.PricingRule, membership string) float64 {
	if strings.TrimSpace(r.AttendanceAlias) != "" {
		if FuzzyContains(r.AttendanceAlias, membership) {
			return 2.0
		}
		return 1.5 * TextJaccard(r.AttendanceAlias, membership)
	}
	if FuzzyContains(r.PackageName, membership) {
		return 1.5
	}
	return TextJaccard(r.PackageName, membership)
}

func rulesInCategory(rules []models.PricingRule, category models.SessionCategory) []models.PricingRule {
	out := make([]models.PricingRule, 0, len(rules))
	for _, r := range rules {
		if NormalizeSessionCategory(string(r.SessionType)) == category {
			out = append(out, r)
		}
	}
	return out
}

func copyRule(r models.PricingRule) *models.PricingRule {
	if r.UnitPrice != nil {
		price := *r.UnitPrice
		r.UnitPrice = &price
	}
	return &r
}

// NormalizeRules returns the rules with session categories normalized and
// blank aliases filled from the package name. The input is not modified.
func NormalizeRules(rules []models.PricingRule) []models.PricingRule {
	out := make([]models.PricingRule, len(rules))
	for i, r := range rules {
		r.SessionType = NormalizeSessionCategory(string(r.SessionType))
		if strings.TrimSpace(r.AttendanceAlias) == "" {
			r.AttendanceAlias = r.PackageName
		}
		if strings.TrimSpace(r.PaymentMemoAlias) == "" {
			r.PaymentMemoAlias = r.PackageName
		}
		out[i] = *copyRule(r)
	}
	return out
}
