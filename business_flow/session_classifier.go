package businessflow

import (
	"strings"

	"github.com/amirphl/Yata-no-Kagami/models"
)

var privateOfferingMarkers = []string{
	"private",
	"1 to 1",
	"1-to-1",
	"1:1",
	"one to one",
	"one-to-one",
}

// ClassifySessionType derives the session category from an offering label
func ClassifySessionType(offering string) models.SessionCategory {
	label := strings.ToLower(offering)
	for _, marker := range privateOfferingMarkers {
		if strings.Contains(label, marker) {
			return models.SessionCategoryPrivate
		}
	}
	return models.SessionCategoryGroup
}

// NormalizeSessionCategory maps the labels used in rule tables onto a session category.
// Anything unrecognised, blank included, is a group session.
func NormalizeSessionCategory(raw string) models.SessionCategory {
	label := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case label == "":
		return models.SessionCategoryGroup
	case strings.Contains(label, "private"),
		strings.Contains(label, "personal"),
		label == "pt",
		label == "1-1",
		label == "1:1",
		strings.Contains(label, "1 to 1"),
		strings.Contains(label, "1-to-1"),
		strings.Contains(label, "one to one"):
		return models.SessionCategoryPrivate
	default:
		return models.SessionCategoryGroup
	}
}
