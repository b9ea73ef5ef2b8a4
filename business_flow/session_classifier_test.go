package businessflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amirphl/Yata-no-Kagami/models"
)

func TestClassifySessionType(t *testing.T) {
	tests := []struct {
		offering string
		want     models.SessionCategory
	}{
		{"KIDS COMBAT", models.SessionCategoryGroup},
		{"Private Boxing", models.SessionCategoryPrivate},
		{"PT 1:1", models.SessionCategoryPrivate},
		{"1 to 1 coaching", models.SessionCategoryPrivate},
		{"One-to-One Muay Thai", models.SessionCategoryPrivate},
		{"one to one", models.SessionCategoryPrivate},
		{"1-to-1", models.SessionCategoryPrivate},
		{"", models.SessionCategoryGroup},
		{"Open Mat", models.SessionCategoryGroup},
	}
	for _, tt := range tests {
		t.Run(tt.offering, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifySessionType(tt.offering))
		})
	}
}

func TestNormalizeSessionCategory(t *testing.T) {
	tests := []struct {
		raw  string
		want models.SessionCategory
	}{
		{"group", models.SessionCategoryGroup},
		{"Group Class", models.SessionCategoryGroup},
		{"", models.SessionCategoryGroup},
		{"semi-private", models.SessionCategoryPrivate},
		{"Private", models.SessionCategoryPrivate},
		{"Personal Training", models.SessionCategoryPrivate},
		{"PT", models.SessionCategoryPrivate},
		{" 1:1 ", models.SessionCategoryPrivate},
		{"1-1", models.SessionCategoryPrivate},
		{"something else", models.SessionCategoryGroup},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSessionCategory(tt.raw))
		})
	}
}
