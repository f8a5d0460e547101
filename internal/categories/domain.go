// Package categories manages the lot classifications referenced by stock.
package categories

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oceangate/oceangate/internal/shared"
)

// Category classifies stock lots by species and weight range.
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Species     string    `json:"species"`
	WeightRange string    `json:"weightRange"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Input carries the writable fields for create and update.
type Input struct {
	Name        string `json:"name" validate:"required,max=120"`
	Species     string `json:"species" validate:"required,max=120"`
	WeightRange string `json:"weightRange" validate:"required,max=120"`
}

func (in Input) normalize() Input {
	return Input{
		Name:        strings.TrimSpace(in.Name),
		Species:     strings.TrimSpace(in.Species),
		WeightRange: strings.TrimSpace(in.WeightRange),
	}
}

// ErrInUse indicates stock rows still reference the category.
var ErrInUse = fmt.Errorf("%w: category in use", shared.ErrValidation)

func inUseError(count int) error {
	return shared.Public(fmt.Sprintf("Cannot delete category. %d stock item(s) are using this category.", count), ErrInUse)
}
