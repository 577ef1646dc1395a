package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/vladimiradmaev/dish-journal/internal/errors"
)

const (
	MinServings = 0.01
	MaxServings = 10.0

	UnknownDish = "Unknown"
)

// Metadata keys
const (
	keySelectedDish        = "selected_dish"
	keySelectedServingSize = "selected_serving_size"
	keyNumberOfServings    = "number_of_servings"
	keyMetadataModified    = "metadata_modified"
	keyConfirmedDishName   = "confirmed_dish_name"
	keyConfirmedComponents = "confirmed_components"
)

// Metadata holds the user-controllable facts of an iteration. It is kept as a
// map because key presence matters: two-step iterations start with an empty
// object while simple iterations carry explicit nulls.
type Metadata map[string]any

// DefaultMetadata derives the auto-detected metadata for an analysis result.
func DefaultMetadata(analysis Document) Metadata {
	// An empty dish_name is kept; only a missing or non-string one defaults.
	dish, ok := analysis["dish_name"].(string)
	if !ok {
		dish = UnknownDish
	}
	return Metadata{
		keySelectedDish:        dish,
		keySelectedServingSize: nil,
		keyNumberOfServings:    1.0,
		keyMetadataModified:    false,
	}
}

func (m Metadata) Clone() Metadata {
	return Metadata(Document(m).Clone())
}

func (m Metadata) SelectedDish() string {
	s, _ := m[keySelectedDish].(string)
	return s
}

// SelectedServingSize returns nil when no serving size was chosen.
func (m Metadata) SelectedServingSize() *string {
	if s, ok := m[keySelectedServingSize].(string); ok {
		return &s
	}
	return nil
}

func (m Metadata) NumberOfServings() float64 {
	if f, ok := toFloat(m[keyNumberOfServings]); ok {
		return f
	}
	return 1.0
}

func (m Metadata) Modified() bool {
	b, _ := m[keyMetadataModified].(bool)
	return b
}

func (m Metadata) ConfirmedDishName() string {
	s, _ := m[keyConfirmedDishName].(string)
	return s
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(m))
}

// MetadataUpdate is a user correction applied to the current iteration.
type MetadataUpdate struct {
	SelectedDish        string  `json:"selected_dish"`
	SelectedServingSize string  `json:"selected_serving_size"`
	NumberOfServings    float64 `json:"number_of_servings"`
}

func (u MetadataUpdate) Validate() error {
	if strings.TrimSpace(u.SelectedDish) == "" {
		return apperrors.NewValidationError("selected_dish is required")
	}
	if strings.TrimSpace(u.SelectedServingSize) == "" {
		return apperrors.NewValidationError("selected_serving_size is required")
	}
	return ValidateServings(u.NumberOfServings)
}

// Metadata converts the update into iteration metadata for a new analysis pass.
func (u MetadataUpdate) Metadata() Metadata {
	return Metadata{
		keySelectedDish:        u.SelectedDish,
		keySelectedServingSize: u.SelectedServingSize,
		keyNumberOfServings:    u.NumberOfServings,
	}
}

func ValidateServings(n float64) error {
	if !(n >= MinServings && n <= MaxServings) {
		return apperrors.NewValidationError(
			fmt.Sprintf("number_of_servings must be between %g and %g", MinServings, MaxServings)).
			With("number_of_servings", n)
	}
	return nil
}

// ConfirmedComponent is one component the user confirmed after step 1.
type ConfirmedComponent struct {
	ComponentName       string  `json:"component_name"`
	SelectedServingSize string  `json:"selected_serving_size"`
	NumberOfServings    float64 `json:"number_of_servings"`
}

func (c ConfirmedComponent) value() map[string]any {
	return map[string]any{
		"component_name":        c.ComponentName,
		"selected_serving_size": c.SelectedServingSize,
		"number_of_servings":    c.NumberOfServings,
	}
}

func parseComponents(v any) []ConfirmedComponent {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]ConfirmedComponent, 0, len(list))
	for _, e := range list {
		doc := asDocument(e)
		if doc == nil {
			continue
		}
		c := ConfirmedComponent{}
		c.ComponentName, _ = doc["component_name"].(string)
		c.SelectedServingSize, _ = doc["selected_serving_size"].(string)
		c.NumberOfServings, _ = toFloat(doc["number_of_servings"])
		out = append(out, c)
	}
	return out
}

func componentsValue(cs []ConfirmedComponent) []any {
	out := make([]any, len(cs))
	for i, c := range cs {
		out[i] = c.value()
	}
	return out
}

// ValidateConfirmation checks a step-1 confirmation before any state changes.
func ValidateConfirmation(dishName string, components []ConfirmedComponent) error {
	if strings.TrimSpace(dishName) == "" {
		return apperrors.NewValidationError("selected_dish_name is required")
	}
	if len(components) == 0 {
		return apperrors.NewValidationError("at least one component is required")
	}
	for i, c := range components {
		if strings.TrimSpace(c.ComponentName) == "" {
			return apperrors.NewValidationError(fmt.Sprintf("components[%d].component_name is required", i))
		}
		if strings.TrimSpace(c.SelectedServingSize) == "" {
			return apperrors.NewValidationError(fmt.Sprintf("components[%d].selected_serving_size is required", i))
		}
		if err := ValidateServings(c.NumberOfServings); err != nil {
			return err
		}
	}
	return nil
}
