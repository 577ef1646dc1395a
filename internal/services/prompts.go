package services

import (
	"fmt"
	"strings"

	"github.com/vladimiradmaev/dish-journal/internal/domain"
)

const nutritionSchema = `{
  "dish_name": "string",
  "related_keywords": "comma separated keywords",
  "healthiness_score": 0,
  "healthiness_score_rationale": "string",
  "calories_kcal": 0,
  "fiber_g": 0,
  "carbs_g": 0,
  "protein_g": 0,
  "fat_g": 0,
  "micronutrients": ["string"]
}`

// Step1Prompt asks for dish candidates and their main components.
func Step1Prompt() string {
	return `You are a nutrition expert looking at a photo of a single dish.

TASK:
1. Predict the most likely dish names, best guess first
2. List the major nutrition components visible in the dish
3. For every component suggest a few realistic serving sizes, most likely first

Respond with a single JSON object and nothing else:
{
  "dish_predictions": [{"name": "string", "confidence": 0.0}],
  "components": [{"component_name": "string", "serving_sizes": ["string"]}]
}`
}

// Step2Prompt asks for the nutrition facts of a confirmed dish.
func Step2Prompt(dishName string, components []domain.ConfirmedComponent) string {
	var b strings.Builder
	for _, c := range components {
		fmt.Fprintf(&b, "- %s: %g x %s\n", c.ComponentName, c.NumberOfServings, c.SelectedServingSize)
	}
	return fmt.Sprintf(`You are a nutrition expert. The user confirmed the dish in the photo is %q
with these components:
%s
Estimate the nutrition facts for exactly these components and quantities.
Respond with a single JSON object and nothing else:
%s`, dishName, b.String(), nutritionSchema)
}

// ReanalysisPrompt asks for a fresh analysis constrained by user metadata.
func ReanalysisPrompt(u domain.MetadataUpdate) string {
	return fmt.Sprintf(`You are a nutrition expert. The user says the dish in the photo is %q,
served as %q, and they ate %g serving(s).
Estimate the nutrition facts for the total amount eaten.
Respond with a single JSON object and nothing else:
%s`, u.SelectedDish, u.SelectedServingSize, u.NumberOfServings, nutritionSchema)
}

// FullAnalysisPrompt is the single pass prompt used by the secondary provider.
func FullAnalysisPrompt() string {
	return `You are a nutrition expert. Identify the dish in the photo and estimate its nutrition facts
for the portion shown.
Respond with a single JSON object and nothing else:
` + nutritionSchema
}
