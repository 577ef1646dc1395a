package domain

import (
	"time"

	apperrors "github.com/vladimiradmaev/dish-journal/internal/errors"
)

// AnalysisState is the position of a record in the two-step flow.
type AnalysisState string

const (
	StateAwaitingStep1  AnalysisState = "awaiting_step1"
	StateStep1Done      AnalysisState = "step1_done"
	StateStep1Confirmed AnalysisState = "step1_confirmed"
	StateStep2Done      AnalysisState = "step2_done"
	// StateAnalyzed is a record produced by the single pass flow or a legacy
	// writer; it takes no part in the two-step gate.
	StateAnalyzed AnalysisState = "analyzed"
)

// StateOf derives the flow state from a payload. A nil payload is awaiting
// step 1.
func StateOf(p *Payload) AnalysisState {
	switch {
	case p == nil:
		return StateAwaitingStep1
	case p.TwoStep == nil:
		return StateAnalyzed
	case p.TwoStep.Step >= 2:
		return StateStep2Done
	case p.TwoStep.Step1Confirmed:
		return StateStep1Confirmed
	default:
		return StateStep1Done
	}
}

// NewStep1Payload builds the payload written when component identification
// completes. The single iteration carries the same step fields and empty
// metadata.
func NewStep1Payload(step1 Document, now time.Time) *Payload {
	return &Payload{
		Format: FormatTwoStep,
		Iterations: []Iteration{{
			Number:    1,
			CreatedAt: NewTimestamp(now),
			Metadata:  Metadata{},
			Step:      1,
			Step1Data: step1,
		}},
		CurrentIteration: 1,
		TwoStep: &TwoStepState{
			Step:      1,
			Step1Data: step1,
		},
	}
}

// ConfirmStep1 records the user's confirmation ahead of the nutrition pass.
// Only a step 1 payload that has not been confirmed yet can be confirmed.
func (p *Payload) ConfirmStep1(dishName string, components []ConfirmedComponent) error {
	switch StateOf(p) {
	case StateStep1Done:
	case StateAwaitingStep1:
		return apperrors.NewInvalidStateError("step 1 analysis has not completed yet")
	case StateStep1Confirmed, StateStep2Done:
		return apperrors.NewInvalidStateError("step 1 has already been confirmed")
	default:
		return apperrors.NewInvalidStateError("record was not analyzed with the two-step flow")
	}

	p.TwoStep.Step1Confirmed = true
	p.TwoStep.ConfirmedDishName = dishName
	p.TwoStep.ConfirmedComponents = append([]ConfirmedComponent(nil), components...)
	return nil
}

// ApplyStep2 merges the nutrition result into the payload and, when the
// pointer is valid, into the current iteration. It never creates an
// iteration. The mirrored write targets whatever iteration is current at the
// time it runs.
func (p *Payload) ApplyStep2(step2 Document) error {
	switch StateOf(p) {
	case StateStep1Confirmed, StateStep2Done:
	case StateStep1Done:
		return apperrors.NewInvalidStateError("step 1 has not been confirmed")
	default:
		return apperrors.NewInvalidStateError("record has no step 1 analysis")
	}

	p.TwoStep.Step = 2
	p.TwoStep.Step2Data = step2
	p.TwoStep.Step1Confirmed = true

	it := p.Current()
	if it == nil {
		return nil
	}
	it.Step = 2
	it.Step2Data = step2
	if it.Metadata == nil {
		it.Metadata = Metadata{}
	}
	it.Metadata[keyConfirmedDishName] = p.TwoStep.ConfirmedDishName
	it.Metadata[keyConfirmedComponents] = componentsValue(p.TwoStep.ConfirmedComponents)
	return nil
}

// DefaultConfirmation derives a confirmation from a step 1 result: the top
// dish prediction and every component at its first suggested serving size
// with one serving. It fails when the result names no dish or no usable
// component.
func DefaultConfirmation(step1 Document) (string, []ConfirmedComponent, error) {
	var dish string
	if preds, ok := step1["dish_predictions"].([]any); ok && len(preds) > 0 {
		dish, _ = asDocument(preds[0]).String("name")
	}
	if dish == "" {
		return "", nil, apperrors.NewValidationError("step 1 result has no dish prediction")
	}

	list, _ := step1["components"].([]any)
	components := make([]ConfirmedComponent, 0, len(list))
	for _, e := range list {
		doc := asDocument(e)
		name, ok := doc.String("component_name")
		if !ok {
			continue
		}
		sizes, _ := doc["serving_sizes"].([]any)
		if len(sizes) == 0 {
			continue
		}
		size, _ := sizes[0].(string)
		if size == "" {
			continue
		}
		components = append(components, ConfirmedComponent{
			ComponentName:       name,
			SelectedServingSize: size,
			NumberOfServings:    1.0,
		})
	}
	if err := ValidateConfirmation(dish, components); err != nil {
		return "", nil, err
	}
	return dish, components, nil
}
