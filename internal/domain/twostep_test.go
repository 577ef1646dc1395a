package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/vladimiradmaev/dish-journal/internal/errors"
)

func step1Result() Document {
	return Document{
		"dish_predictions": []any{map[string]any{"name": "Chicken Rice", "confidence": 0.9}},
		"components": []any{map[string]any{
			"component_name": "Rice",
			"serving_sizes":  []any{"1 cup"},
		}},
	}
}

func riceComponents() []ConfirmedComponent {
	return []ConfirmedComponent{{ComponentName: "Rice", SelectedServingSize: "1 cup", NumberOfServings: 1.0}}
}

func TestNewStep1PayloadShape(t *testing.T) {
	t.Parallel()

	r := step1Result()
	p := NewStep1Payload(r, later)

	assert.Equal(t, StateStep1Done, StateOf(p))
	assert.Equal(t, r, p.Iterations[0].Step1Data)
	assert.Equal(t, 1, p.CurrentIteration)

	out := decoded(t, p)
	assert.Equal(t, 1.0, out["step"])
	assert.Equal(t, false, out["step1_confirmed"])
	assert.Nil(t, out["step2_data"])
	assert.Contains(t, out, "step2_data")
	assert.NotContains(t, out, "confirmed_dish_name")

	it := out["iterations"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{}, it["metadata"])
	assert.Equal(t, 1.0, it["step"])
	assert.Nil(t, it["step2_data"])
	assert.NotContains(t, it, "analysis")
}

func TestTwoStepScenario(t *testing.T) {
	t.Parallel()

	p := roundTrip(t, NewStep1Payload(step1Result(), later))
	require.Equal(t, FormatTwoStep, p.Format)

	require.NoError(t, p.ConfirmStep1("Chicken Rice", riceComponents()))
	p = roundTrip(t, p)
	assert.Equal(t, StateStep1Confirmed, StateOf(p))
	assert.True(t, p.TwoStep.Step1Confirmed)
	assert.Nil(t, p.TwoStep.Step2Data)
	assert.Equal(t, "Chicken Rice", p.TwoStep.ConfirmedDishName)
	assert.Equal(t, riceComponents(), p.TwoStep.ConfirmedComponents)
	assert.Nil(t, p.Current().Step2Data)

	step2 := Document{"dish_name": "Chicken Rice", "calories_kcal": 500.0}
	require.NoError(t, p.ApplyStep2(step2))
	p = roundTrip(t, p)

	assert.Equal(t, StateStep2Done, StateOf(p))
	assert.Equal(t, 2, p.TwoStep.Step)
	assert.True(t, p.TwoStep.Step1Confirmed)
	require.Len(t, p.Iterations, 1)

	out := decoded(t, p)
	it := out["iterations"].([]any)[0].(map[string]any)
	assert.Equal(t, out["step2_data"], it["step2_data"])
	assert.Equal(t, 2.0, it["step"])
	assert.Equal(t, "Chicken Rice", it["step2_data"].(map[string]any)["dish_name"])

	md := it["metadata"].(map[string]any)
	assert.Equal(t, "Chicken Rice", md["confirmed_dish_name"])
	comps, err := json.Marshal(md["confirmed_components"])
	require.NoError(t, err)
	assert.JSONEq(t, `[{"component_name":"Rice","selected_serving_size":"1 cup","number_of_servings":1}]`, string(comps))

	assert.Equal(t, "Chicken Rice", p.Current().Result()["dish_name"])
}

func TestConfirmStep1Preconditions(t *testing.T) {
	t.Parallel()

	confirmed := NewStep1Payload(step1Result(), later)
	require.NoError(t, confirmed.ConfirmStep1("Chicken Rice", riceComponents()))

	done := NewStep1Payload(step1Result(), later)
	require.NoError(t, done.ConfirmStep1("Chicken Rice", riceComponents()))
	require.NoError(t, done.ApplyStep2(Document{}))

	tests := []struct {
		name    string
		payload *Payload
	}{
		{"no payload", nil},
		{"already confirmed", confirmed},
		{"step 2 done", done},
		{"single pass record", Initialize(Document{"dish_name": "Soup"}, nil, later)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.payload.ConfirmStep1("Other", riceComponents())
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidState))
		})
	}
	assert.Equal(t, "Chicken Rice", confirmed.TwoStep.ConfirmedDishName)
}

func TestApplyStep2Preconditions(t *testing.T) {
	t.Parallel()

	var none *Payload
	assert.True(t, apperrors.IsType(none.ApplyStep2(Document{}), apperrors.ErrorTypeInvalidState))

	unconfirmed := NewStep1Payload(step1Result(), later)
	assert.True(t, apperrors.IsType(unconfirmed.ApplyStep2(Document{}), apperrors.ErrorTypeInvalidState))
	assert.Nil(t, unconfirmed.TwoStep.Step2Data)

	single := Initialize(Document{}, nil, later)
	assert.True(t, apperrors.IsType(single.ApplyStep2(Document{}), apperrors.ErrorTypeInvalidState))
}

func TestApplyStep2WithInvalidPointerWritesTopLevelOnly(t *testing.T) {
	t.Parallel()

	p := NewStep1Payload(step1Result(), later)
	require.NoError(t, p.ConfirmStep1("Chicken Rice", riceComponents()))
	p.CurrentIteration = 7

	require.NoError(t, p.ApplyStep2(Document{"calories_kcal": 500.0}))
	assert.Equal(t, 2, p.TwoStep.Step)
	assert.Equal(t, 1, p.Iterations[0].Step)
	assert.Nil(t, p.Iterations[0].Step2Data)
}

func TestApplyStep2TargetsCurrentIterationAfterReanalysis(t *testing.T) {
	t.Parallel()

	p := NewStep1Payload(step1Result(), later)
	require.NoError(t, p.ConfirmStep1("Chicken Rice", riceComponents()))
	p.Append(Document{"dish_name": "Fried Rice"}, Metadata{"selected_dish": "Fried Rice"}, later)

	require.NoError(t, p.ApplyStep2(Document{"dish_name": "Chicken Rice"}))
	assert.Nil(t, p.Iterations[0].Step2Data)
	assert.Equal(t, 2, p.Iterations[1].Step)
	assert.Equal(t, "Chicken Rice", p.Iterations[1].Step2Data["dish_name"])
	assert.Equal(t, "Fried Rice", p.Iterations[1].Analysis["dish_name"])
}

func TestDefaultConfirmation(t *testing.T) {
	t.Parallel()

	r := step1Result()
	r["components"] = append(r["components"].([]any),
		map[string]any{"component_name": "Sauce", "serving_sizes": []any{}},
		map[string]any{"component_name": "Egg", "serving_sizes": []any{"1 egg", "2 eggs"}},
	)

	dish, comps, err := DefaultConfirmation(r)
	require.NoError(t, err)
	assert.Equal(t, "Chicken Rice", dish)
	assert.Equal(t, []ConfirmedComponent{
		{ComponentName: "Rice", SelectedServingSize: "1 cup", NumberOfServings: 1.0},
		{ComponentName: "Egg", SelectedServingSize: "1 egg", NumberOfServings: 1.0},
	}, comps)
}

func TestDefaultConfirmationRejectsIncompleteResults(t *testing.T) {
	t.Parallel()

	_, _, err := DefaultConfirmation(Document{"components": step1Result()["components"]})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, _, err = DefaultConfirmation(Document{"dish_predictions": step1Result()["dish_predictions"]})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}
