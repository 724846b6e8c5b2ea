package config

import (
	"fmt"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/preprocessing"
	"github.com/ezoic/tabml/schema"
)

// Presets maps preset names to their constructors.
var Presets = map[string]func() *Config{
	"taxi-fare":         TaxiFare,
	"credit-card-fraud": CreditCardFraud,
}

// TaxiFare predicts a taxi fare from vendor, rate code, passenger count,
// trip distance and payment type with boosted trees.
func TaxiFare() *Config {
	c := &Config{
		Name: "taxi-fare",
		Task: model.TaskRegression.String(),
		Schema: []schema.FieldSpec{
			{Name: "VendorId", Kind: "string", Column: 0},
			{Name: "RateCode", Kind: "string", Column: 1},
			{Name: "PassengerCount", Kind: "float32", Column: 2},
			{Name: "TripTime", Kind: "float32", Column: 3, Role: string(schema.RoleIgnore)},
			{Name: "TripDistance", Kind: "float32", Column: 4},
			{Name: "PaymentType", Kind: "string", Column: 5},
			{Name: "FareAmount", Kind: "float32", Column: 6, Role: string(schema.RoleLabel)},
		},
		Stages: []preprocessing.Spec{
			{Kind: preprocessing.KindCopy, Output: "Label", Inputs: []string{"FareAmount"}},
			{Kind: preprocessing.KindOneHot, Output: "VendorIdEncoded", Inputs: []string{"VendorId"}},
			{Kind: preprocessing.KindOneHot, Output: "RateCodeEncoded", Inputs: []string{"RateCode"}},
			{Kind: preprocessing.KindOneHot, Output: "PaymentTypeEncoded", Inputs: []string{"PaymentType"}},
			{Kind: preprocessing.KindConcat, Output: "Features", Inputs: []string{
				"VendorIdEncoded", "RateCodeEncoded", "PassengerCount", "TripDistance", "PaymentTypeEncoded",
			}},
		},
		Backend: BackendConfig{
			Name: "fasttree",
			Params: model.Hyperparameters{
				"leaves":        50,
				"trees":         200,
				"min_per_leaf":  30,
				"learning_rate": 0.2,
			},
		},
	}
	c.ApplyDefaults()
	return c
}

// CreditCardFraud classifies card transactions from Time, V1..V28 and
// Amount into the bool Class label.
func CreditCardFraud() *Config {
	inputs := []string{"Time"}
	fields := []schema.FieldSpec{{Name: "Time", Kind: "float32", Column: 0}}
	for i := 1; i <= 28; i++ {
		name := fmt.Sprintf("V%d", i)
		inputs = append(inputs, name)
		fields = append(fields, schema.FieldSpec{Name: name, Kind: "float32", Column: i})
	}
	inputs = append(inputs, "Amount")
	fields = append(fields,
		schema.FieldSpec{Name: "Amount", Kind: "float32", Column: 29},
		schema.FieldSpec{Name: "Class", Kind: "bool", Column: 30, Role: string(schema.RoleLabel)},
	)

	c := &Config{
		Name:   "credit-card-fraud",
		Task:   model.TaskBinaryClassification.String(),
		Schema: fields,
		Stages: []preprocessing.Spec{
			{Kind: preprocessing.KindConcat, Output: "Features", Inputs: inputs},
		},
		Label:   "Class",
		Backend: BackendConfig{Name: "fasttree"},
	}
	c.ApplyDefaults()
	return c
}
