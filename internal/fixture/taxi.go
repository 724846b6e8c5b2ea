// Package fixture builds small deterministic datasets for tests.
package fixture

import (
	"math/rand/v2"
	"strconv"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/preprocessing"
	"github.com/ezoic/tabml/schema"
)

// TaxiSchema returns the taxi-fare schema. FareAmount is the label.
func TaxiSchema() *schema.Schema {
	s, err := schema.New(
		schema.Field{Name: "VendorId", Kind: model.KindString, Column: 0},
		schema.Field{Name: "RateCode", Kind: model.KindString, Column: 1},
		schema.Field{Name: "PassengerCount", Kind: model.KindFloat, Column: 2},
		schema.Field{Name: "TripDistance", Kind: model.KindFloat, Column: 3},
		schema.Field{Name: "PaymentType", Kind: model.KindString, Column: 4},
		schema.Field{Name: "FareAmount", Kind: model.KindFloat, Column: 5, Role: schema.RoleLabel},
	)
	if err != nil {
		panic(err)
	}
	return s
}

// TaxiStages returns the taxi-fare stage chain: copy the fare to Label,
// one-hot the categorical fields and concatenate everything into Features.
func TaxiStages() []model.Stage {
	return []model.Stage{
		preprocessing.NewCopy("Label", "FareAmount"),
		preprocessing.NewOneHotEncoder("VendorIdEncoded", "VendorId"),
		preprocessing.NewOneHotEncoder("RateCodeEncoded", "RateCode"),
		preprocessing.NewOneHotEncoder("PaymentTypeEncoded", "PaymentType"),
		preprocessing.NewConcat("Features",
			"VendorIdEncoded", "RateCodeEncoded", "PassengerCount", "TripDistance", "PaymentTypeEncoded"),
	}
}

var (
	vendors  = []string{"VTS", "CMT", "DDS"}
	rates    = []string{"1", "2", "5"}
	payments = []string{"CRD", "CSH"}
)

// TaxiRows returns n raw CSV rows. The fare is a noiseless function of the
// fields, so a linear model fits it almost exactly.
func TaxiRows(n int, seed uint64) [][]string {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	rows := make([][]string, n)
	for i := range rows {
		vendor := vendors[rng.IntN(len(vendors))]
		rate := rates[rng.IntN(len(rates))]
		payment := payments[rng.IntN(len(payments))]
		passengers := float64(1 + rng.IntN(4))
		distance := float64(rng.IntN(200)) / 10

		fare := 2.5 + 2.5*distance + 0.5*passengers
		if rate == "2" {
			fare += 10
		}
		if vendor == "VTS" {
			fare += 1
		}
		if payment == "CSH" {
			fare -= 0.5
		}
		rows[i] = []string{
			vendor, rate,
			strconv.FormatFloat(passengers, 'f', -1, 32),
			strconv.FormatFloat(distance, 'f', -1, 32),
			payment,
			strconv.FormatFloat(fare, 'f', 2, 32),
		}
	}
	return rows
}

// TaxiRecords validates TaxiRows against TaxiSchema.
func TaxiRecords(n int, seed uint64) []schema.Record {
	s := TaxiSchema()
	rows := TaxiRows(n, seed)
	out := make([]schema.Record, len(rows))
	for i, row := range rows {
		rec, err := s.Validate(row, i)
		if err != nil {
			panic(err)
		}
		out[i] = rec
	}
	return out
}

// FraudSchema returns a small binary classification schema: two numeric
// features and a bool label.
func FraudSchema() *schema.Schema {
	s, err := schema.New(
		schema.Field{Name: "Amount", Kind: model.KindFloat, Column: 0},
		schema.Field{Name: "V1", Kind: model.KindFloat, Column: 1},
		schema.Field{Name: "Class", Kind: model.KindBool, Column: 2, Role: schema.RoleLabel},
	)
	if err != nil {
		panic(err)
	}
	return s
}

// FraudStages concatenates the numeric fields into Features.
func FraudStages() []model.Stage {
	return []model.Stage{preprocessing.NewConcat("Features", "Amount", "V1")}
}

// FraudRecords returns n records whose label is V1 > 0.
func FraudRecords(n int, seed uint64) []schema.Record {
	s := FraudSchema()
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]schema.Record, n)
	for i := range out {
		v1 := rng.NormFloat64()
		row := []string{
			strconv.FormatFloat(rng.Float64()*100, 'f', 2, 32),
			strconv.FormatFloat(v1, 'f', 4, 32),
			strconv.FormatBool(v1 > 0),
		}
		rec, err := s.Validate(row, i)
		if err != nil {
			panic(err)
		}
		out[i] = rec
	}
	return out
}
