package observation

import (
	"time"

	"github.com/google/uuid"

	"github.com/stanleysince1993/MedicAI/internal/platform/fhir"
)

// Observation maps to the observations table. Rows are append-only.
type Observation struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	Code         string    `db:"code" json:"code"`
	ValueText    string    `db:"value_text" json:"value_text"`
	ValueNumeric *float64  `db:"value_numeric" json:"value_numeric,omitempty"`
	Unit         string    `db:"unit" json:"unit,omitempty"`
	EffectiveAt  time.Time `db:"effective_at" json:"effective_at"`
	Source       string    `db:"source" json:"source,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Input is one raw measurement as submitted by a device or client.
type Input struct {
	Code        string      `json:"code"`
	Value       interface{} `json:"value"`
	Unit        string      `json:"unit"`
	EffectiveAt *time.Time  `json:"effective_at"`
	Source      string      `json:"source"`
}

// Value returns the numeric value when the observation has one, else its text.
func (o *Observation) Value() interface{} {
	if o.ValueNumeric != nil {
		return *o.ValueNumeric
	}
	return o.ValueText
}

func (o *Observation) ToFHIR() map[string]interface{} {
	result := map[string]interface{}{
		"resourceType":      "Observation",
		"id":                o.ID.String(),
		"status":            "final",
		"code":              fhir.CodeableConcept{Coding: []fhir.Coding{{System: "urn:medicai:observation-code", Code: o.Code}}, Text: o.Code},
		"subject":           fhir.Reference{Reference: fhir.FormatReference("Patient", o.PatientID.String())},
		"effectiveDateTime": o.EffectiveAt.UTC().Format(time.RFC3339),
		"meta":              fhir.Meta{LastUpdated: o.CreatedAt},
	}
	if o.ValueNumeric != nil {
		result["valueQuantity"] = fhir.Quantity{Value: *o.ValueNumeric, Unit: o.Unit, System: "http://unitsofmeasure.org", Code: o.Unit}
	} else {
		result["valueString"] = o.ValueText
	}
	if o.Source != "" {
		result["device"] = fhir.Reference{Display: o.Source}
	}
	return result
}
