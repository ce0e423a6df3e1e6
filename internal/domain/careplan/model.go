package careplan

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stanleysince1993/MedicAI/internal/platform/fhir"
)

// Revision maps to the care_plan_revision table. A patient with at least one
// revision is considered under active care-plan management.
type Revision struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	Version     int        `db:"version" json:"version"`
	Status      string     `db:"status" json:"status"`
	OrderID     *uuid.UUID `db:"order_id" json:"order_id,omitempty"`
	FieldPath   string     `db:"field_path" json:"field_path"`
	Value       string     `db:"value" json:"value"`
	RevisedFrom *uuid.UUID `db:"revised_from" json:"revised_from,omitempty"`
	CreatedBy   string     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

func (r *Revision) ToFHIR() map[string]interface{} {
	result := map[string]interface{}{
		"resourceType": "CarePlan",
		"id":           r.ID.String(),
		"status":       r.Status,
		"intent":       "plan",
		"subject":      fhir.Reference{Reference: fhir.FormatReference("Patient", r.PatientID.String())},
		"created":      r.CreatedAt.UTC().Format(time.RFC3339),
		"meta": fhir.Meta{
			VersionID:   fmt.Sprintf("%d", r.Version),
			LastUpdated: r.CreatedAt,
		},
		"extension": []fhir.Extension{
			{URL: "urn:medicai:careplan-revision:field-path", ValueString: r.FieldPath},
			{URL: "urn:medicai:careplan-revision:value", ValueString: r.Value},
		},
	}
	if r.CreatedBy != "" {
		result["author"] = fhir.Reference{Reference: fhir.FormatReference("Practitioner", r.CreatedBy)}
	}
	if r.OrderID != nil {
		result["basedOn"] = []fhir.Reference{{Reference: fhir.FormatReference("ServiceRequest", r.OrderID.String())}}
	}
	if r.RevisedFrom != nil {
		result["replaces"] = []fhir.Reference{{Reference: fhir.FormatReference("CarePlan", r.RevisedFrom.String())}}
	}
	return result
}
