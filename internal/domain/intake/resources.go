package intake

import (
	"github.com/ehr/intake/internal/platform/fhir"
)

// Resource is one of the FHIR resource shapes the intake emits. Each variant
// carries only the elements this service populates.
type Resource interface {
	Type() string
}

func base(resourceType string) fhir.Resource {
	return fhir.Resource{ResourceType: resourceType}
}

type Patient struct {
	fhir.Resource
	Active    bool                `json:"active"`
	Name      []fhir.HumanName    `json:"name"`
	Telecom   []fhir.ContactPoint `json:"telecom,omitempty"`
	Gender    string              `json:"gender"`
	BirthDate string              `json:"birthDate"`
	Address   []fhir.Address      `json:"address"`
}

type ObservationComponent struct {
	Code        fhir.CodeableConcept `json:"code"`
	ValueString *string              `json:"valueString,omitempty"`
}

type Observation struct {
	fhir.Resource
	Status               string                 `json:"status"`
	Category             []fhir.CodeableConcept `json:"category,omitempty"`
	Code                 fhir.CodeableConcept   `json:"code"`
	Subject              fhir.Reference         `json:"subject"`
	EffectiveDateTime    string                 `json:"effectiveDateTime,omitempty"`
	ValueQuantity        *fhir.Quantity         `json:"valueQuantity,omitempty"`
	ValueString          *string                `json:"valueString,omitempty"`
	ValueBoolean         *bool                  `json:"valueBoolean,omitempty"`
	ValueCodeableConcept *fhir.CodeableConcept  `json:"valueCodeableConcept,omitempty"`
	Component            []ObservationComponent `json:"component,omitempty"`
	DerivedFrom          []fhir.Reference       `json:"derivedFrom,omitempty"`
	Note                 []fhir.Annotation      `json:"note,omitempty"`
}

type Goal struct {
	fhir.Resource
	Extension         []fhir.Extension      `json:"extension,omitempty"`
	LifecycleStatus   string                `json:"lifecycleStatus"`
	AchievementStatus *fhir.CodeableConcept `json:"achievementStatus,omitempty"`
	Description       fhir.CodeableConcept  `json:"description"`
	Subject           fhir.Reference        `json:"subject"`
	StartDate         string                `json:"startDate,omitempty"`
}

type Condition struct {
	fhir.Resource
	ClinicalStatus     fhir.CodeableConcept   `json:"clinicalStatus"`
	VerificationStatus fhir.CodeableConcept   `json:"verificationStatus"`
	Category           []fhir.CodeableConcept `json:"category"`
	Code               fhir.CodeableConcept   `json:"code"`
	Subject            fhir.Reference         `json:"subject"`
	RecordedDate       string                 `json:"recordedDate,omitempty"`
}

type Dosage struct {
	Text string `json:"text"`
}

type MedicationStatement struct {
	fhir.Resource
	Extension                 []fhir.Extension      `json:"extension,omitempty"`
	Status                    string                `json:"status"`
	Category                  *fhir.CodeableConcept `json:"category,omitempty"`
	MedicationCodeableConcept fhir.CodeableConcept  `json:"medicationCodeableConcept"`
	Subject                   fhir.Reference        `json:"subject"`
	DateAsserted              string                `json:"dateAsserted,omitempty"`
	Dosage                    []Dosage              `json:"dosage,omitempty"`
	Note                      []fhir.Annotation     `json:"note,omitempty"`
}

type Procedure struct {
	fhir.Resource
	Status  string               `json:"status"`
	Code    fhir.CodeableConcept `json:"code"`
	Subject fhir.Reference       `json:"subject"`
	Note    []fhir.Annotation    `json:"note,omitempty"`
}

type AllergyReaction struct {
	Manifestation []fhir.CodeableConcept `json:"manifestation"`
}

type AllergyIntolerance struct {
	fhir.Resource
	ClinicalStatus     fhir.CodeableConcept `json:"clinicalStatus"`
	VerificationStatus fhir.CodeableConcept `json:"verificationStatus"`
	Code               fhir.CodeableConcept `json:"code"`
	Patient            fhir.Reference       `json:"patient"`
	RecordedDate       string               `json:"recordedDate,omitempty"`
	Reaction           []AllergyReaction    `json:"reaction,omitempty"`
}

type MedicationRequest struct {
	fhir.Resource
	Identifier                []fhir.Identifier    `json:"identifier,omitempty"`
	Status                    string               `json:"status"`
	Intent                    string               `json:"intent"`
	MedicationCodeableConcept fhir.CodeableConcept `json:"medicationCodeableConcept"`
	Subject                   fhir.Reference       `json:"subject"`
	AuthoredOn                string               `json:"authoredOn,omitempty"`
	Note                      []fhir.Annotation    `json:"note,omitempty"`
}

type ServiceRequest struct {
	fhir.Resource
	Status     string               `json:"status"`
	Intent     string               `json:"intent"`
	Code       fhir.CodeableConcept `json:"code"`
	Subject    fhir.Reference       `json:"subject"`
	AuthoredOn string               `json:"authoredOn,omitempty"`
}

type ConsentProvision struct {
	Type string `json:"type"`
}

type Consent struct {
	fhir.Resource
	Status    string                 `json:"status"`
	Scope     fhir.CodeableConcept   `json:"scope"`
	Category  []fhir.CodeableConcept `json:"category"`
	Patient   fhir.Reference         `json:"patient"`
	DateTime  string                 `json:"dateTime,omitempty"`
	Provision *ConsentProvision      `json:"provision,omitempty"`
}

type InvoiceLineItem struct {
	Sequence                  int                  `json:"sequence"`
	ChargeItemCodeableConcept fhir.CodeableConcept `json:"chargeItemCodeableConcept"`
}

type Invoice struct {
	fhir.Resource
	Identifier []fhir.Identifier `json:"identifier,omitempty"`
	Status     string            `json:"status"`
	Subject    fhir.Reference    `json:"subject"`
	Date       string            `json:"date,omitempty"`
	LineItem   []InvoiceLineItem `json:"lineItem,omitempty"`
	TotalNet   *fhir.Money       `json:"totalNet,omitempty"`
	TotalGross *fhir.Money       `json:"totalGross,omitempty"`
}

type AppointmentParticipant struct {
	Actor  fhir.Reference `json:"actor"`
	Status string         `json:"status"`
}

type Appointment struct {
	fhir.Resource
	Status      string                   `json:"status"`
	Description string                   `json:"description,omitempty"`
	Created     string                   `json:"created,omitempty"`
	Participant []AppointmentParticipant `json:"participant"`
}

type Media struct {
	fhir.Resource
	Status          string          `json:"status"`
	Subject         fhir.Reference  `json:"subject"`
	CreatedDateTime string          `json:"createdDateTime,omitempty"`
	Content         fhir.Attachment `json:"content"`
}
