package intake

import (
	"time"

	"github.com/ehr/intake/internal/platform/fhir"
)

// Record kinds, one per builder. A kind names what a record means in the
// intake, which is finer than its FHIR resource type.
const (
	KindPatient                = "patient"
	KindWeight                 = "weight"
	KindHeight                 = "height"
	KindBMI                    = "bmi"
	KindWeightGoal             = "weight-goal"
	KindReasonGoal             = "reason-goal"
	KindCondition              = "condition"
	KindPrescriptionMedication = "prescription-medication"
	KindOTCMedication          = "otc-medication"
	KindWeightLossMedication   = "weight-loss-medication"
	KindSurgery                = "surgery"
	KindAllergy                = "allergy"
	KindGlucose                = "glucose"
	KindHemoglobinA1c          = "hemoglobin-a1c"
	KindBloodPressure          = "blood-pressure"
	KindHeartRate              = "heart-rate"
	KindStartingWeight         = "starting-weight"
	KindClinicianNote          = "clinician-note"
	KindPriorProgram           = "prior-program"
	KindLifestylePreferences   = "lifestyle-preferences"
	KindWillingness            = "willingness"
	KindWeightChange           = "weight-change"
	KindEligibility            = "eligibility"
	KindDisqualification       = "disqualification-reason"
	KindExclusivity            = "exclusivity-agreement"
	KindTreatmentRequest       = "treatment-request"
	KindSyncVisit              = "sync-visit"
	KindClearance              = "clearance"
	KindConsent                = "consent"
	KindInvoice                = "invoice"
	KindAppointment            = "appointment"
	KindMedia                  = "media"
)

// Record is one resource of a batch together with its internal id. The id is
// only meaningful inside the batch, as the urn:uuid fullUrl of its entry.
type Record struct {
	ID       string
	Kind     string
	Resource Resource
}

// FullURL returns the urn:uuid form other records use to reference r.
func (r Record) FullURL() string {
	return fhir.URNReference(r.ID)
}

// ResourceType is the FHIR type, which is also the repository collection the
// record is written to.
func (r Record) ResourceType() string {
	return r.Resource.Type()
}

// Reference returns a reference to r usable by other records in the batch.
func (r Record) Reference() fhir.Reference {
	return fhir.Reference{Reference: r.FullURL(), Type: r.ResourceType()}
}

// BuildContext carries what a builder may use besides the submission.
type BuildContext struct {
	// PatientID is the internal id generated for the batch's Patient before
	// any builder runs; Subject references it.
	PatientID string
	Subject   fhir.Reference
	Now       time.Time
	NewID     func() string

	built map[string][]Record
}

// Built returns the records produced earlier in the same batch for kind.
func (c BuildContext) Built(kind string) []Record {
	return c.built[kind]
}

func (c BuildContext) timestamp() string {
	return c.Now.UTC().Format(time.RFC3339)
}

func (c BuildContext) record(kind string, r Resource) Record {
	return Record{ID: c.NewID(), Kind: kind, Resource: r}
}

// Builder turns one part of a submission into records. Triggered is the only
// place that decides whether the kind appears in a batch; Build is called
// only when it returns true. Builders perform no I/O and never mutate the
// submission.
type Builder struct {
	Kind      string
	Triggered func(s *Submission) bool
	Build     func(s *Submission, ctx BuildContext) []Record
}

// Builders returns every builder in batch order.
func Builders() []Builder {
	return []Builder{
		patientBuilder(),
		weightBuilder(),
		heightBuilder(),
		bmiBuilder(),
		weightGoalBuilder(),
		reasonGoalBuilder(),
		conditionBuilder(),
		prescriptionMedicationBuilder(),
		otcMedicationBuilder(),
		weightLossMedicationBuilder(),
		surgeryBuilder(),
		allergyBuilder(),
		glucoseBuilder(),
		hemoglobinA1cBuilder(),
		bloodPressureBuilder(),
		heartRateBuilder(),
		startingWeightBuilder(),
		clinicianNoteBuilder(),
		priorProgramBuilder(),
		lifestylePreferencesBuilder(),
		willingnessBuilder(),
		weightChangeBuilder(),
		eligibilityBuilder(),
		disqualificationBuilder(),
		exclusivityBuilder(),
		treatmentRequestBuilder(),
		syncVisitBuilder(),
		clearanceBuilder(),
		consentBuilder(),
		invoiceBuilder(),
		appointmentBuilder(),
		mediaBuilder(),
	}
}
