package fhirmodels

// Common FHIR value set constants and code systems emitted by the intake
// pipeline.

// Code systems.
const (
	SystemLOINC               = "http://loinc.org"
	SystemSNOMED              = "http://snomed.info/sct"
	SystemUCUM                = "http://unitsofmeasure.org"
	SystemObservationCategory = "http://terminology.hl7.org/CodeSystem/observation-category"
	SystemConditionClinical   = "http://terminology.hl7.org/CodeSystem/condition-clinical"
	SystemConditionVerStatus  = "http://terminology.hl7.org/CodeSystem/condition-ver-status"
	SystemConditionCategory   = "http://terminology.hl7.org/CodeSystem/condition-category"
	SystemAllergyClinical     = "http://terminology.hl7.org/CodeSystem/allergyintolerance-clinical"
	SystemAllergyVerification = "http://terminology.hl7.org/CodeSystem/allergyintolerance-verification"
	SystemConsentScope        = "http://terminology.hl7.org/CodeSystem/consentscope"
	SystemGoalAchievement     = "http://terminology.hl7.org/CodeSystem/goal-achievement"
	SystemURN                 = "urn:ietf:rfc:3986"
	SystemMedStatementCat     = "http://terminology.hl7.org/CodeSystem/medication-statement-category"
)

// Extension and identifier namespaces owned by this service.
const (
	NamespaceBase           = "https://intake.ehr.dev/fhir"
	CodeSystemIntake        = NamespaceBase + "/CodeSystem/intake"
	ExtensionGoalReasonCode = NamespaceBase + "/StructureDefinition/goal-reason-code"
	ExtensionLastDoseTiming = NamespaceBase + "/StructureDefinition/last-dose-timing"
	IdentifierProduct       = NamespaceBase + "/product"
	IdentifierPrice         = NamespaceBase + "/price"
	IdentifierSubscription  = NamespaceBase + "/subscription"
	IdentifierSubmission    = NamespaceBase + "/submission"
)

// ObservationCategory codes.
const (
	ObsCategoryVitalSigns    = "vital-signs"
	ObsCategoryLaboratory    = "laboratory"
	ObsCategorySocialHistory = "social-history"
	ObsCategorySurvey        = "survey"
)

// ObservationStatus codes.
const (
	ObsStatusFinal       = "final"
	ObsStatusPreliminary = "preliminary"
)

// ConditionClinicalStatus codes.
const (
	ConditionActive          = "active"
	ConditionProblemListItem = "problem-list-item"
	ConditionUnconfirmed     = "unconfirmed"
)

// AdministrativeGender codes.
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderOther   = "other"
	GenderUnknown = "unknown"
)

// Request and event statuses used by the intake graph.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusDraft     = "draft"
	StatusBooked    = "booked"
	StatusProposed  = "proposed"
	StatusAccepted  = "accepted"
	StatusIssued    = "issued"
	StatusBalanced  = "balanced"

	IntentOrder    = "order"
	IntentProposal = "proposal"

	ProvisionPermit = "permit"
	ProvisionDeny   = "deny"
)

// UCUM units.
const (
	UnitPound        = "[lb_av]"
	UnitInch         = "[in_i]"
	UnitBMI          = "kg/m2"
	UnitMilligramsDL = "mg/dL"
	UnitPercent      = "%"
)
