package intake

import (
	"strings"

	"github.com/ehr/intake/internal/platform/fhir"
	"github.com/ehr/intake/pkg/fhirmodels"
)

// CodeEntry maps a keyword found in free text to a controlled code.
type CodeEntry struct {
	Keyword string
	Code    string
	Display string
}

// CodeTable is an ordered keyword table. Order is significant: the first
// entry whose keyword occurs in the text wins, so broader keywords must come
// after the narrower ones they overlap with.
type CodeTable struct {
	System  string
	Entries []CodeEntry
}

// LookupCode returns the first entry whose keyword is a case-insensitive
// substring of text. ok is false when nothing matches; callers keep such
// records text-only.
func LookupCode(table CodeTable, text string) (CodeEntry, bool) {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return CodeEntry{}, false
	}
	for _, e := range table.Entries {
		if strings.Contains(lower, strings.ToLower(e.Keyword)) {
			return e, true
		}
	}
	return CodeEntry{}, false
}

// GoalReasonCodes tags a patient's stated reasons for treatment with SNOMED
// CT findings. "cardiovascular" precedes "heart" and "blood pressure" so a
// cardiovascular-risk reason is not read as hypertension.
var GoalReasonCodes = CodeTable{
	System: fhirmodels.SystemSNOMED,
	Entries: []CodeEntry{
		{Keyword: "cardiovascular", Code: "49601007", Display: "Disorder of cardiovascular system"},
		{Keyword: "heart", Code: "49601007", Display: "Disorder of cardiovascular system"},
		{Keyword: "blood pressure", Code: "38341003", Display: "Hypertensive disorder"},
		{Keyword: "hypertension", Code: "38341003", Display: "Hypertensive disorder"},
		{Keyword: "diabetes", Code: "44054006", Display: "Diabetes mellitus type 2"},
		{Keyword: "blood sugar", Code: "44054006", Display: "Diabetes mellitus type 2"},
		{Keyword: "weight", Code: "89362005", Display: "Weight loss"},
		{Keyword: "sleep apnea", Code: "78275009", Display: "Obstructive sleep apnea syndrome"},
		{Keyword: "cholesterol", Code: "55822004", Display: "Hyperlipidemia"},
		{Keyword: "energy", Code: "84229001", Display: "Fatigue"},
		{Keyword: "fatigue", Code: "84229001", Display: "Fatigue"},
		{Keyword: "joint pain", Code: "57676002", Display: "Joint pain"},
		{Keyword: "mood", Code: "35489007", Display: "Depressive disorder"},
		{Keyword: "metabolic", Code: "237602007", Display: "Metabolic syndrome X"},
		{Keyword: "obesity", Code: "414916001", Display: "Obesity"},
	},
}

// ConditionCodes adds a SNOMED CT coding to history entries whose text names
// a common weight-related comorbidity or exclusion.
var ConditionCodes = CodeTable{
	System: fhirmodels.SystemSNOMED,
	Entries: []CodeEntry{
		{Keyword: "type 1 diabetes", Code: "46635009", Display: "Diabetes mellitus type 1"},
		{Keyword: "type 2 diabetes", Code: "44054006", Display: "Diabetes mellitus type 2"},
		{Keyword: "prediabetes", Code: "714628002", Display: "Prediabetes"},
		{Keyword: "diabetes", Code: "73211009", Display: "Diabetes mellitus"},
		{Keyword: "hypertension", Code: "38341003", Display: "Hypertensive disorder"},
		{Keyword: "high blood pressure", Code: "38341003", Display: "Hypertensive disorder"},
		{Keyword: "sleep apnea", Code: "78275009", Display: "Obstructive sleep apnea syndrome"},
		{Keyword: "cholesterol", Code: "55822004", Display: "Hyperlipidemia"},
		{Keyword: "pancreatitis", Code: "75694006", Display: "Pancreatitis"},
		{Keyword: "thyroid cancer", Code: "363478007", Display: "Malignant tumor of thyroid gland"},
		{Keyword: "gallbladder", Code: "39621005", Display: "Gallbladder disorder"},
		{Keyword: "kidney", Code: "709044004", Display: "Chronic kidney disease"},
		{Keyword: "pregnan", Code: "77386006", Display: "Pregnancy"},
		{Keyword: "eating disorder", Code: "72366004", Display: "Eating disorder"},
		{Keyword: "depression", Code: "35489007", Display: "Depressive disorder"},
		{Keyword: "pcos", Code: "69878008", Display: "Polycystic ovary syndrome"},
		{Keyword: "fatty liver", Code: "197321007", Display: "Steatosis of liver"},
	},
}

// LOINC codes for the measurements the intake emits.
var (
	LOINCBodyWeight     = CodeEntry{Code: "29463-7", Display: "Body weight"}
	LOINCBodyHeight     = CodeEntry{Code: "8302-2", Display: "Body height"}
	LOINCBMI            = CodeEntry{Code: "39156-5", Display: "Body mass index (BMI) [Ratio]"}
	LOINCGlucose        = CodeEntry{Code: "2339-0", Display: "Glucose [Mass/volume] in Blood"}
	LOINCHemoglobinA1c  = CodeEntry{Code: "4548-4", Display: "Hemoglobin A1c/Hemoglobin.total in Blood"}
	LOINCBloodPressure  = CodeEntry{Code: "85354-9", Display: "Blood pressure panel with all children optional"}
	LOINCHeartRate      = CodeEntry{Code: "8867-4", Display: "Heart rate"}
	LOINCStartingWeight = CodeEntry{Code: "29463-7", Display: "Body weight at program start"}
	LOINCClinicianNote  = CodeEntry{Code: "48767-8", Display: "Annotation comment"}
	LOINCConsent        = CodeEntry{Code: "59284-0", Display: "Patient Consent"}
)

func (e CodeEntry) coding(system string) fhir.CodeableConcept {
	return fhir.Concept(system, e.Code, e.Display)
}

func loinc(e CodeEntry) fhir.CodeableConcept {
	return e.coding(fhirmodels.SystemLOINC)
}
