package intake

import (
	"math"
	"strings"

	"github.com/ehr/intake/internal/platform/fhir"
	"github.com/ehr/intake/pkg/fhirmodels"
)

// CalculateBMI derives body mass index from pounds and inches, rounded half
// away from zero to one decimal place.
func CalculateBMI(weightLb, heightIn float64) float64 {
	return math.Round(weightLb/(heightIn*heightIn)*703*10) / 10
}

func observationCategory(code string) []fhir.CodeableConcept {
	display := map[string]string{
		fhirmodels.ObsCategoryVitalSigns:    "Vital Signs",
		fhirmodels.ObsCategoryLaboratory:    "Laboratory",
		fhirmodels.ObsCategorySocialHistory: "Social History",
		fhirmodels.ObsCategorySurvey:        "Survey",
	}[code]
	return []fhir.CodeableConcept{fhir.Concept(fhirmodels.SystemObservationCategory, code, display)}
}

func intakeCode(code, display string) fhir.CodeableConcept {
	return fhir.Concept(fhirmodels.CodeSystemIntake, code, display)
}

func newObservation(ctx BuildContext, category string, code fhir.CodeableConcept) *Observation {
	return &Observation{
		Resource:          base("Observation"),
		Status:            fhirmodels.ObsStatusFinal,
		Category:          observationCategory(category),
		Code:              code,
		Subject:           ctx.Subject,
		EffectiveDateTime: ctx.timestamp(),
	}
}

func quantity(v float64, unit, ucum string) *fhir.Quantity {
	return &fhir.Quantity{Value: v, Unit: unit, System: fhirmodels.SystemUCUM, Code: ucum}
}

func text(s string) *string {
	return &s
}

func boolPtr(b bool) *bool {
	return &b
}

// Measurements.

func weightBuilder() Builder {
	return Builder{
		Kind:      KindWeight,
		Triggered: func(s *Submission) bool { return positive(s.Weight) },
		Build: func(s *Submission, ctx BuildContext) []Record {
			o := newObservation(ctx, fhirmodels.ObsCategoryVitalSigns, loinc(LOINCBodyWeight))
			o.ValueQuantity = quantity(*s.Weight, "lb", fhirmodels.UnitPound)
			return []Record{ctx.record(KindWeight, o)}
		},
	}
}

func heightBuilder() Builder {
	return Builder{
		Kind:      KindHeight,
		Triggered: func(s *Submission) bool { return positive(s.Height) },
		Build: func(s *Submission, ctx BuildContext) []Record {
			o := newObservation(ctx, fhirmodels.ObsCategoryVitalSigns, loinc(LOINCBodyHeight))
			o.ValueQuantity = quantity(*s.Height, "in", fhirmodels.UnitInch)
			return []Record{ctx.record(KindHeight, o)}
		},
	}
}

// bmiBuilder has no input of its own: the value is always derived from the
// same submission's weight and height, and the record points at both.
func bmiBuilder() Builder {
	return Builder{
		Kind:      KindBMI,
		Triggered: func(s *Submission) bool { return positive(s.Weight) && positive(s.Height) },
		Build: func(s *Submission, ctx BuildContext) []Record {
			o := newObservation(ctx, fhirmodels.ObsCategoryVitalSigns, loinc(LOINCBMI))
			o.ValueQuantity = quantity(CalculateBMI(*s.Weight, *s.Height), "kg/m2", fhirmodels.UnitBMI)
			for _, kind := range []string{KindWeight, KindHeight} {
				for _, r := range ctx.Built(kind) {
					o.DerivedFrom = append(o.DerivedFrom, r.Reference())
				}
			}
			return []Record{ctx.record(KindBMI, o)}
		},
	}
}

// Additional observations.

func glucoseBuilder() Builder {
	return Builder{
		Kind:      KindGlucose,
		Triggered: func(s *Submission) bool { return s.Glucose != nil },
		Build: func(s *Submission, ctx BuildContext) []Record {
			o := newObservation(ctx, fhirmodels.ObsCategoryLaboratory, loinc(LOINCGlucose))
			o.ValueQuantity = quantity(*s.Glucose, "mg/dL", fhirmodels.UnitMilligramsDL)
			return []Record{ctx.record(KindGlucose, o)}
		},
	}
}

func hemoglobinA1cBuilder() Builder {
	return Builder{
		Kind:      KindHemoglobinA1c,
		Triggered: func(s *Submission) bool { return s.HemoglobinA1c != nil },
		Build: func(s *Submission, ctx BuildContext) []Record {
			o := newObservation(ctx, fhirmodels.ObsCategoryLaboratory, loinc(LOINCHemoglobinA1c))
			o.ValueQuantity = quantity(*s.HemoglobinA1c, "%", fhirmodels.UnitPercent)
			return []Record{ctx.record(KindHemoglobinA1c, o)}
		},
	}
}

// Blood pressure and heart rate are patient-reported ranges, so they are kept
// as text rather than quantities.
func bloodPressureBuilder() Builder {
	return Builder{
		Kind:      KindBloodPressure,
		Triggered: func(s *Submission) bool { return hasText(s.BloodPressure) },
		Build: func(s *Submission, ctx BuildContext) []Record {
			o := newObservation(ctx, fhirmodels.ObsCategoryVitalSigns, loinc(LOINCBloodPressure))
			o.ValueString = text(strVal(s.BloodPressure))
			return []Record{ctx.record(KindBloodPressure, o)}
		},
	}
}

func heartRateBuilder() Builder {
	return Builder{
		Kind:      KindHeartRate,
		Triggered: func(s *Submission) bool { return hasText(s.HeartRate) },
		Build: func(s *Submission, ctx BuildContext) []Record {
			o := newObservation(ctx, fhirmodels.ObsCategoryVitalSigns, loinc(LOINCHeartRate))
			o.ValueString = text(strVal(s.HeartRate))
			return []Record{ctx.record(KindHeartRate, o)}
		},
	}
}

func startingWeightBuilder() Builder {
	return Builder{
		Kind:      KindStartingWeight,
		Triggered: func(s *Submission) bool { return positive(s.StartingWeight) },
		Build: func(s *Submission, ctx BuildContext) []Record {
			o := newObservation(ctx, fhirmodels.ObsCategoryVitalSigns, loinc(LOINCStartingWeight))
			o.ValueQuantity = quantity(*s.StartingWeight, "lb", fhirmodels.UnitPound)
			return []Record{ctx.record(KindStartingWeight, o)}
		},
	}
}

func clinicianNoteBuilder() Builder {
	return Builder{
		Kind:      KindClinicianNote,
		Triggered: func(s *Submission) bool { return hasText(s.NoteForClinician) },
		Build: func(s *Submission, ctx BuildContext) []Record {
			o := newObservation(ctx, fhirmodels.ObsCategorySocialHistory, loinc(LOINCClinicianNote))
			o.ValueString = text(strVal(s.NoteForClinician))
			return []Record{ctx.record(KindClinicianNote, o)}
		},
	}
}

func priorProgramBuilder() Builder {
	return Builder{
		Kind:      KindPriorProgram,
		Triggered: func(s *Submission) bool { return flagged(s.PriorProgram, s.PriorProgramDescription) },
		Build: func(s *Submission, ctx BuildContext) []Record {
			o := newObservation(ctx, fhirmodels.ObsCategorySocialHistory, intakeCode("prior-program", "Prior weight management program"))
			o.ValueString = text(strVal(s.PriorProgramDescription))
			return []Record{ctx.record(KindPriorProgram, o)}
		},
	}
}

func lifestylePreferencesBuilder() Builder {
	return Builder{
		Kind:      KindLifestylePreferences,
		Triggered: func(s *Submission) bool { return len(nonBlank(s.LifestylePreferences)) > 0 },
		Build: func(s *Submission, ctx BuildContext) []Record {
			o := newObservation(ctx, fhirmodels.ObsCategorySocialHistory, intakeCode("lifestyle-preferences", "Lifestyle and formulation preferences"))
			o.ValueString = text(strings.Join(nonBlank(s.LifestylePreferences), ", "))
			return []Record{ctx.record(KindLifestylePreferences, o)}
		},
	}
}

// Social history.

func willingnessBuilder() Builder {
	return Builder{
		Kind:      KindWillingness,
		Triggered: func(s *Submission) bool { return len(nonBlank(s.Willingness)) > 0 },
		Build: func(s *Submission, ctx BuildContext) []Record {
			o := newObservation(ctx, fhirmodels.ObsCategorySocialHistory, intakeCode("willingness", "Willingness to make lifestyle changes"))
			for _, w := range nonBlank(s.Willingness) {
				o.Component = append(o.Component, ObservationComponent{
					Code:        intakeCode("willingness-item", "Willing to"),
					ValueString: text(w),
				})
			}
			return []Record{ctx.record(KindWillingness, o)}
		},
	}
}

func weightChangeBuilder() Builder {
	return Builder{
		Kind:      KindWeightChange,
		Triggered: func(s *Submission) bool { return hasText(s.WeightChange12Months) },
		Build: func(s *Submission, ctx BuildContext) []Record {
			o := newObservation(ctx, fhirmodels.ObsCategorySocialHistory, intakeCode("weight-change-12m", "Weight change in the last 12 months"))
			o.ValueString = text(strVal(s.WeightChange12Months))
			return []Record{ctx.record(KindWeightChange, o)}
		},
	}
}

// Administrative observations.

func eligibilityBuilder() Builder {
	return Builder{
		Kind:      KindEligibility,
		Triggered: func(s *Submission) bool { return s.Eligible != nil },
		Build: func(s *Submission, ctx BuildContext) []Record {
			o := newObservation(ctx, fhirmodels.ObsCategorySurvey, intakeCode("eligibility", "Program eligibility"))
			o.ValueBoolean = boolPtr(*s.Eligible)
			return []Record{ctx.record(KindEligibility, o)}
		},
	}
}

func disqualificationBuilder() Builder {
	return Builder{
		Kind:      KindDisqualification,
		Triggered: func(s *Submission) bool { return hasText(s.DisqualificationReason) },
		Build: func(s *Submission, ctx BuildContext) []Record {
			o := newObservation(ctx, fhirmodels.ObsCategorySurvey, intakeCode("disqualification-reason", "Disqualification reason"))
			o.ValueString = text(strVal(s.DisqualificationReason))
			return []Record{ctx.record(KindDisqualification, o)}
		},
	}
}

func exclusivityBuilder() Builder {
	return Builder{
		Kind:      KindExclusivity,
		Triggered: func(s *Submission) bool { return s.ExclusivityAgreement != nil },
		Build: func(s *Submission, ctx BuildContext) []Record {
			o := newObservation(ctx, fhirmodels.ObsCategorySurvey, intakeCode("exclusivity-agreement", "Exclusivity agreement"))
			o.ValueBoolean = boolPtr(*s.ExclusivityAgreement)
			return []Record{ctx.record(KindExclusivity, o)}
		},
	}
}
