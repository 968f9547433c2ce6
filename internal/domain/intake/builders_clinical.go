package intake

import (
	"github.com/ehr/intake/internal/platform/fhir"
	"github.com/ehr/intake/pkg/fhirmodels"
)

// Goals.

func newGoal(ctx BuildContext, description string) *Goal {
	achievement := fhir.Concept(fhirmodels.SystemGoalAchievement, "in-progress", "In Progress")
	return &Goal{
		Resource:          base("Goal"),
		LifecycleStatus:   fhirmodels.StatusActive,
		AchievementStatus: &achievement,
		Description:       fhir.TextConcept(description),
		Subject:           ctx.Subject,
		StartDate:         ctx.Now.UTC().Format("2006-01-02"),
	}
}

func weightGoalBuilder() Builder {
	return Builder{
		Kind:      KindWeightGoal,
		Triggered: func(s *Submission) bool { return hasText(s.WeightGoal) },
		Build: func(s *Submission, ctx BuildContext) []Record {
			return []Record{ctx.record(KindWeightGoal, newGoal(ctx, strVal(s.WeightGoal)))}
		},
	}
}

// reasonGoalBuilder emits one Goal per main reason. A reason that matches the
// keyword table gets the code as an extension; one that does not stays
// text-only.
func reasonGoalBuilder() Builder {
	return Builder{
		Kind:      KindReasonGoal,
		Triggered: func(s *Submission) bool { return len(nonBlank(s.MainReasons)) > 0 },
		Build: func(s *Submission, ctx BuildContext) []Record {
			reasons := nonBlank(s.MainReasons)
			out := make([]Record, 0, len(reasons))
			for _, reason := range reasons {
				g := newGoal(ctx, reason)
				if e, ok := LookupCode(GoalReasonCodes, reason); ok {
					cc := e.coding(GoalReasonCodes.System)
					cc.Text = reason
					g.Extension = append(g.Extension, fhir.Extension{
						URL:                  fhirmodels.ExtensionGoalReasonCode,
						ValueCodeableConcept: &cc,
					})
				}
				out = append(out, ctx.record(KindReasonGoal, g))
			}
			return out
		},
	}
}

// Conditions.

type historySource struct {
	code    string
	display string
	entries func(s *Submission) []string
}

var historySources = []historySource{
	{"exclusion-condition", "Exclusion condition", func(s *Submission) []string { return s.ExclusionConditions }},
	{"comorbidity", "Comorbidity", func(s *Submission) []string { return s.Comorbidities }},
	{"other-condition", "Other condition", func(s *Submission) []string { return s.OtherConditions }},
}

func conditionBuilder() Builder {
	return Builder{
		Kind: KindCondition,
		Triggered: func(s *Submission) bool {
			for _, src := range historySources {
				if len(nonBlank(src.entries(s))) > 0 {
					return true
				}
			}
			return false
		},
		Build: func(s *Submission, ctx BuildContext) []Record {
			var out []Record
			for _, src := range historySources {
				for _, entry := range nonBlank(src.entries(s)) {
					code := fhir.TextConcept(entry)
					if e, ok := LookupCode(ConditionCodes, entry); ok {
						code.Coding = []fhir.Coding{{System: ConditionCodes.System, Code: e.Code, Display: e.Display}}
					}
					c := &Condition{
						Resource:           base("Condition"),
						ClinicalStatus:     fhir.Concept(fhirmodels.SystemConditionClinical, fhirmodels.ConditionActive, "Active"),
						VerificationStatus: fhir.Concept(fhirmodels.SystemConditionVerStatus, fhirmodels.ConditionUnconfirmed, "Unconfirmed"),
						Category: []fhir.CodeableConcept{
							fhir.Concept(fhirmodels.SystemConditionCategory, fhirmodels.ConditionProblemListItem, "Problem List Item"),
							intakeCode(src.code, src.display),
						},
						Code:         code,
						Subject:      ctx.Subject,
						RecordedDate: ctx.timestamp(),
					}
					out = append(out, ctx.record(KindCondition, c))
				}
			}
			return out
		},
	}
}

// Medication statements.

func newMedicationStatement(ctx BuildContext, code, display, description string) *MedicationStatement {
	category := fhir.Concept(fhirmodels.SystemMedStatementCat, "patientspecified", "Patient Specified")
	return &MedicationStatement{
		Resource:                  base("MedicationStatement"),
		Status:                    fhirmodels.StatusActive,
		Category:                  &category,
		MedicationCodeableConcept: intakeCode(code, display),
		Subject:                   ctx.Subject,
		DateAsserted:              ctx.timestamp(),
		Dosage:                    []Dosage{{Text: description}},
	}
}

func prescriptionMedicationBuilder() Builder {
	return Builder{
		Kind: KindPrescriptionMedication,
		Triggered: func(s *Submission) bool {
			return flagged(s.PrescriptionMedications, s.PrescriptionMedicationsDescription)
		},
		Build: func(s *Submission, ctx BuildContext) []Record {
			ms := newMedicationStatement(ctx, "prescription-medications", "Prescription medications", strVal(s.PrescriptionMedicationsDescription))
			return []Record{ctx.record(KindPrescriptionMedication, ms)}
		},
	}
}

func otcMedicationBuilder() Builder {
	return Builder{
		Kind: KindOTCMedication,
		Triggered: func(s *Submission) bool {
			return flagged(s.OverTheCounterMedications, s.OverTheCounterMedicationsDescription)
		},
		Build: func(s *Submission, ctx BuildContext) []Record {
			ms := newMedicationStatement(ctx, "otc-medications", "Over-the-counter medications", strVal(s.OverTheCounterMedicationsDescription))
			return []Record{ctx.record(KindOTCMedication, ms)}
		},
	}
}

// weightLossMedicationBuilder records prior weight-loss medication use. The
// last dose is kept both as a note and as a timing extension.
func weightLossMedicationBuilder() Builder {
	return Builder{
		Kind: KindWeightLossMedication,
		Triggered: func(s *Submission) bool {
			return flagged(s.WeightLossMedications, s.WeightLossMedicationsDescription)
		},
		Build: func(s *Submission, ctx BuildContext) []Record {
			ms := newMedicationStatement(ctx, "weight-loss-medications", "Prior weight-loss medications", strVal(s.WeightLossMedicationsDescription))
			ms.Status = fhirmodels.StatusCompleted
			if hasText(s.WeightLossMedicationLastDose) {
				lastDose := strVal(s.WeightLossMedicationLastDose)
				ms.Note = []fhir.Annotation{{Text: "Last dose: " + lastDose}}
				ms.Extension = []fhir.Extension{{URL: fhirmodels.ExtensionLastDoseTiming, ValueString: lastDose}}
			}
			return []Record{ctx.record(KindWeightLossMedication, ms)}
		},
	}
}

func surgeryBuilder() Builder {
	return Builder{
		Kind: KindSurgery,
		Triggered: func(s *Submission) bool {
			return flagged(s.AbdominalPelvicSurgeries, s.AbdominalPelvicSurgeriesDescription)
		},
		Build: func(s *Submission, ctx BuildContext) []Record {
			p := &Procedure{
				Resource: base("Procedure"),
				Status:   fhirmodels.StatusCompleted,
				Code:     intakeCode("abdominal-pelvic-surgery", "Abdominal or pelvic surgery"),
				Subject:  ctx.Subject,
				Note:     []fhir.Annotation{{Text: strVal(s.AbdominalPelvicSurgeriesDescription)}},
			}
			return []Record{ctx.record(KindSurgery, p)}
		},
	}
}

func allergyBuilder() Builder {
	return Builder{
		Kind:      KindAllergy,
		Triggered: func(s *Submission) bool { return flagged(s.Allergies, s.AllergiesDescription) },
		Build: func(s *Submission, ctx BuildContext) []Record {
			description := strVal(s.AllergiesDescription)
			a := &AllergyIntolerance{
				Resource:           base("AllergyIntolerance"),
				ClinicalStatus:     fhir.Concept(fhirmodels.SystemAllergyClinical, fhirmodels.StatusActive, "Active"),
				VerificationStatus: fhir.Concept(fhirmodels.SystemAllergyVerification, fhirmodels.ConditionUnconfirmed, "Unconfirmed"),
				Code:               fhir.TextConcept(description),
				Patient:            ctx.Subject,
				RecordedDate:       ctx.timestamp(),
				Reaction: []AllergyReaction{{
					Manifestation: []fhir.CodeableConcept{fhir.TextConcept(description)},
				}},
			}
			return []Record{ctx.record(KindAllergy, a)}
		},
	}
}
