package intake

import (
	"strings"

	"github.com/ehr/intake/internal/platform/fhir"
	"github.com/ehr/intake/pkg/fhirmodels"
)

const defaultCurrency = "USD"

func productConcept(s *Submission) fhir.CodeableConcept {
	return fhir.Concept(fhirmodels.IdentifierProduct, strVal(s.ProductID), strVal(s.ProductName))
}

// treatmentRequestBuilder records the selected treatment. It stays a draft
// proposal until payment completes.
func treatmentRequestBuilder() Builder {
	return Builder{
		Kind:      KindTreatmentRequest,
		Triggered: func(s *Submission) bool { return hasText(s.ProductID) && hasText(s.ProductName) },
		Build: func(s *Submission, ctx BuildContext) []Record {
			mr := &MedicationRequest{
				Resource:                  base("MedicationRequest"),
				Identifier:                []fhir.Identifier{{System: fhirmodels.IdentifierProduct, Value: strVal(s.ProductID)}},
				Status:                    fhirmodels.StatusDraft,
				Intent:                    fhirmodels.IntentProposal,
				MedicationCodeableConcept: productConcept(s),
				Subject:                   ctx.Subject,
				AuthoredOn:                ctx.timestamp(),
			}
			if isTrue(s.PaymentCompleted) {
				mr.Status = fhirmodels.StatusActive
				mr.Intent = fhirmodels.IntentOrder
			}
			if hasText(s.WeightLossMedicationLastDose) {
				mr.Note = []fhir.Annotation{{Text: "Last dose of prior weight-loss medication: " + strVal(s.WeightLossMedicationLastDose)}}
			}
			return []Record{ctx.record(KindTreatmentRequest, mr)}
		},
	}
}

func newServiceRequest(ctx BuildContext, code fhir.CodeableConcept) *ServiceRequest {
	return &ServiceRequest{
		Resource:   base("ServiceRequest"),
		Status:     fhirmodels.StatusActive,
		Intent:     fhirmodels.IntentOrder,
		Code:       code,
		Subject:    ctx.Subject,
		AuthoredOn: ctx.timestamp(),
	}
}

func syncVisitBuilder() Builder {
	return Builder{
		Kind:      KindSyncVisit,
		Triggered: func(s *Submission) bool { return isTrue(s.SyncVisitRequired) },
		Build: func(s *Submission, ctx BuildContext) []Record {
			sr := newServiceRequest(ctx, intakeCode("sync-visit", "Synchronous telehealth visit"))
			return []Record{ctx.record(KindSyncVisit, sr)}
		},
	}
}

func clearanceBuilder() Builder {
	return Builder{
		Kind:      KindClearance,
		Triggered: func(s *Submission) bool { return isTrue(s.ClearanceRequired) },
		Build: func(s *Submission, ctx BuildContext) []Record {
			sr := newServiceRequest(ctx, intakeCode("medical-clearance", "Medical clearance"))
			return []Record{ctx.record(KindClearance, sr)}
		},
	}
}

// consentBuilder records the patient's answer to the treatment consent. An
// explicit refusal is recorded as a deny provision.
func consentBuilder() Builder {
	return Builder{
		Kind:      KindConsent,
		Triggered: func(s *Submission) bool { return s.ConsentAccepted != nil },
		Build: func(s *Submission, ctx BuildContext) []Record {
			provision := fhirmodels.ProvisionPermit
			if !*s.ConsentAccepted {
				provision = fhirmodels.ProvisionDeny
			}
			c := &Consent{
				Resource:  base("Consent"),
				Status:    fhirmodels.StatusActive,
				Scope:     fhir.Concept(fhirmodels.SystemConsentScope, "treatment", "Treatment"),
				Category:  []fhir.CodeableConcept{loinc(LOINCConsent)},
				Patient:   ctx.Subject,
				DateTime:  ctx.timestamp(),
				Provision: &ConsentProvision{Type: provision},
			}
			return []Record{ctx.record(KindConsent, c)}
		},
	}
}

func invoiceBuilder() Builder {
	return Builder{
		Kind: KindInvoice,
		Triggered: func(s *Submission) bool {
			return s.Price != nil || hasText(s.PriceID) || hasText(s.SubscriptionID)
		},
		Build: func(s *Submission, ctx BuildContext) []Record {
			inv := &Invoice{
				Resource: base("Invoice"),
				Status:   fhirmodels.StatusIssued,
				Subject:  ctx.Subject,
				Date:     ctx.timestamp(),
			}
			if isTrue(s.PaymentCompleted) {
				inv.Status = fhirmodels.StatusBalanced
			}
			if hasText(s.PriceID) {
				inv.Identifier = append(inv.Identifier, fhir.Identifier{System: fhirmodels.IdentifierPrice, Value: strVal(s.PriceID)})
			}
			if hasText(s.SubscriptionID) {
				inv.Identifier = append(inv.Identifier, fhir.Identifier{System: fhirmodels.IdentifierSubscription, Value: strVal(s.SubscriptionID)})
			}
			if hasText(s.ProductID) || hasText(s.ProductName) {
				inv.LineItem = []InvoiceLineItem{{Sequence: 1, ChargeItemCodeableConcept: productConcept(s)}}
			}
			if s.Price != nil {
				currency := strings.ToUpper(strVal(s.Currency))
				if currency == "" {
					currency = defaultCurrency
				}
				inv.TotalNet = &fhir.Money{Value: *s.Price, Currency: currency}
				inv.TotalGross = &fhir.Money{Value: *s.Price, Currency: currency}
			}
			return []Record{ctx.record(KindInvoice, inv)}
		},
	}
}

func appointmentBuilder() Builder {
	return Builder{
		Kind:      KindAppointment,
		Triggered: func(s *Submission) bool { return s.SchedulingCompleted != nil },
		Build: func(s *Submission, ctx BuildContext) []Record {
			status := fhirmodels.StatusProposed
			if *s.SchedulingCompleted {
				status = fhirmodels.StatusBooked
			}
			a := &Appointment{
				Resource:    base("Appointment"),
				Status:      status,
				Description: "Initial consultation",
				Created:     ctx.timestamp(),
				Participant: []AppointmentParticipant{{
					Actor:  ctx.Subject,
					Status: fhirmodels.StatusAccepted,
				}},
			}
			return []Record{ctx.record(KindAppointment, a)}
		},
	}
}

func mediaBuilder() Builder {
	return Builder{
		Kind:      KindMedia,
		Triggered: func(s *Submission) bool { return hasText(s.ImageURL) },
		Build: func(s *Submission, ctx BuildContext) []Record {
			m := &Media{
				Resource:        base("Media"),
				Status:          fhirmodels.StatusCompleted,
				Subject:         ctx.Subject,
				CreatedDateTime: ctx.timestamp(),
				Content: fhir.Attachment{
					URL:   strVal(s.ImageURL),
					Title: "Intake image",
				},
			}
			return []Record{ctx.record(KindMedia, m)}
		},
	}
}
