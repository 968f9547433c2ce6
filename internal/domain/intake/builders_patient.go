package intake

import (
	"strings"

	"github.com/ehr/intake/internal/platform/fhir"
)

const defaultCountry = "US"

func patientBuilder() Builder {
	return Builder{
		Kind:      KindPatient,
		Triggered: func(*Submission) bool { return true },
		Build: func(s *Submission, ctx BuildContext) []Record {
			p := &Patient{
				Resource: base("Patient"),
				Active:   true,
				Name: []fhir.HumanName{{
					Use:    "official",
					Family: strings.TrimSpace(s.LastName),
					Given:  []string{strings.TrimSpace(s.FirstName)},
				}},
				Telecom: []fhir.ContactPoint{
					{System: "email", Value: strings.TrimSpace(s.Email), Use: "home"},
					{System: "phone", Value: strings.TrimSpace(s.Phone), Use: "mobile"},
				},
				Gender:    strings.ToLower(strings.TrimSpace(s.Gender)),
				BirthDate: strings.TrimSpace(s.DateOfBirth),
				Address:   []fhir.Address{toFHIRAddress(s.Address, "home", "both")},
			}
			if s.ShippingAddress != nil {
				p.Address = append(p.Address, toFHIRAddress(*s.ShippingAddress, "", "postal"))
			}
			if s.BillingAddress != nil {
				p.Address = append(p.Address, toFHIRAddress(*s.BillingAddress, "billing", "postal"))
			}
			return []Record{{ID: ctx.PatientID, Kind: KindPatient, Resource: p}}
		},
	}
}

func toFHIRAddress(a Address, use, typ string) fhir.Address {
	lines := []string{strings.TrimSpace(a.Line1)}
	if l2 := strings.TrimSpace(a.Line2); l2 != "" {
		lines = append(lines, l2)
	}
	country := strings.TrimSpace(a.Country)
	if country == "" {
		country = defaultCountry
	}
	return fhir.Address{
		Use:        use,
		Type:       typ,
		Line:       lines,
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		PostalCode: strings.TrimSpace(a.ZipCode),
		Country:    country,
	}
}
