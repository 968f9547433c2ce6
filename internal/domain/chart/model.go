package chart

import (
	"errors"

	"github.com/ehr/intake/internal/platform/store"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrAccessDenied    = errors.New("access to patient denied")
)

// Entry is one record of a chart. Link is set when the chart is annotated.
type Entry struct {
	Resource store.Resource `json:"resource"`
	Link     *Link          `json:"link,omitempty"`
}

// Chart is the composite view of one patient: the Patient itself and every
// linked record class. A section listed in Degraded could not be read and is
// empty because of that, not because the patient has no such records.
type Chart struct {
	Patient              Entry   `json:"patient"`
	Observations         []Entry `json:"observations"`
	Goals                []Entry `json:"goals"`
	Conditions           []Entry `json:"conditions"`
	MedicationStatements []Entry `json:"medicationStatements"`
	Procedures           []Entry `json:"procedures"`
	Allergies            []Entry `json:"allergies"`
	MedicationRequests   []Entry `json:"medicationRequests"`
	ServiceRequests      []Entry `json:"serviceRequests"`
	Consents             []Entry `json:"consents"`
	Invoices             []Entry `json:"invoices"`
	Appointments         []Entry `json:"appointments"`
	Media                []Entry `json:"media"`

	Degraded []string `json:"degraded,omitempty"`
}

// Section is one linked record class.
type Section struct {
	Name         string
	ResourceType string
	// Param is the search parameter that references the patient.
	Param string
	slot  func(c *Chart) *[]Entry
}

// Sections lists every linked record class in chart order.
var Sections = []Section{
	{"observations", "Observation", "subject", func(c *Chart) *[]Entry { return &c.Observations }},
	{"goals", "Goal", "subject", func(c *Chart) *[]Entry { return &c.Goals }},
	{"conditions", "Condition", "subject", func(c *Chart) *[]Entry { return &c.Conditions }},
	{"medicationStatements", "MedicationStatement", "subject", func(c *Chart) *[]Entry { return &c.MedicationStatements }},
	{"procedures", "Procedure", "subject", func(c *Chart) *[]Entry { return &c.Procedures }},
	{"allergies", "AllergyIntolerance", "patient", func(c *Chart) *[]Entry { return &c.Allergies }},
	{"medicationRequests", "MedicationRequest", "subject", func(c *Chart) *[]Entry { return &c.MedicationRequests }},
	{"serviceRequests", "ServiceRequest", "subject", func(c *Chart) *[]Entry { return &c.ServiceRequests }},
	{"consents", "Consent", "patient", func(c *Chart) *[]Entry { return &c.Consents }},
	{"invoices", "Invoice", "subject", func(c *Chart) *[]Entry { return &c.Invoices }},
	{"appointments", "Appointment", "patient", func(c *Chart) *[]Entry { return &c.Appointments }},
	{"media", "Media", "subject", func(c *Chart) *[]Entry { return &c.Media }},
}

// Section returns the entries of a named section, or nil for an unknown name.
func (c *Chart) Section(name string) []Entry {
	for _, s := range Sections {
		if s.Name == name {
			return *s.slot(c)
		}
	}
	return nil
}

// WithoutLinks returns a copy of c with every annotation removed.
func (c *Chart) WithoutLinks() *Chart {
	out := *c
	out.Patient.Link = nil
	for _, s := range Sections {
		src := *s.slot(c)
		stripped := make([]Entry, len(src))
		for i, e := range src {
			stripped[i] = Entry{Resource: e.Resource}
		}
		*s.slot(&out) = stripped
	}
	return &out
}
