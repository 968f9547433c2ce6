package intake

import "strings"

// Address is a postal address as collected by the intake form.
type Address struct {
	Line1   string `json:"line1" validate:"required"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	ZipCode string `json:"zipCode" validate:"required"`
	Country string `json:"country,omitempty"`
}

// Submission is one intake form as posted by the client. Identity, address,
// date of birth and gender are required; every other field is optional and
// its absence means "not discussed", never "false".
type Submission struct {
	FirstName   string  `json:"firstName" validate:"required"`
	LastName    string  `json:"lastName" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	Phone       string  `json:"phone" validate:"required"`
	DateOfBirth string  `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	Gender      string  `json:"gender" validate:"required,oneof=male female other unknown"`
	Address     Address `json:"address"`

	ShippingAddress *Address `json:"shippingAddress,omitempty" validate:"omitempty"`
	BillingAddress  *Address `json:"billingAddress,omitempty" validate:"omitempty"`

	Weight         *float64 `json:"weight,omitempty" validate:"omitempty,gt=0,lte=1500"`
	Height         *float64 `json:"height,omitempty" validate:"omitempty,gte=12,lte=120"`
	StartingWeight *float64 `json:"startingWeight,omitempty" validate:"omitempty,gt=0,lte=1500"`

	WeightGoal  *string  `json:"weightGoal,omitempty"`
	MainReasons []string `json:"mainReasons,omitempty"`

	ExclusionConditions []string `json:"exclusionConditions,omitempty"`
	Comorbidities       []string `json:"comorbidities,omitempty"`
	OtherConditions     []string `json:"otherConditions,omitempty"`

	PrescriptionMedications              *bool   `json:"prescriptionMedications,omitempty"`
	PrescriptionMedicationsDescription   *string `json:"prescriptionMedicationsDescription,omitempty"`
	OverTheCounterMedications            *bool   `json:"overTheCounterMedications,omitempty"`
	OverTheCounterMedicationsDescription *string `json:"overTheCounterMedicationsDescription,omitempty"`
	WeightLossMedications                *bool   `json:"weightLossMedications,omitempty"`
	WeightLossMedicationsDescription     *string `json:"weightLossMedicationsDescription,omitempty"`
	WeightLossMedicationLastDose         *string `json:"weightLossMedicationLastDose,omitempty"`

	AbdominalPelvicSurgeries            *bool   `json:"abdominalPelvicSurgeries,omitempty"`
	AbdominalPelvicSurgeriesDescription *string `json:"abdominalPelvicSurgeriesDescription,omitempty"`

	Willingness             []string `json:"willingness,omitempty"`
	WeightChange12Months    *string  `json:"weightChange12Months,omitempty"`
	LifestylePreferences    []string `json:"lifestylePreferences,omitempty"`
	PriorProgram            *bool    `json:"priorProgram,omitempty"`
	PriorProgramDescription *string  `json:"priorProgramDescription,omitempty"`

	Glucose       *float64 `json:"glucose,omitempty" validate:"omitempty,gte=0"`
	HemoglobinA1c *float64 `json:"hemoglobinA1c,omitempty" validate:"omitempty,gte=0"`
	BloodPressure *string  `json:"bloodPressure,omitempty"`
	HeartRate     *string  `json:"heartRate,omitempty"`

	Allergies            *bool   `json:"allergies,omitempty"`
	AllergiesDescription *string `json:"allergiesDescription,omitempty"`

	NoteForClinician *string `json:"noteForClinician,omitempty"`
	ConsentAccepted  *bool   `json:"consentAccepted,omitempty"`

	ProductID        *string  `json:"productId,omitempty"`
	ProductName      *string  `json:"productName,omitempty"`
	Price            *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	Currency         *string  `json:"currency,omitempty" validate:"omitempty,len=3"`
	PriceID          *string  `json:"priceId,omitempty"`
	SubscriptionID   *string  `json:"subscriptionId,omitempty"`
	PaymentCompleted *bool    `json:"paymentCompleted,omitempty"`

	SyncVisitRequired   *bool `json:"syncVisitRequired,omitempty"`
	ClearanceRequired   *bool `json:"clearanceRequired,omitempty"`
	SchedulingCompleted *bool `json:"schedulingCompleted,omitempty"`

	Eligible               *bool   `json:"eligible,omitempty"`
	DisqualificationReason *string `json:"disqualificationReason,omitempty"`
	ExclusivityAgreement   *bool   `json:"exclusivityAgreement,omitempty"`
	ImageURL               *string `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

// isTrue reports whether a tri-state flag is present and set.
func isTrue(b *bool) bool {
	return b != nil && *b
}

// hasText reports whether an optional string is present and not blank.
func hasText(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// flagged reports whether a flag+description pair is complete: the flag is
// true and the description is non-blank. Partial pairs produce no record.
func flagged(flag *bool, description *string) bool {
	return isTrue(flag) && hasText(description)
}

func positive(v *float64) bool {
	return v != nil && *v > 0
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// nonBlank returns the trimmed, non-empty entries of list.
func nonBlank(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
