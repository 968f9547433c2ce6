package intake

import (
	"fmt"
	"time"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string      { return &s }
func floatPtr(f float64) *float64 { return &f }

// sequentialIDs returns a deterministic id generator.
func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func testOptions(prefix string) []AssembleOption {
	return []AssembleOption{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(sequentialIDs(prefix)),
	}
}

// minimalSubmission has only the required fields.
func minimalSubmission() *Submission {
	return &Submission{
		FirstName:   "Jane",
		LastName:    "Doe",
		Email:       "jane@example.com",
		Phone:       "+15555550100",
		DateOfBirth: "1985-04-12",
		Gender:      "female",
		Address: Address{
			Line1:   "1 Main St",
			City:    "Austin",
			State:   "TX",
			ZipCode: "78701",
		},
	}
}

// fullSubmission triggers every builder.
func fullSubmission() *Submission {
	s := minimalSubmission()
	s.ShippingAddress = &Address{Line1: "2 Ship Rd", City: "Austin", State: "TX", ZipCode: "78702"}
	s.BillingAddress = &Address{Line1: "3 Bill Ave", City: "Dallas", State: "TX", ZipCode: "75001", Country: "US"}
	s.Weight = floatPtr(252)
	s.Height = floatPtr(72)
	s.StartingWeight = floatPtr(260)
	s.WeightGoal = strPtr("Lose 40 pounds")
	s.MainReasons = []string{"Lower my blood sugar", "wants to feel better"}
	s.ExclusionConditions = []string{"None of the above"}
	s.Comorbidities = []string{"Hypertension", "Sleep apnea"}
	s.OtherConditions = []string{"Seasonal allergies"}
	s.PrescriptionMedications = boolPtr(true)
	s.PrescriptionMedicationsDescription = strPtr("Lisinopril 10mg daily")
	s.OverTheCounterMedications = boolPtr(true)
	s.OverTheCounterMedicationsDescription = strPtr("Ibuprofen as needed")
	s.WeightLossMedications = boolPtr(true)
	s.WeightLossMedicationsDescription = strPtr("Semaglutide 0.5mg weekly")
	s.WeightLossMedicationLastDose = strPtr("2024-02-20")
	s.AbdominalPelvicSurgeries = boolPtr(true)
	s.AbdominalPelvicSurgeriesDescription = strPtr("Appendectomy")
	s.Willingness = []string{"Reduce calorie intake", "Exercise 3x weekly"}
	s.WeightChange12Months = strPtr("Gained 10-20 lbs")
	s.LifestylePreferences = []string{"Weekly injection", "Oral tablet"}
	s.PriorProgram = boolPtr(true)
	s.PriorProgramDescription = strPtr("Weight Watchers 2019")
	s.Glucose = floatPtr(105)
	s.HemoglobinA1c = floatPtr(5.9)
	s.BloodPressure = strPtr("130-139/85-89")
	s.HeartRate = strPtr("70-80")
	s.Allergies = boolPtr(true)
	s.AllergiesDescription = strPtr("Penicillin")
	s.NoteForClinician = strPtr("Prefers morning appointments")
	s.ConsentAccepted = boolPtr(true)
	s.ProductID = strPtr("prod_sema")
	s.ProductName = strPtr("Compounded Semaglutide")
	s.Price = floatPtr(299)
	s.PriceID = strPtr("price_123")
	s.SubscriptionID = strPtr("sub_456")
	s.PaymentCompleted = boolPtr(true)
	s.SyncVisitRequired = boolPtr(true)
	s.ClearanceRequired = boolPtr(true)
	s.SchedulingCompleted = boolPtr(true)
	s.Eligible = boolPtr(true)
	s.DisqualificationReason = strPtr("n/a")
	s.ExclusivityAgreement = boolPtr(true)
	s.ImageURL = strPtr("https://cdn.example.com/id.jpg")
	return s
}
