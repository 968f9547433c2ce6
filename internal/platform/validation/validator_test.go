package validation

import (
	"errors"
	"reflect"
	"testing"
)

type address struct {
	ZipCode string `json:"zipCode" validate:"required"`
}

type form struct {
	Email   string   `json:"email" validate:"required,email"`
	Born    string   `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	Gender  string   `json:"gender" validate:"oneof=male female"`
	Weight  *float64 `json:"weight,omitempty" validate:"omitempty,gt=0"`
	Height  *float64 `json:"height,omitempty" validate:"omitempty,gte=12,lte=120"`
	Address address  `json:"address"`
	Hidden  string   `json:"-" validate:"required"`
}

func TestFieldErrors(t *testing.T) {
	zero, tall := 0.0, 500.0
	err := New().Validate(&form{
		Email:  "not-an-email",
		Born:   "04/12/1985",
		Gender: "x",
		Weight: &zero,
		Height: &tall,
	})
	if err == nil {
		t.Fatal("expected validation error")
	}

	got := FieldErrors(err)
	want := map[string][]string{
		"email":           {"must be a valid email address"},
		"dateOfBirth":     {"must be a date in YYYY-MM-DD format"},
		"gender":          {"must be one of: male, female"},
		"weight":          {"must be greater than 0"},
		"height":          {"must be at most 120"},
		"address.zipCode": {"is required"},
		"Hidden":          {"is required"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected field errors:\n got %v\nwant %v", got, want)
	}
}

func TestValidate_OK(t *testing.T) {
	w := 180.0
	err := New().Validate(&form{
		Email:   "jane@example.com",
		Born:    "1985-04-12",
		Gender:  "female",
		Weight:  &w,
		Address: address{ZipCode: "78701"},
		Hidden:  "x",
	})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestFieldErrors_NonValidationError(t *testing.T) {
	if got := FieldErrors(errors.New("boom")); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
