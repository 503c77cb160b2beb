package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type testPayload struct {
	BaseURL string `json:"base_url" validate:"required,url"`
	Region  string `json:"region" validate:"phone_region"`
	Retries int    `json:"retries" validate:"gte=0,lte=10"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := testPayload{
		BaseURL: "https://api.smartsupply.example/v1",
		Region:  "pk",
		Retries: 3,
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	payload := testPayload{
		BaseURL: "",
		Region:  "XX",
		Retries: 11,
	}

	err := ValidateStruct(payload)
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if len(vErrs) != 3 {
		t.Fatalf("expected 3 validation errors, got %d", len(vErrs))
	}

	foundRegion := false
	for _, v := range vErrs {
		if v.Field == "region" && v.Tag == "phone_region" {
			foundRegion = true
		}
	}

	if !foundRegion {
		t.Fatal("expected region field to be present in validation errors")
	}
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("smartsupply", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "smartsupply"
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	type custom struct {
		Value string `validate:"smartsupply"`
	}

	if err := ValidateStruct(custom{Value: "smartsupply"}); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
	if err := ValidateStruct(custom{Value: "other"}); err == nil {
		t.Fatal("expected validation to fail for non-matching value")
	}
}
