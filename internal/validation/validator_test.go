// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package validation

import (
	"strings"
	"testing"
)

type fixBody struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	Accuracy  *float64 `json:"accuracyMeters,omitempty" validate:"omitempty,gte=0"`
}

type policyBody struct {
	Mode   string `json:"mode" validate:"omitempty,policymode"`
	Device string `json:"deviceId" validate:"deviceid"`
	Kind   string `json:"kind" validate:"omitempty,failurekind"`
}

func f(v float64) *float64 { return &v }

func TestValidateStruct_Valid(t *testing.T) {
	body := fixBody{Latitude: f(45), Longitude: f(-120), Accuracy: f(3)}
	if err := ValidateStruct(&body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStruct_FieldErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      interface{}
		wantField string
		wantTag   string
	}{
		{"missing latitude", &fixBody{Longitude: f(1)}, "latitude", "required"},
		{"latitude out of range", &fixBody{Latitude: f(91), Longitude: f(1)}, "latitude", "latitude"},
		{"longitude out of range", &fixBody{Latitude: f(1), Longitude: f(-181)}, "longitude", "longitude"},
		{"negative accuracy", &fixBody{Latitude: f(1), Longitude: f(1), Accuracy: f(-1)}, "accuracyMeters", "gte"},
		{"unknown mode", &policyBody{Mode: "turbo", Device: "d1"}, "mode", "policymode"},
		{"bad device id", &policyBody{Device: "a/b"}, "deviceId", "deviceid"},
		{"unknown failure kind", &policyBody{Device: "d1", Kind: "gone"}, "kind", "failurekind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(tt.body)
			if verr == nil {
				t.Fatal("expected validation error")
			}
			errs := verr.Errors()
			if len(errs) != 1 {
				t.Fatalf("expected one field error, got %v", errs)
			}
			if errs[0].Field() != tt.wantField || errs[0].Tag() != tt.wantTag {
				t.Errorf("got field=%s tag=%s, want field=%s tag=%s",
					errs[0].Field(), errs[0].Tag(), tt.wantField, tt.wantTag)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	verr := ValidateStruct(&fixBody{Latitude: f(100)})
	if verr == nil {
		t.Fatal("expected validation error")
	}
	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", apiErr.Code)
	}
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 2 {
		t.Fatalf("expected two field entries, got %v", apiErr.Details)
	}
	if !strings.Contains(apiErr.Message, "latitude must be a valid latitude") {
		t.Errorf("unexpected message %q", apiErr.Message)
	}

	single := ValidateStruct(&fixBody{Latitude: f(1)}).ToAPIError()
	if single.Details["field"] != "longitude" {
		t.Errorf("expected single field detail, got %v", single.Details)
	}
}

func TestValidDeviceID(t *testing.T) {
	for _, id := range []string{"pixel-7", "DEVICE_01", strings.Repeat("a", 128)} {
		if !ValidDeviceID(id) {
			t.Errorf("expected %q to be valid", id)
		}
	}
	for _, id := range []string{"", "has space", "dot.ted", "slash/ed", strings.Repeat("a", 129)} {
		if ValidDeviceID(id) {
			t.Errorf("expected %q to be invalid", id)
		}
	}
}
