// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package types holds the shared data model for the triage pipeline: the
// raw Intake, each stage's Output record, and the aggregated TriageResult.
// Nothing in this package performs I/O or touches pipeline logic — it is the
// vocabulary the rest of the module shares.
package types

import (
	json "github.com/goccy/go-json"
)

// Demographics holds patient demographic fields from an Intake.
type Demographics struct {
	Age int    `json:"age" validate:"gte=0"`
	Sex string `json:"sex"`
}

// Vitals holds optional physiological measurements. A zero value is not a
// valid reading — absence is tracked with the Has* booleans so "unknown" and
// "zero" are never confused, per spec.md §3 ("Vitals with unknown values are
// absent, not sentinel").
type Vitals struct {
	HeartRate          float64 `json:"-"`
	HasHeartRate       bool    `json:"-"`
	SystolicBP         float64 `json:"-"`
	HasSystolicBP      bool    `json:"-"`
	DiastolicBP        float64 `json:"-"`
	HasDiastolicBP     bool    `json:"-"`
	TemperatureC       float64 `json:"-"`
	HasTemperatureC    bool    `json:"-"`
	SpO2               float64 `json:"-"`
	HasSpO2            bool    `json:"-"`
	RespiratoryRate    float64 `json:"-"`
	HasRespiratoryRate bool    `json:"-"`
}

// Intake is the raw, caller-supplied triage request.
type Intake struct {
	ChiefComplaint    string        `json:"chief_complaint" validate:"required"`
	History           string        `json:"history"`
	Demographics      Demographics  `json:"demographics"`
	Vitals            Vitals        `json:"vitals"`
	ImageDescriptions []string      `json:"image_descriptions"`
	ImageDataURLs     []string      `json:"image_data_urls"`
	PriorNotes        []string      `json:"prior_notes"`
}

// rawVitalsJSON is the wire shape for Vitals; fields are pointers so that a
// JSON-absent key round-trips to Has*=false instead of a zero-value reading.
type rawVitalsJSON struct {
	HeartRate       *float64 `json:"heart_rate,omitempty"`
	SystolicBP      *float64 `json:"systolic_bp,omitempty"`
	DiastolicBP     *float64 `json:"diastolic_bp,omitempty"`
	TemperatureC    *float64 `json:"temperature_c,omitempty"`
	SpO2            *float64 `json:"spo2,omitempty"`
	RespiratoryRate *float64 `json:"respiratory_rate,omitempty"`
}

// MarshalJSON implements the §6 wire schema (bare numeric keys, absent when
// unknown) on top of the internal Has*-tracked representation.
func (v Vitals) MarshalJSON() ([]byte, error) {
	raw := rawVitalsJSON{}
	if v.HasHeartRate {
		raw.HeartRate = &v.HeartRate
	}
	if v.HasSystolicBP {
		raw.SystolicBP = &v.SystolicBP
	}
	if v.HasDiastolicBP {
		raw.DiastolicBP = &v.DiastolicBP
	}
	if v.HasTemperatureC {
		raw.TemperatureC = &v.TemperatureC
	}
	if v.HasSpO2 {
		raw.SpO2 = &v.SpO2
	}
	if v.HasRespiratoryRate {
		raw.RespiratoryRate = &v.RespiratoryRate
	}
	return json.Marshal(raw)
}

// UnmarshalJSON implements the inverse of MarshalJSON.
func (v *Vitals) UnmarshalJSON(data []byte) error {
	var raw rawVitalsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = Vitals{}
	if raw.HeartRate != nil {
		v.HeartRate, v.HasHeartRate = *raw.HeartRate, true
	}
	if raw.SystolicBP != nil {
		v.SystolicBP, v.HasSystolicBP = *raw.SystolicBP, true
	}
	if raw.DiastolicBP != nil {
		v.DiastolicBP, v.HasDiastolicBP = *raw.DiastolicBP, true
	}
	if raw.TemperatureC != nil {
		v.TemperatureC, v.HasTemperatureC = *raw.TemperatureC, true
	}
	if raw.SpO2 != nil {
		v.SpO2, v.HasSpO2 = *raw.SpO2, true
	}
	if raw.RespiratoryRate != nil {
		v.RespiratoryRate, v.HasRespiratoryRate = *raw.RespiratoryRate, true
	}
	return nil
}
