// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package policypack loads, canonicalizes, and evaluates the ordered policy
// pack the Evidence & Policy stage matches against (spec.md §4.3, §6, §9).
package policypack

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

// VitalMatcher is one vital-sign comparison clause of a Matchers object,
// spec.md §6's pinned wire shape for the `vitals` array.
type VitalMatcher struct {
	Field string  `json:"field" yaml:"field"`
	Op    string  `json:"op" yaml:"op"`
	Value float64 `json:"value" yaml:"value"`
}

// Matchers is the declarative predicate a policy matches against, in the
// exact shape spec.md §6 pins as the pack's external wire schema. A zero
// value matches unconditionally.
type Matchers struct {
	SymptomsAllOf    []string       `json:"symptoms_all_of,omitempty" yaml:"symptoms_all_of,omitempty"`
	SymptomsAnyOf    []string       `json:"symptoms_any_of,omitempty" yaml:"symptoms_any_of,omitempty"`
	RiskFactorsAnyOf []string       `json:"risk_factors_any_of,omitempty" yaml:"risk_factors_any_of,omitempty"`
	Vitals           []VitalMatcher `json:"vitals,omitempty" yaml:"vitals,omitempty"`
}

// Policy is one entry of the pack, matched in pack order.
type Policy struct {
	ID                 string   `json:"id" yaml:"id"`
	Title              string   `json:"title" yaml:"title"`
	Matchers           Matchers `json:"matchers" yaml:"matchers"`
	RecommendedActions []string `json:"recommended_actions" yaml:"recommended_actions"`
	Citation           string   `json:"citation" yaml:"citation"`
}

// Pack is the ordered, versioned collection of policies loaded from
// policy.pack_path.
type Pack struct {
	Version  string   `json:"version" yaml:"version"`
	Policies []Policy `json:"policies" yaml:"policies"`
}

// compiledPolicy pairs a Policy with its pre-compiled expr programs, so
// per-request evaluation never re-parses matcher expressions.
type compiledPolicy struct {
	policy   Policy
	programs []*vm.Program
}

// matcherEnv is the expression environment every matcher is compiled and run
// against, mirroring the predicate vocabulary spec.md §4.3 names: symptom
// and risk-factor set membership, plus vital comparisons.
type matcherEnv struct {
	HasSymptom    func(string) bool
	HasRiskFactor func(string) bool

	HasSpO2 bool
	SpO2    float64

	HasSBP bool
	SBP    float64

	HasDBP bool
	DBP    float64

	HasHR bool
	HR    float64

	HasTempC bool
	TempC    float64

	HasRR bool
	RR    float64
}

func envFor(s types.StructuredIntake) matcherEnv {
	v := s.Vitals
	return matcherEnv{
		HasSymptom:    s.HasSymptom,
		HasRiskFactor: s.HasRiskFactor,
		HasSpO2:       v.HasSpO2,
		SpO2:          v.SpO2,
		HasSBP:        v.HasSystolicBP,
		SBP:           v.SystolicBP,
		HasDBP:        v.HasDiastolicBP,
		DBP:           v.DiastolicBP,
		HasHR:         v.HasHeartRate,
		HR:            v.HeartRate,
		HasTempC:      v.HasTemperatureC,
		TempC:         v.TemperatureC,
		HasRR:         v.HasRespiratoryRate,
		RR:            v.RespiratoryRate,
	}
}

// vitalFields maps a Matchers.Vitals field name to the matcherEnv accessor
// pair it compiles against.
var vitalFields = map[string]struct{ has, val string }{
	"heart_rate":       {"HasHR", "HR"},
	"systolic_bp":      {"HasSBP", "SBP"},
	"diastolic_bp":     {"HasDBP", "DBP"},
	"temperature_c":    {"HasTempC", "TempC"},
	"spo2":             {"HasSpO2", "SpO2"},
	"respiratory_rate": {"HasRR", "RR"},
}

var vitalOps = map[string]bool{"<": true, "<=": true, ">": true, ">=": true, "==": true}

// matcherExpressions translates one declarative Matchers object into the
// expr predicate strings compile evaluates, one per clause (the existing
// matches loop ANDs them together). A pack authored to spec.md §6's schema
// never sees expr syntax; this is the internal compilation target the
// review asked for.
func matcherExpressions(m Matchers) ([]string, error) {
	var exprs []string

	for _, s := range m.SymptomsAllOf {
		exprs = append(exprs, fmt.Sprintf("HasSymptom(%q)", s))
	}
	if len(m.SymptomsAnyOf) > 0 {
		tokens := make([]string, len(m.SymptomsAnyOf))
		for i, s := range m.SymptomsAnyOf {
			tokens[i] = fmt.Sprintf("HasSymptom(%q)", s)
		}
		exprs = append(exprs, joinOr(tokens))
	}
	if len(m.RiskFactorsAnyOf) > 0 {
		tokens := make([]string, len(m.RiskFactorsAnyOf))
		for i, r := range m.RiskFactorsAnyOf {
			tokens[i] = fmt.Sprintf("HasRiskFactor(%q)", r)
		}
		exprs = append(exprs, joinOr(tokens))
	}
	for _, v := range m.Vitals {
		accessors, ok := vitalFields[v.Field]
		if !ok {
			return nil, fmt.Errorf("unknown vital field %q", v.Field)
		}
		if !vitalOps[v.Op] {
			return nil, fmt.Errorf("unknown vital comparison operator %q", v.Op)
		}
		exprs = append(exprs, fmt.Sprintf("%s && %s %s %s", accessors.has, accessors.val, v.Op, formatFloat(v.Value)))
	}

	return exprs, nil
}

func joinOr(tokens []string) string {
	return "(" + strings.Join(tokens, " || ") + ")"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// compile compiles every matcher of every policy once, at load time, so a
// malformed matcher expression fails pack loading rather than surfacing at
// request time (spec.md §4.3: "evidence never errors" at request time).
func compile(pack Pack) ([]compiledPolicy, error) {
	compiled := make([]compiledPolicy, 0, len(pack.Policies))
	for _, p := range pack.Policies {
		matcherExprs, err := matcherExpressions(p.Matchers)
		if err != nil {
			return nil, fmt.Errorf("policypack: policy %q: %w", p.ID, err)
		}

		programs := make([]*vm.Program, 0, len(matcherExprs))
		for _, m := range matcherExprs {
			program, err := expr.Compile(m, expr.Env(matcherEnv{}), expr.AsBool())
			if err != nil {
				return nil, fmt.Errorf("policypack: policy %q: compile matcher %q: %w", p.ID, m, err)
			}
			programs = append(programs, program)
		}
		compiled = append(compiled, compiledPolicy{policy: p, programs: programs})
	}
	return compiled, nil
}

// matches reports whether every compiled matcher of cp evaluates true
// against env.
func (cp compiledPolicy) matches(env matcherEnv) (bool, error) {
	for _, program := range cp.programs {
		out, err := expr.Run(program, env)
		if err != nil {
			return false, err
		}
		matched, ok := out.(bool)
		if !ok || !matched {
			return false, nil
		}
	}
	return true, nil
}
