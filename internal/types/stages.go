// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package types

// StructuredIntake is the deterministic normalization of an Intake, produced
// by the Intake Structuring stage (spec.md §4.1).
type StructuredIntake struct {
	NormalizedSummary     string   `json:"normalized_summary"`
	Symptoms              []string `json:"symptoms"`
	RiskFactors           []string `json:"risk_factors"`
	MissingCriticalFields []string `json:"missing_critical_fields"`
	DataQualityWarnings   []string `json:"data_quality_warnings"`
	PHIHits               []string `json:"phi_hits"`

	// Vitals and raw text are threaded through for downstream stages
	// (evidence matchers, safety preconditions, communication templates)
	// without re-deriving them from the original Intake.
	Vitals         Vitals `json:"-"`
	ChiefComplaint string `json:"-"`
	HistoryTrimmed string `json:"-"`
	Age            int    `json:"-"`
}

// HasSymptom reports whether the canonical symptom token is present.
func (s StructuredIntake) HasSymptom(token string) bool {
	return contains(s.Symptoms, token)
}

// HasRiskFactor reports whether the canonical risk-factor token is present.
func (s StructuredIntake) HasRiskFactor(token string) bool {
	return contains(s.RiskFactors, token)
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

// ReasoningBackend identifies which implementation produced a ReasoningOutput
// or CommunicationOutput.
type ReasoningBackend string

const (
	BackendDeterministic ReasoningBackend = "deterministic"
	BackendExternal      ReasoningBackend = "external"
)

// ReasoningOutput is produced by the Multimodal Clinical Reasoning stage
// (spec.md §4.2).
type ReasoningOutput struct {
	DifferentialConsiderations  []string         `json:"differential_considerations"`
	ReasoningRationale          string           `json:"reasoning_rationale"`
	ReasoningBackend            ReasoningBackend `json:"reasoning_backend"`
	ReasoningBackendModel       string           `json:"reasoning_backend_model,omitempty"`
	ReasoningPromptVersion      string           `json:"reasoning_prompt_version"`
	ImagesPresent               int              `json:"images_present"`
	ImagesSent                  int              `json:"images_sent"`
	ReasoningBackendError       string           `json:"reasoning_backend_error,omitempty"`
	ReasoningBackendSkippedReason string         `json:"reasoning_backend_skipped_reason,omitempty"`
}

// ProtocolCitation names a policy matched by the Evidence & Policy stage.
type ProtocolCitation struct {
	PolicyID           string   `json:"policy_id"`
	Title              string   `json:"title"`
	Citation           string   `json:"citation"`
	RecommendedActions []string `json:"recommended_actions"`
}

// EvidenceOutput is produced by the Evidence & Policy stage (spec.md §4.3).
type EvidenceOutput struct {
	RecommendedActionsFromPolicy []string           `json:"recommended_actions_from_policy"`
	ProtocolCitations            []ProtocolCitation `json:"protocol_citations"`
	PolicyPackSHA256             string             `json:"policy_pack_sha256"`
	PolicyPackSource             string             `json:"policy_pack_source"`
}

// Severity is the severity of a fired safety trigger.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityUrgent   Severity = "urgent"
	SeverityInfo     Severity = "info"
)

// SafetyTrigger is one fired, deterministic rule (spec.md §4.4).
type SafetyTrigger struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail"`
}

// RiskTier governs disposition urgency.
type RiskTier string

const (
	TierRoutine  RiskTier = "routine"
	TierUrgent   RiskTier = "urgent"
	TierCritical RiskTier = "critical"
)

// RiskScores holds the interpretable scores computed by the Safety stage.
type RiskScores struct {
	ShockIndex      float64 `json:"shock_index,omitempty"`
	HasShockIndex   bool    `json:"-"`
	ShockIndexHigh  bool    `json:"shock_index_high"`
	QSOFA           int     `json:"qsofa"`
	QSOFAHighRisk   bool    `json:"qsofa_high_risk"`
}

// SafetyOutput is produced by the Safety & Escalation stage (spec.md §4.4).
type SafetyOutput struct {
	RiskTier              RiskTier        `json:"risk_tier"`
	EscalationRequired    bool            `json:"escalation_required"`
	RedFlags              []string        `json:"red_flags"`
	SafetyTriggers        []SafetyTrigger `json:"safety_triggers"`
	ActionsAddedBySafety  []string        `json:"actions_added_by_safety"`
	RiskTierRationale     string          `json:"risk_tier_rationale"`
	RiskScores            RiskScores      `json:"risk_scores"`
	UncertaintyReasons    []string        `json:"uncertainty_reasons"`
	SafetyRulesVersion    string          `json:"safety_rules_version"`
}

// CommunicationOutput is produced by the Communication stage (spec.md §4.5).
type CommunicationOutput struct {
	ClinicianHandoff                string           `json:"clinician_handoff"`
	PatientSummary                  string           `json:"patient_summary"`
	CommunicationBackend            ReasoningBackend `json:"communication_backend"`
	CommunicationBackendModel       string           `json:"communication_backend_model,omitempty"`
	CommunicationPromptVersion      string           `json:"communication_prompt_version"`
	CommunicationBackendError       string           `json:"communication_backend_error,omitempty"`
	CommunicationBackendSkippedReason string         `json:"communication_backend_skipped_reason,omitempty"`
}

// TraceEntry records one stage's execution for the audit trail.
type TraceEntry struct {
	Agent     string      `json:"agent"`
	LatencyMs int64       `json:"latency_ms"`
	Output    interface{} `json:"output"`
	Error     string      `json:"error,omitempty"`
}

// TriageResult is the final aggregate returned by the pipeline (spec.md §3).
type TriageResult struct {
	RequestID                  string        `json:"request_id"`
	CreatedAt                  string        `json:"created_at"`
	PipelineVersion             string        `json:"pipeline_version"`
	TotalLatencyMs              int64         `json:"total_latency_ms"`
	Confidence                  float64       `json:"confidence"`
	RecommendedNextActions      []string      `json:"recommended_next_actions"`
	RedFlags                    []string      `json:"red_flags"`
	RiskTier                    RiskTier      `json:"risk_tier"`
	EscalationRequired          bool          `json:"escalation_required"`
	DifferentialConsiderations  []string      `json:"differential_considerations"`
	ClinicianHandoff            string        `json:"clinician_handoff"`
	PatientSummary              string        `json:"patient_summary"`
	UncertaintyReasons          []string      `json:"uncertainty_reasons"`
	Trace                       []TraceEntry  `json:"trace"`
}
