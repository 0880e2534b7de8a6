package sessionkit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// KYCStatus is the derived identity-verification state of a user. It is a pure
// function of the server's verification_status and document_verified fields and
// is never set independently; see [Normalize].
type KYCStatus string

const (
	// KYCUnverified means the user has not begun or not passed document review.
	KYCUnverified KYCStatus = "unverified"
	// KYCPending means documents are submitted and awaiting a verifier.
	KYCPending KYCStatus = "pending"
	// KYCVerified means a verifier approved the documents (or the document flag is set).
	KYCVerified KYCStatus = "verified"
	// KYCRejected means a verifier rejected the submission.
	KYCRejected KYCStatus = "rejected"
)

// VerificationStatus is the raw review state reported by the server.
type VerificationStatus string

const (
	// VerificationPending is the initial review state reported by the server.
	VerificationPending VerificationStatus = "pending"
	// VerificationSubmitted means documents reached the review queue.
	VerificationSubmitted VerificationStatus = "submitted"
	// VerificationApproved means review passed.
	VerificationApproved VerificationStatus = "approved"
	// VerificationRejected means review failed.
	VerificationRejected VerificationStatus = "rejected"
)

// Role is the marketplace role assigned to a user account.
type Role string

const (
	// RoleUnassigned is the role of a user who has not picked one yet.
	RoleUnassigned Role = "unassigned"
	// RoleWorker is a labor-seeking user.
	RoleWorker Role = "worker"
	// RoleEmployer is a job-posting user.
	RoleEmployer Role = "employer"
	// RoleAdmin is a platform administrator.
	RoleAdmin Role = "admin"
	// RoleModerator is a content moderator.
	RoleModerator Role = "moderator"
	// RoleVerifier reviews KYC submissions.
	RoleVerifier Role = "verifier"
	// RoleCustomerCare handles support tickets.
	RoleCustomerCare Role = "customer_care"
	// RoleVendor sells services through the marketplace.
	RoleVendor Role = "vendor"
)

// Assigned reports whether the role is a concrete role rather than empty or unassigned.
func (r Role) Assigned() bool {
	return r != "" && r != RoleUnassigned
}

// User is the canonical, fully-defaulted local user model. Only [Normalize] may
// construct it; only the Engine may replace the current snapshot. Every optional
// server field has an explicit zero default so consumers never need a presence
// check before branching.
type User struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	EmailVerified bool   `json:"email_verified"`

	KYC                KYCStatus          `json:"kyc_verified"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	DocumentVerified   bool               `json:"document_verified"`

	Role Role `json:"role"`

	WalletCreated     bool    `json:"wallet_created"`
	WalletAddress     string  `json:"wallet_address"`
	BankAccountLinked bool    `json:"bank_account_linked"`
	ProfileCompleted  bool    `json:"profile_completed"`
	TrustScore        float64 `json:"trust_score"`

	Avatar       string `json:"avatar"`
	ReferralCode string `json:"referral_code"`

	// Extra carries unknown server fields verbatim. They are preserved across
	// normalization round-trips but never interpreted.
	Extra map[string]json.RawMessage `json:"extra,omitempty"`
}

// Clone returns a deep copy safe to hand to callers.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(u.Extra))
		for k, v := range u.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &out
}

// ServerUserPayload is the raw, loosely-structured user record returned by the
// identity API. Optional fields are pointers so absence is distinguishable from
// the zero value; unknown fields are captured into Extra.
type ServerUserPayload struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	EmailVerified *bool  `json:"email_verified"`

	VerificationStatus string `json:"verification_status"`
	DocumentVerified   *bool  `json:"document_verified"`

	Role string `json:"role"`

	WalletAddress     string   `json:"wallet_address"`
	BankAccountLinked *bool    `json:"bank_account_linked"`
	ProfileCompleted  *bool    `json:"profile_completed"`
	TrustScore        *float64 `json:"trust_score"`

	Avatar       string `json:"avatar"`
	ReferralCode string `json:"referral_code"`

	Extra map[string]json.RawMessage `json:"-"`
}

var serverUserKnownKeys = map[string]struct{}{
	"id": {}, "name": {}, "email": {}, "username": {}, "email_verified": {},
	"verification_status": {}, "document_verified": {}, "role": {},
	"wallet_address": {}, "bank_account_linked": {}, "profile_completed": {},
	"trust_score": {}, "avatar": {}, "referral_code": {},
}

// UnmarshalJSON decodes the known fields and preserves every unknown key in Extra.
func (p *ServerUserPayload) UnmarshalJSON(data []byte) error {
	type plain ServerUserPayload
	var known plain
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range serverUserKnownKeys {
		delete(raw, key)
	}
	if len(raw) == 0 {
		raw = nil
	}

	*p = ServerUserPayload(known)
	p.Extra = raw
	return nil
}

// StepID identifies one stage of the onboarding sequence. The values form a
// total order; [StepComplete] is terminal and absorbing.
type StepID uint8

const (
	// StepTerms is acceptance of the terms of service.
	StepTerms StepID = iota
	// StepDocument is identity-document upload.
	StepDocument
	// StepFacial is the selfie / liveness check.
	StepFacial
	// StepRole is marketplace role selection.
	StepRole
	// StepWallet is wallet creation.
	StepWallet
	// StepBank is bank-account linking.
	StepBank
	// StepProfile is profile completion.
	StepProfile
	// StepComplete is the terminal step; Next returns it forever.
	StepComplete
)

var stepNames = [...]string{
	StepTerms:    "terms",
	StepDocument: "document",
	StepFacial:   "facial",
	StepRole:     "role",
	StepWallet:   "wallet",
	StepBank:     "bank",
	StepProfile:  "profile",
	StepComplete: "complete",
}

// Valid reports whether the value is one of the defined steps.
func (s StepID) Valid() bool {
	return s <= StepComplete
}

func (s StepID) String() string {
	if !s.Valid() {
		return fmt.Sprintf("step(%d)", uint8(s))
	}
	return stepNames[s]
}

// Next returns the successor in the total order. StepComplete is absorbing.
func (s StepID) Next() StepID {
	if s >= StepComplete {
		return StepComplete
	}
	return s + 1
}

// MarshalJSON encodes the step by name so persisted progress survives enum
// reordering across releases.
func (s StepID) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid step id %d", uint8(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a step name.
func (s *StepID) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for id, n := range stepNames {
		if n == name {
			*s = StepID(id)
			return nil
		}
	}
	return fmt.Errorf("unknown step %q", name)
}

// RequiredStep is the destination computed by [Resolve]: where the caller
// should send the user next.
type RequiredStep string

const (
	// RequireLogin means no authenticated user exists.
	RequireLogin RequiredStep = "login"
	// RequireVerifyEmail means the email address is unconfirmed.
	RequireVerifyEmail RequiredStep = "verify-email"
	// RequireKYC means identity verification has not begun.
	RequireKYC RequiredStep = "kyc"
	// RequireDashboard means no onboarding action is owed.
	RequireDashboard RequiredStep = "dashboard"
	// RequireSelectRole means the user is verified but has no role.
	RequireSelectRole RequiredStep = "select-role"
	// RequireWorkerProfileSetup means a worker has not completed their profile.
	RequireWorkerProfileSetup RequiredStep = "worker-profile-setup"
	// RequireEmployerDashboard is the employer landing destination. Navigation
	// layers may map RequireDashboard to it for employer accounts; Resolve
	// itself emits RequireDashboard.
	RequireEmployerDashboard RequiredStep = "employer-dashboard"
)

// VerificationProgress is the persisted state of an onboarding run. Steps are
// only ever added to CompletedSteps, never removed.
type VerificationProgress struct {
	CurrentStep    StepID         `json:"current_step"`
	CompletedSteps []StepID       `json:"completed_steps"`
	Data           map[string]any `json:"data,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
}

// Completed reports whether the step has been recorded as done.
func (p *VerificationProgress) Completed(step StepID) bool {
	for _, s := range p.CompletedSteps {
		if s == step {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to callers.
func (p *VerificationProgress) Clone() VerificationProgress {
	out := *p
	out.CompletedSteps = append([]StepID(nil), p.CompletedSteps...)
	if p.Data != nil {
		out.Data = make(map[string]any, len(p.Data))
		for k, v := range p.Data {
			out.Data[k] = v
		}
	}
	return out
}

func parseVerificationStatus(raw string) VerificationStatus {
	switch VerificationStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case VerificationPending:
		return VerificationPending
	case VerificationSubmitted:
		return VerificationSubmitted
	case VerificationApproved:
		return VerificationApproved
	case VerificationRejected:
		return VerificationRejected
	default:
		return ""
	}
}

func parseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleWorker:
		return RoleWorker
	case RoleEmployer:
		return RoleEmployer
	case RoleAdmin:
		return RoleAdmin
	case RoleModerator:
		return RoleModerator
	case RoleVerifier:
		return RoleVerifier
	case RoleCustomerCare:
		return RoleCustomerCare
	case RoleVendor:
		return RoleVendor
	default:
		return RoleUnassigned
	}
}
