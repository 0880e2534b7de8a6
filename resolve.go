package sessionkit

// Resolve computes which step a user must complete next. It is deterministic,
// side-effect free, and the single source of truth for onboarding gating; no
// other component may re-derive this decision.
//
// The rule order IS the contract, first match wins:
//
//  1. no user                          -> login
//  2. email not verified              -> verify-email
//  3. KYC unverified                  -> kyc
//  4. KYC pending                     -> dashboard (browsing is allowed while
//     a review is in flight; pending never blocks)
//  5. KYC verified, no role           -> select-role
//  6. worker without profile          -> worker-profile-setup
//  7. otherwise                       -> dashboard
//
// Rules 4 and 5 are asymmetric on purpose: a pending review reaches the
// dashboard but does not unlock role selection.
func Resolve(u *User) RequiredStep {
	if u == nil {
		return RequireLogin
	}
	if !u.EmailVerified {
		return RequireVerifyEmail
	}
	if u.KYC == KYCUnverified {
		return RequireKYC
	}
	if u.KYC == KYCPending {
		return RequireDashboard
	}
	if u.KYC == KYCVerified && !u.Role.Assigned() {
		return RequireSelectRole
	}
	if u.Role == RoleWorker && !u.ProfileCompleted {
		return RequireWorkerProfileSetup
	}
	return RequireDashboard
}

// fullyVerified reports whether the user has nothing left to complete, which
// makes any lingering onboarding progress eligible for deletion.
func fullyVerified(u *User) bool {
	if u == nil {
		return false
	}
	return u.EmailVerified && u.KYC == KYCVerified && u.Role.Assigned() &&
		(u.Role != RoleWorker || u.ProfileCompleted)
}
