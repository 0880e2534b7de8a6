package sessionkit

// Normalize maps a raw server user record into the canonical [User]. It is a
// pure function: no side effects, same input same output.
//
// Derivations:
//   - KYC is computed from (verification_status, document_verified) and never
//     taken from the payload directly.
//   - WalletCreated is derived from wallet-address presence.
//   - Every optional numeric/boolean defaults to its zero value when absent,
//     so no absence ever propagates into the canonical model.
//   - Unknown payload fields are carried through verbatim in Extra.
func Normalize(p ServerUserPayload) User {
	status := parseVerificationStatus(p.VerificationStatus)

	u := User{
		ID:            p.ID,
		Name:          p.Name,
		Email:         p.Email,
		Username:      p.Username,
		EmailVerified: boolOrFalse(p.EmailVerified),

		VerificationStatus: status,
		DocumentVerified:   boolOrFalse(p.DocumentVerified),

		Role: parseRole(p.Role),

		WalletAddress:     p.WalletAddress,
		WalletCreated:     p.WalletAddress != "",
		BankAccountLinked: boolOrFalse(p.BankAccountLinked),
		ProfileCompleted:  boolOrFalse(p.ProfileCompleted),
		TrustScore:        floatOrZero(p.TrustScore),

		Avatar:       p.Avatar,
		ReferralCode: p.ReferralCode,
	}
	u.KYC = deriveKYC(status, u.DocumentVerified)

	if len(p.Extra) > 0 {
		u.Extra = p.Extra
	}
	return u
}

// deriveKYC computes the derived verification state. An approved review or a
// set document flag wins; an in-flight review is pending; a rejection is
// rejected; anything else is unverified.
func deriveKYC(status VerificationStatus, documentVerified bool) KYCStatus {
	switch {
	case status == VerificationApproved || documentVerified:
		return KYCVerified
	case status == VerificationPending || status == VerificationSubmitted:
		return KYCPending
	case status == VerificationRejected:
		return KYCRejected
	default:
		return KYCUnverified
	}
}

func boolOrFalse(p *bool) bool {
	return p != nil && *p
}

func floatOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
