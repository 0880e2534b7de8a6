package sessionkit

import (
	"encoding/json"
	"reflect"
	"testing"
)

func boolPtr(b bool) *bool       { return &b }
func floatPtr(f float64) *float64 { return &f }

func TestDeriveKYC(t *testing.T) {
	cases := []struct {
		name     string
		status   VerificationStatus
		document bool
		want     KYCStatus
	}{
		{"approved", VerificationApproved, false, KYCVerified},
		{"document flag wins over pending", VerificationPending, true, KYCVerified},
		{"document flag wins over rejected", VerificationRejected, true, KYCVerified},
		{"pending", VerificationPending, false, KYCPending},
		{"submitted", VerificationSubmitted, false, KYCPending},
		{"rejected", VerificationRejected, false, KYCRejected},
		{"unknown status", "", false, KYCUnverified},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := deriveKYC(tc.status, tc.document); got != tc.want {
				t.Fatalf("deriveKYC(%q, %v) = %q, want %q", tc.status, tc.document, got, tc.want)
			}
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	u := Normalize(ServerUserPayload{ID: "u1", Email: "a@b.c"})

	if u.EmailVerified || u.DocumentVerified || u.WalletCreated || u.BankAccountLinked || u.ProfileCompleted {
		t.Fatalf("absent booleans must default to false, got %+v", u)
	}
	if u.TrustScore != 0 {
		t.Fatalf("absent trust score must default to 0, got %v", u.TrustScore)
	}
	if u.KYC != KYCUnverified {
		t.Fatalf("KYC = %q, want %q", u.KYC, KYCUnverified)
	}
	if u.Role != RoleUnassigned {
		t.Fatalf("Role = %q, want %q", u.Role, RoleUnassigned)
	}
}

func TestNormalizeWalletDerivation(t *testing.T) {
	if u := Normalize(ServerUserPayload{WalletAddress: "0xabc"}); !u.WalletCreated {
		t.Fatal("non-empty wallet address must imply WalletCreated")
	}
	if u := Normalize(ServerUserPayload{}); u.WalletCreated {
		t.Fatal("absent wallet address must not imply WalletCreated")
	}
}

func TestNormalizePreservesUnknownFields(t *testing.T) {
	raw := []byte(`{
		"id": "u1",
		"email_verified": true,
		"verification_status": "approved",
		"referral_tier": {"level": 3},
		"documents": ["passport.png"]
	}`)

	var payload ServerUserPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	u := Normalize(payload)
	if u.KYC != KYCVerified {
		t.Fatalf("KYC = %q, want verified", u.KYC)
	}
	if len(u.Extra) != 2 {
		t.Fatalf("Extra = %v, want the 2 unknown fields preserved", u.Extra)
	}
	if string(u.Extra["documents"]) != `["passport.png"]` {
		t.Fatalf("documents passthrough corrupted: %s", u.Extra["documents"])
	}
}

// denormalize rebuilds the raw payload a server would have sent for a
// canonical user, dropping the derived fields (KYC, WalletCreated).
func denormalize(u User) ServerUserPayload {
	return ServerUserPayload{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Username:           u.Username,
		EmailVerified:      boolPtr(u.EmailVerified),
		VerificationStatus: string(u.VerificationStatus),
		DocumentVerified:   boolPtr(u.DocumentVerified),
		Role:               string(u.Role),
		WalletAddress:      u.WalletAddress,
		BankAccountLinked:  boolPtr(u.BankAccountLinked),
		ProfileCompleted:   boolPtr(u.ProfileCompleted),
		TrustScore:         floatPtr(u.TrustScore),
		Avatar:             u.Avatar,
		ReferralCode:       u.ReferralCode,
		Extra:              u.Extra,
	}
}

func TestNormalizeRoundTripIdempotent(t *testing.T) {
	users := []User{
		{
			ID: "u1", Name: "Alice", Email: "a@b.c", Username: "alice",
			EmailVerified: true, VerificationStatus: VerificationApproved,
			KYC: KYCVerified, Role: RoleWorker, WalletAddress: "0xabc",
			WalletCreated: true, ProfileCompleted: true, TrustScore: 4.5,
			Extra: map[string]json.RawMessage{"badge": json.RawMessage(`"gold"`)},
		},
		{
			ID: "u2", Email: "x@y.z", EmailVerified: true,
			VerificationStatus: VerificationSubmitted, KYC: KYCPending,
			Role: RoleUnassigned,
		},
		{
			ID: "u3", EmailVerified: false,
			VerificationStatus: VerificationRejected, KYC: KYCRejected,
			Role: RoleEmployer, BankAccountLinked: true,
		},
	}

	for _, u := range users {
		got := Normalize(denormalize(u))
		if !reflect.DeepEqual(got, u) {
			t.Fatalf("round trip not idempotent for %s:\n got %+v\nwant %+v", u.ID, got, u)
		}
	}
}

func TestStepIDJSONRoundTrip(t *testing.T) {
	for s := StepTerms; s <= StepComplete; s++ {
		raw, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("marshal %v: %v", s, err)
		}
		var back StepID
		if err := json.Unmarshal(raw, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if back != s {
			t.Fatalf("round trip %v -> %s -> %v", s, raw, back)
		}
	}

	var s StepID
	if err := json.Unmarshal([]byte(`"teleport"`), &s); err == nil {
		t.Fatal("unknown step name must fail to decode")
	}
}

func TestStepOrder(t *testing.T) {
	want := []StepID{StepTerms, StepDocument, StepFacial, StepRole, StepWallet, StepBank, StepProfile, StepComplete}
	s := StepTerms
	for i, expect := range want {
		if s != expect {
			t.Fatalf("position %d = %v, want %v", i, s, expect)
		}
		s = s.Next()
	}
	if StepComplete.Next() != StepComplete {
		t.Fatal("Complete must be absorbing")
	}
}
