package domain

import dErrors "verilink/pkg/domain-errors"

// PolicyType classifies what kind of policy a verification is issued for.
// It drives verifier eligibility (specialization matching) and whether photo
// evidence is geofenced against a fixed property location.
type PolicyType string

const (
	PolicyTypeHomeInsurance PolicyType = "home_insurance"
	PolicyTypeAutoInsurance PolicyType = "auto_insurance"
	PolicyTypeCreditCard    PolicyType = "credit_card"
)

// ParsePolicyType validates an untrusted policy type string.
func ParsePolicyType(raw string) (PolicyType, error) {
	switch PolicyType(raw) {
	case PolicyTypeHomeInsurance, PolicyTypeAutoInsurance, PolicyTypeCreditCard:
		return PolicyType(raw), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown policy type: "+raw)
}

// PropertyBound reports whether verifications of this type are tied to a fixed
// location. Only property-bound types require GPS capture on photo evidence;
// for the rest a photo is accepted regardless of where it was taken.
func (t PolicyType) PropertyBound() bool {
	return t == PolicyTypeHomeInsurance
}

func (t PolicyType) String() string { return string(t) }
