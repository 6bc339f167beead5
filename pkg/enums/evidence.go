package enums

import "fmt"

// EvidenceStatus maps to the evidence_status enum in Postgres.
type EvidenceStatus string

const (
	EvidenceStatusPending  EvidenceStatus = "pending"
	EvidenceStatusAttached EvidenceStatus = "attached"
	EvidenceStatusReleased EvidenceStatus = "released"
)

var validEvidenceStatuses = []EvidenceStatus{
	EvidenceStatusPending,
	EvidenceStatusAttached,
	EvidenceStatusReleased,
}

// IsValid reports whether the value matches the canonical evidence_status enum.
func (s EvidenceStatus) IsValid() bool {
	for _, candidate := range validEvidenceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// EvidencePurpose describes which request kind an upload supports.
type EvidencePurpose string

const (
	EvidencePurposeDepositReceipt EvidencePurpose = "deposit_receipt"
	EvidencePurposeCredential     EvidencePurpose = "credential"
	EvidencePurposeIDCard         EvidencePurpose = "id_card"
)

var validEvidencePurposes = []EvidencePurpose{
	EvidencePurposeDepositReceipt,
	EvidencePurposeCredential,
	EvidencePurposeIDCard,
}

// IsValid reports whether the value matches the canonical evidence_purpose enum.
func (p EvidencePurpose) IsValid() bool {
	for _, candidate := range validEvidencePurposes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseEvidencePurpose converts raw input into EvidencePurpose.
func ParseEvidencePurpose(value string) (EvidencePurpose, error) {
	for _, candidate := range validEvidencePurposes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid evidence purpose %q", value)
}
