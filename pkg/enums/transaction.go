package enums

import "fmt"

// TransactionType maps to the transaction_type enum in Postgres.
type TransactionType string

const (
	TransactionTypeDeposit      TransactionType = "deposit"
	TransactionTypeWithdraw     TransactionType = "withdraw"
	TransactionTypeTransfer     TransactionType = "transfer"
	TransactionTypeConsultation TransactionType = "consultation"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeDeposit,
	TransactionTypeWithdraw,
	TransactionTypeTransfer,
	TransactionTypeConsultation,
}

// String implements fmt.Stringer.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical transaction_type enum.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}

// AccountKind maps to the account_kind enum in Postgres.
type AccountKind string

const (
	AccountKindUserWallet AccountKind = "user_wallet"
	AccountKindHospital   AccountKind = "hospital"
)

var validAccountKinds = []AccountKind{
	AccountKindUserWallet,
	AccountKindHospital,
}

// IsValid reports whether the value matches the canonical account_kind enum.
func (k AccountKind) IsValid() bool {
	for _, candidate := range validAccountKinds {
		if candidate == k {
			return true
		}
	}
	return false
}
