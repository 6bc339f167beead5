package requests

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
)

var validate = validator.New()

// LoanDetails is the details payload of a loan request. The amount lives on
// the request row itself.
type LoanDetails struct {
	Phone string `json:"phone" validate:"required,min=6,max=32"`
}

// ParseLoanDetails decodes and validates submitted loan details.
func ParseLoanDetails(raw json.RawMessage) (*LoanDetails, error) {
	if len(raw) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loan details required")
	}
	var details LoanDetails
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed loan details")
	}
	details.Phone = strings.TrimSpace(details.Phone)
	if err := validate.Struct(details); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid loan details")
	}
	return &details, nil
}
