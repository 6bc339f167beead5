package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ledgerConstraints names the ledger guard behind a Postgres constraint so a
// rejected write can be read from the logs without opening the migrations.
var ledgerConstraints = map[string]string{
	"ck_accounts_balance_non_negative": "balance would go negative",
	"ck_transactions_amount_positive":  "transaction amount must be positive",
	"ck_moderated_requests_amounts":    "net amount must equal amount minus commission",
	"ck_moderated_requests_decision":   "decided_at must be set once the request leaves pending",
	"ux_transactions_code":             "transaction code reused",
	"ux_moderated_requests_code":       "request code reused",
	"ux_accounts_kind_owner":           "owner already has an account of this kind",
}

// ErrorDump is the log view of an error chain.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
	LedgerGuard  string `json:"ledger_guard,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.PGCode, d.PGConstraint = pgxErr.Code, pgxErr.ConstraintName
		d.PGTable, d.PGColumn = pgxErr.TableName, pgxErr.ColumnName
		d.PGDetail, d.PGMessage = pgxErr.Detail, pgxErr.Message
	case errors.As(err, &pqErr):
		d.PGCode, d.PGConstraint = string(pqErr.Code), pqErr.Constraint
		d.PGTable, d.PGColumn = pqErr.Table, pqErr.Column
		d.PGDetail, d.PGMessage = pqErr.Detail, pqErr.Message
	}
	d.LedgerGuard = ledgerConstraints[d.PGConstraint]
	return d
}

// Fields flattens the dump into structured log fields. Empty driver fields
// are left out.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	for key, value := range map[string]string{
		"pg_code":       d.PGCode,
		"pg_constraint": d.PGConstraint,
		"pg_table":      d.PGTable,
		"pg_column":     d.PGColumn,
		"pg_detail":     d.PGDetail,
		"pg_message":    d.PGMessage,
		"ledger_guard":  d.LedgerGuard,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}
