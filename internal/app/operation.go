package app

import (
	"fmt"
	"sort"
	"strings"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// AuditOperation tracks a CLI command that mutates stored data.
// Operations are created in memory with ID=0. Only mutating commands persist
// them, which gives them an auto-increment ID from the operations table.
type AuditOperation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewAuditOperation creates a new in-memory operation.
func NewAuditOperation(operation string) *AuditOperation {
	return &AuditOperation{
		Operation: operation,
		Status:    statusSuccess,
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *AuditOperation) Persisted() bool {
	return op.ID != 0
}

// SetParameters records the operation's arguments as sorted key=value pairs.
// Values are quoted when they contain spaces.
func (op *AuditOperation) SetParameters(params map[string]string) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := params[k]
		if strings.ContainsAny(v, " \t") {
			v = fmt.Sprintf("%q", v)
		}
		parts = append(parts, k+"="+v)
	}
	op.Parameters = strings.Join(parts, " ")
}

// Observe marks the operation failed when err is non-nil and returns err unchanged.
func (op *AuditOperation) Observe(err error) error {
	if err != nil {
		op.Status = statusError
	}
	return err
}
