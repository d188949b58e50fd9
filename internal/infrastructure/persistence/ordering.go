package persistence

import (
	"slices"
	"strings"
)

// sortColumns is the allowlist of columns a list query may order by. The
// first column is the fallback for empty or unknown input, so user-supplied
// ordering never reaches SQL unchecked.
type sortColumns []string

var (
	invoiceSortColumns = sortColumns{
		"created_at", "updated_at", "id", "invoice_number", "due_date",
		"total_amount", "paid_amount", "balance", "status",
	}
	refundSortColumns = sortColumns{
		"created_at", "updated_at", "id", "refund_number", "amount",
		"status", "approved_at", "processed_at",
	}
	auditLogSortColumns = sortColumns{
		"created_at", "id", "entity_type", "action",
	}
)

// orderBy returns "<column> ASC|DESC". Direction defaults to DESC.
func (s sortColumns) orderBy(column, direction string) string {
	column = strings.TrimSpace(column)
	if !slices.Contains(s, column) {
		column = s[0]
	}
	if strings.EqualFold(strings.TrimSpace(direction), "asc") {
		return column + " ASC"
	}
	return column + " DESC"
}
