package checkout

import "fmt"

// FormatInvoiceNumber renders the human-readable invoice identifier:
// INV-<4-digit year><2-digit month>-<4-digit zero-padded sequence>.
// The sequence restarts at 1 each month per account; numbers past 9999
// simply widen rather than wrap.
func FormatInvoiceNumber(year, month int, seq int64) string {
	return fmt.Sprintf("INV-%04d%02d-%04d", year, month, seq)
}
