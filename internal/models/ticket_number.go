package models

import "fmt"

// FormatTicketNumber renders a ticket number as prefix + zero-padded ordinal.
// Width-3 padding is a display convention, not a ceiling: ordinals past 999
// simply render wider ("A1000").
func FormatTicketNumber(prefix string, n int) string {
	return fmt.Sprintf("%s%03d", prefix, n)
}
