package model

import "time"

// FormatKind tags which decode rule claimed a payload.
type FormatKind string

const (
	FormatCaretSeparated  FormatKind = "caret_separated"
	FormatPatternMatching FormatKind = "pattern_matching"
	FormatText            FormatKind = "text"
	FormatUnknown         FormatKind = "unknown"
)

// DecodedPayload is the structured view of one scanned string. Raw and
// FormatKind are always set; the reference fields are empty when no rule
// claimed them.
type DecodedPayload struct {
	OrderRef    string     `json:"orderRef,omitempty"`
	PackageRef  string     `json:"packageRef,omitempty"`
	CustomerRef string     `json:"customerRef,omitempty"`
	FormatKind  FormatKind `json:"formatKind"`
	Raw         string     `json:"raw"`
}

// ScanRecord is the durable result of an admitted scan.
type ScanRecord struct {
	ID          string     `db:"id" json:"id"`
	SessionID   string     `db:"session_id" json:"sessionId"`
	Payload     string     `db:"payload" json:"payload"`
	OrderRef    *string    `db:"order_ref" json:"orderRef,omitempty"`
	PackageRef  *string    `db:"package_ref" json:"packageRef,omitempty"`
	CustomerRef *string    `db:"customer_ref" json:"customerRef,omitempty"`
	FormatKind  FormatKind `db:"format_kind" json:"formatKind"`
	ScannedAt   time.Time  `db:"scanned_at" json:"scannedAt"`
}

type RecordScanParams struct {
	SessionID string
	Payload   string
	Decoded   DecodedPayload
}
