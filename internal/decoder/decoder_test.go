package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/packstation/station-server-go/internal/model"
)

func TestDecodeCaretSeparated(t *testing.T) {
	t.Run("extracts order, package and customer fields", func(t *testing.T) {
		p := Decode("1^ORD-42^CUST-9^PKG-777")

		assert.Equal(t, model.FormatCaretSeparated, p.FormatKind)
		assert.Equal(t, "ORD-42", p.OrderRef)
		assert.Equal(t, "PKG-777", p.PackageRef)
		assert.Equal(t, "Kunde: CUST-9", p.CustomerRef)
		assert.Equal(t, "1^ORD-42^CUST-9^PKG-777", p.Raw)
	})

	t.Run("empty customer field leaves customerRef empty", func(t *testing.T) {
		p := Decode("1^ORD-42^^PKG-777")

		assert.Equal(t, model.FormatCaretSeparated, p.FormatKind)
		assert.Equal(t, "ORD-42", p.OrderRef)
		assert.Equal(t, "PKG-777", p.PackageRef)
		assert.Empty(t, p.CustomerRef)
	})

	t.Run("fewer than four fields falls through to pattern matching", func(t *testing.T) {
		p := Decode("AB-123^something")

		assert.Equal(t, model.FormatPatternMatching, p.FormatKind)
		assert.Equal(t, "AB-123", p.OrderRef)
	})

	t.Run("claims fields even when they are blank", func(t *testing.T) {
		// The caret rule wins on shape alone; pattern matching never gets a
		// second chance at its fields.
		p := Decode("^^^")

		assert.Equal(t, model.FormatCaretSeparated, p.FormatKind)
		assert.Empty(t, p.OrderRef)
		assert.Empty(t, p.PackageRef)
	})
}

func TestDecodePatternMatching(t *testing.T) {
	t.Run("extracts order reference by shape", func(t *testing.T) {
		p := Decode("Auftrag XX-12345 bitte bearbeiten")

		assert.Equal(t, model.FormatPatternMatching, p.FormatKind)
		assert.Equal(t, "XX-12345", p.OrderRef)
	})

	t.Run("extracts package reference as long digit run", func(t *testing.T) {
		p := Decode("Paket 00340434161094015902")

		assert.Equal(t, model.FormatPatternMatching, p.FormatKind)
		assert.Equal(t, "00340434161094015902", p.PackageRef)
	})

	t.Run("short digit runs are not package references", func(t *testing.T) {
		p := Decode("Paket 123456789")

		assert.Empty(t, p.PackageRef)
	})

	t.Run("extracts customer from KUNDENNAME label", func(t *testing.T) {
		p := Decode("KUNDENNAME: Muster GmbH\nweitere Zeile")

		assert.Equal(t, model.FormatPatternMatching, p.FormatKind)
		assert.Equal(t, "Muster GmbH", p.CustomerRef)
	})

	t.Run("customer segment stops at next recognized label", func(t *testing.T) {
		p := Decode("KUNDENNAME: Muster GmbH Tracking: 1234567890123")

		assert.Equal(t, "Muster GmbH", p.CustomerRef)
		assert.Equal(t, "1234567890123", p.PackageRef)
	})

	t.Run("falls back to Referenz label for order reference", func(t *testing.T) {
		p := Decode("Referenz: 4711-REF")

		assert.Equal(t, model.FormatPatternMatching, p.FormatKind)
		assert.Equal(t, "4711-REF", p.OrderRef)
	})

	t.Run("falls back to Tracking label for package reference", func(t *testing.T) {
		p := Decode("Tracking: ZX99")

		assert.Equal(t, model.FormatPatternMatching, p.FormatKind)
		assert.Equal(t, "ZX99", p.PackageRef)
	})

	t.Run("combines all three fields from one payload", func(t *testing.T) {
		p := Decode("AB-555 1234567890123456 KUNDENNAME: ACME")

		assert.Equal(t, "AB-555", p.OrderRef)
		assert.Equal(t, "1234567890123456", p.PackageRef)
		assert.Equal(t, "ACME", p.CustomerRef)
	})
}

func TestDecodeFallbacks(t *testing.T) {
	t.Run("unrecognized payload degrades to text", func(t *testing.T) {
		p := Decode("hello world")

		assert.Equal(t, model.FormatText, p.FormatKind)
		assert.Empty(t, p.OrderRef)
		assert.Empty(t, p.PackageRef)
		assert.Empty(t, p.CustomerRef)
		assert.Equal(t, "hello world", p.Raw)
	})

	t.Run("empty input yields unknown format", func(t *testing.T) {
		p := Decode("")

		assert.Equal(t, model.FormatUnknown, p.FormatKind)
		assert.Empty(t, p.OrderRef)
		assert.Empty(t, p.PackageRef)
		assert.Empty(t, p.CustomerRef)
	})
}

func TestDecodeIsDeterministic(t *testing.T) {
	inputs := []string{
		"",
		"1^ORD-42^CUST-9^PKG-777",
		"Referenz: A-1 Tracking: 9999999999",
		"plain text",
	}

	for _, raw := range inputs {
		first := Decode(raw)
		second := Decode(raw)
		assert.Equal(t, first, second, "decode must be idempotent for %q", raw)
	}
}

func TestLabeledValue(t *testing.T) {
	t.Run("missing label abstains", func(t *testing.T) {
		assert.Empty(t, labeledValue("no labels here", labelCustomer))
	})

	t.Run("value trimmed at line break", func(t *testing.T) {
		assert.Equal(t, "Foo", labeledValue("KUNDENNAME: Foo\nBar", labelCustomer))
	})

	t.Run("value trimmed at other label", func(t *testing.T) {
		assert.Equal(t, "Foo", labeledValue("KUNDENNAME: Foo Referenz: X", labelCustomer))
	})

	t.Run("value runs to end of payload otherwise", func(t *testing.T) {
		assert.Equal(t, "Foo Bar", labeledValue("KUNDENNAME:  Foo Bar ", labelCustomer))
	})
}
