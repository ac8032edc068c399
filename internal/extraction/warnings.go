package extraction

import "strings"

// Warnings are short machine-readable strings, optionally followed by
// colon-separated details.
const (
	WarnAmountMismatch = "amount_mismatch"
	WarnSpanCeiling    = "positional_skipped:span_ceiling"
)

func warn(kind string, details ...string) string {
	if len(details) == 0 {
		return kind
	}
	return kind + ":" + strings.Join(details, ":")
}

// WarnMissingRequired is emitted when a required field has no value.
func WarnMissingRequired(field string) string { return warn("missing_required_field", field) }

// WarnImplausible is emitted when a template capture is too short to trust
// and nothing replaced it.
func WarnImplausible(field string) string { return warn("implausible_capture", field) }

// WarnDiscarded records the losing value of a reconciliation conflict.
func WarnDiscarded(field string, src Source, raw string) string {
	return warn("discarded_alternative", field, src.String(), raw)
}

// WarnUnparsableDate is emitted when no date format accepts a value.
func WarnUnparsableDate(field string) string { return warn("unparsable_date", field) }

// WarnUnparsableMoney is emitted when a monetary value cannot be parsed.
func WarnUnparsableMoney(field string) string { return warn("unparsable_money", field) }

// WarnUnparsableInteger is emitted when an integer value cannot be parsed.
func WarnUnparsableInteger(field string) string { return warn("unparsable_integer", field) }

// WarnAmbiguousParty is emitted when a name or tax id is equally close to
// the buyer and seller anchors.
func WarnAmbiguousParty(text string) string { return warn("ambiguous_party_assignment", text) }

// warnings is an ordered list without duplicates.
type warnings []string

func (w *warnings) add(msgs ...string) {
	for _, m := range msgs {
		if !w.has(m) {
			*w = append(*w, m)
		}
	}
}

func (w warnings) has(m string) bool {
	for _, x := range w {
		if x == m {
			return true
		}
	}
	return false
}
