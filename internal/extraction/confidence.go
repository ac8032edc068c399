package extraction

const (
	requiredWeight         = 2.0
	optionalWeight         = 1.0
	missingRequiredPenalty = 0.85
	amountMismatchPenalty  = 0.8
	positionalForDeclared  = 0.9
	minNonEmptyOverall     = 0.01
)

// score aggregates field confidences into the overall confidence of rec.
// It is zero only when rec has no fields.
func score(rec *record, n normalized) float64 {
	if len(rec.fields) == 0 {
		return 0
	}

	var sum, weights float64
	for _, name := range rec.keys {
		fv, ok := rec.get(name)
		if !ok {
			continue
		}
		w := optionalWeight
		if rec.required(name) {
			w = requiredWeight
		}
		sum += w * fv.Confidence
		weights += w
	}
	overall := sum / weights

	if rec.tpl != nil {
		for _, name := range rec.tpl.RequiredFields() {
			if _, ok := rec.get(name); !ok {
				overall *= missingRequiredPenalty
			}
		}
		for _, name := range rec.keys {
			if fv, ok := rec.get(name); ok && fv.Source == SourcePositional && rec.tpl.Declares(name) {
				overall *= positionalForDeclared
			}
		}
	}
	if n.mismatch {
		overall *= amountMismatchPenalty
	}

	return max(minNonEmptyOverall, clamp01(overall))
}
