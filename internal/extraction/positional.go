package extraction

import (
	"math"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/a3tai/docfields/internal/document"
	"github.com/a3tai/docfields/internal/textnorm"
)

// Field names produced by the Positional Extractor.
const (
	FieldInvoiceNumber = "invoice_number"
	FieldInvoiceCode   = "invoice_code"
	FieldInvoiceDate   = "invoice_date"
	FieldPretaxAmount  = "pretax_amount"
	FieldTaxAmount     = "tax_amount"
	FieldTotalAmount   = "total_amount"
	FieldBuyerName     = "buyer_name"
	FieldBuyerTaxID    = "buyer_tax_id"
	FieldSellerName    = "seller_name"
	FieldSellerTaxID   = "seller_tax_id"
)

// PositionalFields lists every field the Positional Extractor can produce.
func PositionalFields() []string {
	return []string{
		FieldInvoiceNumber, FieldInvoiceCode, FieldInvoiceDate,
		FieldPretaxAmount, FieldTaxAmount, FieldTotalAmount,
		FieldBuyerName, FieldBuyerTaxID, FieldSellerName, FieldSellerTaxID,
	}
}

// PositionalConfig bounds the proximity search.
type PositionalConfig struct {
	// MaxSpans is the span ceiling above which positional extraction is
	// skipped.
	MaxSpans int
	// RadiusX and RadiusY expand an anchor box into its search window.
	RadiusX float64
	RadiusY float64
	// ChainGap is the largest edge gap between two spans of one name.
	ChainGap float64
	// MaxChainParts caps the number of spans joined into one name.
	MaxChainParts int
}

// DefaultPositionalConfig returns limits tuned to A4/A5 invoice cells.
func DefaultPositionalConfig() PositionalConfig {
	return PositionalConfig{
		MaxSpans:      5000,
		RadiusX:       220,
		RadiusY:       60,
		ChainGap:      6,
		MaxChainParts: 32,
	}
}

type labelKind int

const (
	labelField labelKind = iota
	labelBuyer
	labelSeller
	labelName
	labelTaxID
)

type valueClass int

const (
	classNone valueClass = iota
	classNumber
	classDate
	classMoney
)

type label struct {
	token string
	kind  labelKind
	field string
	class valueClass
}

// knownLabels is ordered by specificity; a span takes the first label whose
// token prefixes its key, and a field prefers values found by earlier labels.
var knownLabels = []label{
	{"发票号码", labelField, FieldInvoiceNumber, classNumber},
	{"发票代码", labelField, FieldInvoiceCode, classNumber},
	{"开票日期", labelField, FieldInvoiceDate, classDate},
	{"价税合计", labelField, FieldTotalAmount, classMoney},
	{"小写", labelField, FieldTotalAmount, classMoney},
	{"合计金额", labelField, FieldPretaxAmount, classMoney},
	{"合计税额", labelField, FieldTaxAmount, classMoney},
	{"金额", labelField, FieldPretaxAmount, classMoney},
	{"税额", labelField, FieldTaxAmount, classMoney},
	{"购买方", labelBuyer, "", classNone},
	{"购方", labelBuyer, "", classNone},
	{"销售方", labelSeller, "", classNone},
	{"销方", labelSeller, "", classNone},
	{"统一社会信用代码", labelTaxID, "", classNone},
	{"纳税人识别号", labelTaxID, "", classNone},
	{"名称", labelName, "", classNone},
}

var entitySuffixes = []string{
	"事务所", "研究院", "合作社", "工作室", "门市部", "经营部",
	"公司", "企业", "中心", "集团", "商行", "商店", "医院", "学校", "酒店", "银行",
	"厂", "店",
}

var (
	numberRe = regexp.MustCompile(`^\d{6,20}$`)
	dateRe   = regexp.MustCompile(`^(?:\d{4}(?:年\d{1,2}月\d{1,2}日?|[-/.]\d{1,2}[-/.]\d{1,2})|(?:19|20)\d{2}(?:0[1-9]|1[0-2])(?:0[1-9]|[12]\d|3[01]))$`)
	moneyRe  = regexp.MustCompile(`^(?:[¥$€£]|RMB|CNY)?-?\d[\d,.]*元?$`)
	taxIDRe  = regexp.MustCompile(`^[0-9A-Z]{15,20}$`)
)

// compact is the comparison form of span text: glyph-repaired, width-folded
// and without whitespace.
func compact(s string) string {
	return textnorm.StripSpaces(textnorm.FoldWidth(textnorm.RepairGlyphs(s)))
}

func (c valueClass) accepts(s string) bool {
	switch c {
	case classNumber:
		return numberRe.MatchString(s)
	case classDate:
		return dateRe.MatchString(s)
	case classMoney:
		return moneyRe.MatchString(s)
	}
	return false
}

func isTaxID(s string) bool { return taxIDRe.MatchString(s) }

func isEntityName(s string) bool {
	for _, suf := range entitySuffixes {
		if strings.HasSuffix(s, suf) {
			return utf8.RuneCountInString(s) >= utf8.RuneCountInString(suf)+2
		}
	}
	return false
}

func hasCJK(s string) bool {
	for _, r := range s {
		if textnorm.IsCJK(r) {
			return true
		}
	}
	return false
}

// matchLabel returns the label a span text starts with and the inline text
// that follows the label.
func matchLabel(text string) (label, string, bool) {
	key := strings.TrimLeft(textnorm.LabelKey(text), "(（【[")
	for _, l := range knownLabels {
		if !strings.HasPrefix(key, l.token) {
			continue
		}
		rest := key[len(l.token):]
		for {
			rest = strings.TrimLeft(rest, ")）】]:：")
			trimmed := rest
			for _, m := range []string{"名称", "纳税人识别号", "统一社会信用代码"} {
				trimmed = strings.TrimPrefix(trimmed, m)
			}
			if trimmed == rest {
				break
			}
			rest = trimmed
		}
		return l, compact(rest), true
	}
	return label{}, "", false
}

type anchor struct {
	label  label
	page   uint32
	box    document.BBox
	inline string
}

type candidate struct {
	text  string
	page  uint32
	box   document.BBox
	spans []int
}

// PositionalResult is the Positional Extractor's partial result.
type PositionalResult struct {
	Fields   map[string]FieldValue
	Warnings []string
}

// Positional locates field values by label/value proximity over span
// geometry.
type Positional struct {
	cfg PositionalConfig
}

// NewPositional returns a Positional extractor. Zero limits are replaced by
// their defaults.
func NewPositional(cfg PositionalConfig) *Positional {
	def := DefaultPositionalConfig()
	if cfg.MaxSpans <= 0 {
		cfg.MaxSpans = def.MaxSpans
	}
	if cfg.RadiusX <= 0 {
		cfg.RadiusX = def.RadiusX
	}
	if cfg.RadiusY <= 0 {
		cfg.RadiusY = def.RadiusY
	}
	if cfg.ChainGap <= 0 {
		cfg.ChainGap = def.ChainGap
	}
	if cfg.MaxChainParts <= 0 {
		cfg.MaxChainParts = def.MaxChainParts
	}
	return &Positional{cfg: cfg}
}

// Config returns the effective limits.
func (p *Positional) Config() PositionalConfig { return p.cfg }

// Extract never fails: fields without a locatable value are omitted.
func (p *Positional) Extract(doc *document.Document) *PositionalResult {
	res := &PositionalResult{Fields: map[string]FieldValue{}}
	if !doc.HasSpans() {
		return res
	}
	if len(doc.Spans) > p.cfg.MaxSpans {
		res.Warnings = append(res.Warnings, WarnSpanCeiling)
		return res
	}

	x := &layout{cfg: p.cfg, spans: doc.Spans, isLabel: make([]bool, len(doc.Spans))}
	x.findAnchors()
	x.index = newSpanIndex(x.spans, func(i int) bool { return !x.isLabel[i] })
	x.used = make([]bool, len(x.spans))

	x.directFields(res)
	x.parties(res)
	return res
}

type layout struct {
	cfg     PositionalConfig
	spans   []document.Span
	isLabel []bool
	used    []bool
	anchors []anchor
	index   *spanIndex
}

func (x *layout) findAnchors() {
	for _, i := range document.ReadingOrder(x.spans) {
		s := x.spans[i]
		if l, inline, ok := matchLabel(s.Text); ok {
			x.isLabel[i] = true
			x.anchors = append(x.anchors, anchor{label: l, page: s.Page, box: s.BBox, inline: inline})
		}
	}
	x.verticalLabels()
}

// verticalLabels recognises side labels printed as a column of single
// glyphs ("购" over "买" over "方").
func (x *layout) verticalLabels() {
	isGlyph := func(i int) bool {
		t := compact(x.spans[i].Text)
		return !x.isLabel[i] && t != "" && utf8.RuneCountInString(t) <= 2 && hasCJK(t)
	}
	for _, ch := range x.chains(isGlyph, x.below) {
		key := ch.text
		for _, l := range knownLabels {
			if l.kind != labelBuyer && l.kind != labelSeller {
				continue
			}
			if !strings.HasPrefix(key, l.token) {
				continue
			}
			for _, i := range ch.spans {
				x.isLabel[i] = true
			}
			x.anchors = append(x.anchors, anchor{label: l, page: ch.page, box: ch.box})
			break
		}
	}
}

func (x *layout) window(a anchor) document.BBox {
	return a.box.Expand(x.cfg.RadiusX, x.cfg.RadiusY)
}

func (x *layout) diag(a anchor) float64 {
	w := x.window(a)
	return math.Hypot(w.Width(), w.Height())
}

// proximityConfidence maps a distance inside an anchor's window to
// [0.40, 0.90].
func proximityConfidence(d, diag float64) float64 {
	if diag <= 0 {
		return 0.40
	}
	return 0.40 + 0.50*(1-math.Min(1, d/diag))
}

const (
	inlineConfidence  = 0.90
	ambiguityPenalty  = 0.8
	ambiguityDistance = 1.0
)

type pick struct {
	field string
	text  string
	conf  float64
	spans []int
	rank  int
}

func (x *layout) directFields(res *PositionalResult) {
	best := map[string]pick{}
	consider := func(p pick) {
		cur, ok := best[p.field]
		if !ok || p.rank < cur.rank || (p.rank == cur.rank && p.conf > cur.conf) {
			best[p.field] = p
		}
	}

	for _, a := range x.anchors {
		if a.label.kind != labelField {
			continue
		}
		rank := slices.IndexFunc(knownLabels, func(l label) bool { return l.token == a.label.token })
		if a.inline != "" {
			if a.label.class.accepts(a.inline) {
				consider(pick{field: a.label.field, text: a.inline, conf: inlineConfidence, rank: rank})
			}
			continue
		}

		type scoredSpan struct {
			i int
			d float64
		}
		var cands []scoredSpan
		for _, i := range x.index.within(a.page, x.window(a)) {
			s := x.spans[i]
			if s.BBox.X1 <= a.box.X0 || s.BBox.Y1 <= a.box.Y0 {
				continue
			}
			if !a.label.class.accepts(compact(s.Text)) {
				continue
			}
			cands = append(cands, scoredSpan{i, a.box.Distance(s.BBox)})
		}
		if len(cands) == 0 {
			continue
		}
		slices.SortStableFunc(cands, func(p, q scoredSpan) int {
			switch {
			case p.d < q.d:
				return -1
			case p.d > q.d:
				return 1
			}
			return 0
		})
		top := cands[0]
		conf := proximityConfidence(top.d, x.diag(a))
		for _, c := range cands[1:] {
			if c.d-top.d > ambiguityDistance {
				break
			}
			if compact(x.spans[c.i].Text) != compact(x.spans[top.i].Text) {
				conf *= ambiguityPenalty
				break
			}
		}
		consider(pick{
			field: a.label.field,
			text:  strings.TrimSpace(x.spans[top.i].Text),
			conf:  conf,
			spans: []int{top.i},
			rank:  rank,
		})
	}

	for _, field := range PositionalFields() {
		p, ok := best[field]
		if !ok {
			continue
		}
		for _, i := range p.spans {
			x.used[i] = true
		}
		res.Fields[field] = FieldValue{Raw: p.text, Source: SourcePositional, Confidence: clamp01(p.conf)}
	}
}

// below reports whether b continues a downward: stacked with horizontal
// overlap and a small vertical gap.
func (x *layout) below(a, b document.Span) bool {
	if a.Page != b.Page {
		return false
	}
	gap := b.BBox.Y0 - a.BBox.Y1
	minW := math.Min(a.BBox.Width(), b.BBox.Width())
	return gap >= -ambiguityDistance && gap <= x.cfg.ChainGap &&
		b.BBox.Y0 > a.BBox.Y0 &&
		a.BBox.HOverlap(b.BBox) > 0.5*minW
}

// right reports whether b continues a to the right on the same line.
func (x *layout) right(a, b document.Span) bool {
	if a.Page != b.Page {
		return false
	}
	gap := b.BBox.X0 - a.BBox.X1
	minH := math.Min(a.BBox.Height(), b.BBox.Height())
	return gap >= -ambiguityDistance && gap <= x.cfg.ChainGap &&
		b.BBox.X0 > a.BBox.X0 &&
		a.BBox.VOverlap(b.BBox) > 0.5*minH
}

func (x *layout) belowOrRight(a, b document.Span) bool {
	return x.below(a, b) || x.right(a, b)
}

// chains links member spans into runs. Each run starts at a span with no
// adjacent predecessor and follows the nearest adjacent successor.
func (x *layout) chains(member func(int) bool, adjacent func(a, b document.Span) bool) []candidate {
	var parts []int
	for _, i := range document.ReadingOrder(x.spans) {
		if member(i) {
			parts = append(parts, i)
		}
	}

	hasPred := make(map[int]bool, len(parts))
	for _, a := range parts {
		for _, b := range parts {
			if a != b && adjacent(x.spans[a], x.spans[b]) {
				hasPred[b] = true
			}
		}
	}

	visited := make(map[int]bool, len(parts))
	var out []candidate
	for _, head := range parts {
		if hasPred[head] || visited[head] {
			continue
		}
		var run []int
		for cur := head; cur >= 0 && len(run) < x.cfg.MaxChainParts; {
			visited[cur] = true
			run = append(run, cur)
			next, bestGap := -1, math.Inf(1)
			for _, b := range parts {
				if visited[b] || !adjacent(x.spans[cur], x.spans[b]) {
					continue
				}
				if g := x.spans[cur].BBox.Gap(x.spans[b].BBox); g < bestGap {
					next, bestGap = b, g
				}
			}
			cur = next
		}
		out = append(out, x.join(run))
	}
	return out
}

func (x *layout) join(run []int) candidate {
	c := candidate{page: x.spans[run[0]].Page, box: x.spans[run[0]].BBox}
	var b strings.Builder
	for _, i := range run {
		b.WriteString(compact(x.spans[i].Text))
		c.box = c.box.Union(x.spans[i].BBox)
	}
	c.text = b.String()
	c.spans = slices.Clone(run)
	return c
}

// splitNames cuts a run after every entity suffix and keeps the pieces that
// are names.
func (x *layout) splitNames(run []int) []candidate {
	var out []candidate
	start := 0
	for end := range run {
		piece := x.join(run[start : end+1])
		if isEntityName(piece.text) {
			out = append(out, piece)
			start = end + 1
		}
	}
	return out
}

func (x *layout) isNamePart(i int) bool {
	if x.isLabel[i] || x.used[i] {
		return false
	}
	t := compact(x.spans[i].Text)
	if t == "" || !hasCJK(t) || isTaxID(t) {
		return false
	}
	return !classDate.accepts(t) && !classMoney.accepts(t)
}

func (x *layout) parties(res *PositionalResult) {
	var sides, near []anchor
	for _, a := range x.anchors {
		switch a.label.kind {
		case labelBuyer, labelSeller:
			sides = append(sides, a)
			near = append(near, a)
		case labelName, labelTaxID:
			near = append(near, a)
		}
	}
	if len(sides) == 0 {
		return
	}

	inWindow := func(c candidate) bool {
		for _, a := range near {
			if a.page == c.page && x.window(a).Intersects(c.box) {
				return true
			}
		}
		return false
	}

	var names, ids []candidate
	for _, a := range near {
		switch {
		case a.inline == "":
		case isTaxID(a.inline):
			ids = append(ids, candidate{text: a.inline, page: a.page, box: a.box})
		case isEntityName(a.inline):
			names = append(names, candidate{text: a.inline, page: a.page, box: a.box})
		}
	}
	for _, ch := range x.chains(x.isNamePart, x.belowOrRight) {
		for _, name := range x.splitNames(ch.spans) {
			if inWindow(name) {
				names = append(names, name)
			}
		}
	}
	for _, i := range document.ReadingOrder(x.spans) {
		s := x.spans[i]
		if x.isLabel[i] || x.used[i] {
			continue
		}
		t := compact(s.Text)
		c := candidate{text: t, page: s.Page, box: s.BBox, spans: []int{i}}
		if isTaxID(t) && inWindow(c) {
			ids = append(ids, c)
		}
	}

	var w warnings
	x.assign(sides, names, FieldBuyerName, FieldSellerName, res, &w)
	x.assign(sides, ids, FieldBuyerTaxID, FieldSellerTaxID, res, &w)
	res.Warnings = append(res.Warnings, w...)
}

type sided struct {
	c    candidate
	d    float64
	diag float64
}

// assign gives each candidate to the nearer of the buyer and seller anchors
// and keeps the closest candidate per side.
func (x *layout) assign(sides []anchor, cands []candidate, buyerField, sellerField string, res *PositionalResult, w *warnings) {
	var buyer, seller []sided
	for _, c := range cands {
		db, ab := nearest(sides, c, labelBuyer)
		ds, as := nearest(sides, c, labelSeller)
		switch {
		case math.IsInf(db, 1) && math.IsInf(ds, 1):
			continue
		case math.Abs(db-ds) <= ambiguityDistance:
			w.add(WarnAmbiguousParty(c.text))
		case db < ds:
			buyer = append(buyer, sided{c, db, x.diag(ab)})
		default:
			seller = append(seller, sided{c, ds, x.diag(as)})
		}
	}
	x.keepClosest(buyer, buyerField, res)
	x.keepClosest(seller, sellerField, res)
}

func nearest(sides []anchor, c candidate, kind labelKind) (float64, anchor) {
	d, best := math.Inf(1), anchor{}
	for _, a := range sides {
		if a.label.kind != kind || a.page != c.page {
			continue
		}
		if dd := a.box.Distance(c.box); dd < d {
			d, best = dd, a
		}
	}
	return d, best
}

func (x *layout) keepClosest(cs []sided, field string, res *PositionalResult) {
	if len(cs) == 0 {
		return
	}
	slices.SortStableFunc(cs, func(p, q sided) int {
		switch {
		case p.d < q.d:
			return -1
		case p.d > q.d:
			return 1
		}
		return 0
	})
	top := cs[0]
	conf := proximityConfidence(top.d, top.diag)
	if top.d == 0 {
		conf = inlineConfidence
	}
	for _, c := range cs[1:] {
		if c.d-top.d > ambiguityDistance {
			break
		}
		if c.c.text != top.c.text {
			conf *= ambiguityPenalty
			break
		}
	}
	for _, i := range top.c.spans {
		x.used[i] = true
	}
	res.Fields[field] = FieldValue{Raw: top.c.text, Source: SourcePositional, Confidence: clamp01(conf)}
}
