package descriptions

import "sort"

// Tool names exposed over MCP.
const (
	ExtractFieldsTool   = "extract_fields"
	ExtractDocumentTool = "extract_document"
	ListTemplatesTool   = "list_templates"
)

const (
	ExtractFieldsDescription = `Extract structured invoice fields from a document file.

**When to use:** You have a VAT invoice, receipt or similar CJK business document as a PDF with a text layer, or as a JSON document with raw_text and optional positioned spans.

**What you get:** The matched template (or null), every extracted field with its raw text, normalized value, provenance (template, positional or merged) and confidence, an overall confidence and a list of warnings.

**Examples:**
• "Extract the invoice number and total from /data/inbox/invoice-0413.pdf"
• "Read fields from /tmp/ocr/scan-17.json produced by the OCR step"

**Reading the result:**
1. matched_template is null when no template keyword occurs; positional fields may still be present.
2. Warnings such as missing_required_field:<field> or amount_mismatch call for human review.
3. Confidence is in [0, 1]; merged fields were found by both extractors.

**Best practices:** Call list_templates first to see which issuers are recognised.`

	ExtractDocumentDescription = `Extract structured invoice fields from an inline JSON document.

**When to use:** The document is not on the server's filesystem, for example OCR output you already hold.

**Input:** document is a JSON object {"raw_text": "...", "spans": [{"text": "...", "page": 1, "bbox": [x0, y0, x1, y1]}]}. spans is optional; bbox origin is the top-left of the page.

**What you get:** The same result object as extract_fields.`

	ListTemplatesDescription = `List the issuer templates loaded by the server.

**When to use:** Before extracting, to learn which issuers are recognised, which keywords trigger them and which fields each one captures.

**What you get:** Templates in match order (highest priority first) with issuer, priority, keywords and declared fields with type and required flag.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	ExtractFieldsTool:   ExtractFieldsDescription,
	ExtractDocumentTool: ExtractDocumentDescription,
	ListTemplatesTool:   ListTemplatesDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the tool names in lexical order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
