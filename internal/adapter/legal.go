package adapter

import "strings"

// LegalDoc is the adapter for legal document analysis: contract review,
// clause extraction, risk assessment, and compliance checking.
type LegalDoc struct{}

// NewLegalDoc constructs the legal document adapter.
func NewLegalDoc() *LegalDoc { return &LegalDoc{} }

// DomainLegalDoc is the router domain identifier for the legal adapter.
const DomainLegalDoc = "legal_doc"

// Domain returns "legal_doc".
func (*LegalDoc) Domain() string { return DomainLegalDoc }

// PromptTemplate returns the legal analysis prompt.
func (*LegalDoc) PromptTemplate() string {
	return `You are a legal document analysis expert. Your task is to analyze the following legal document.

Document Type: {document_type}
Document Content:
{content}

Analysis Focus: {analysis_focus}

Please provide a comprehensive analysis including:
1. Key clauses and provisions
2. Potential risks or concerns
3. Compliance considerations
4. Recommendations

Analysis:`
}

// Schema returns the legal document input/output schemas.
func (*LegalDoc) Schema() Schema {
	return Schema{
		Input: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"document_type": map[string]any{
					"type":        "string",
					"description": "Type of legal document (e.g., contract, NDA, agreement)",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "The legal document content",
				},
				"analysis_focus": map[string]any{
					"type":        "string",
					"description": "Specific aspect to focus on (e.g., risk, compliance, obligations)",
					"default":     "general",
				},
			},
			"required": []string{"document_type", "content"},
		},
		Output: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key_clauses": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Important clauses identified",
				},
				"risks": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Identified risks",
				},
				"compliance_notes": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Compliance considerations",
				},
				"recommendations": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Recommendations for the document",
				},
				"summary": map[string]any{
					"type":        "string",
					"description": "Overall summary of analysis",
				},
			},
			"required": []string{"summary"},
		},
	}
}

// Tools returns the legal document processing tools.
func (*LegalDoc) Tools() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "extract_clauses",
			Description: "Extract specific types of clauses from legal documents",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"clause_types": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Types of clauses to extract (e.g., termination, liability, confidentiality)",
					},
				},
			},
		},
		{
			Name:        "assess_risk",
			Description: "Assess legal and financial risks in the document",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"risk_categories": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Risk categories to assess (e.g., financial, regulatory, operational)",
					},
				},
			},
		},
		{
			Name:        "check_compliance",
			Description: "Check document compliance with specific regulations",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"regulations": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Regulations to check against (e.g., GDPR, CCPA, SOX)",
					},
					"jurisdiction": map[string]any{
						"type":        "string",
						"description": "Legal jurisdiction",
					},
				},
			},
		},
		{
			Name:        "compare_documents",
			Description: "Compare two legal documents for differences",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"document_ids": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "IDs of documents to compare",
					},
				},
			},
		},
	}
}

// AdaptInput defaults the analysis focus and lowercases the document type.
func (*LegalDoc) AdaptInput(raw map[string]any) map[string]any {
	in := cloneInput(raw)
	if _, ok := in["analysis_focus"]; !ok {
		in["analysis_focus"] = "general analysis"
	}
	if dt, ok := in["document_type"].(string); ok {
		in["document_type"] = strings.ToLower(dt)
	}
	return in
}

// AdaptOutput fills defaults for every response field so callers always see
// the full legal analysis shape.
func (*LegalDoc) AdaptOutput(raw map[string]any) map[string]any {
	return map[string]any{
		"key_clauses":      orDefault(raw, "key_clauses", []any{}),
		"risks":            orDefault(raw, "risks", []any{}),
		"compliance_notes": orDefault(raw, "compliance_notes", []any{}),
		"recommendations":  orDefault(raw, "recommendations", []any{}),
		"summary":          orDefault(raw, "summary", "Analysis completed"),
		"metadata": map[string]any{
			"document_type":      orDefault(raw, "document_type", "unknown"),
			"analysis_timestamp": raw["timestamp"],
		},
	}
}

// orDefault returns raw[key] when present, otherwise fallback.
func orDefault(raw map[string]any, key string, fallback any) any {
	if v, ok := raw[key]; ok {
		return v
	}
	return fallback
}
