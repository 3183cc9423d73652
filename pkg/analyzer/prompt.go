package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// profileKeys are the logical profile names the mapping model may bind a
// field's value_source to.
var profileKeys = []string{
	"full_name", "first_name", "last_name", "email", "phone",
	"address", "city", "state", "zip_code", "country", "dob",
	"education", "experience", "skills", "additional_info",
}

const systemPrompt = "You are a form analysis expert. Extract form fields accurately and return only valid JSON."

// promptEncoding is the tokenizer used to budget the outline. cl100k_base
// matches the GPT-4 family; an exact match with the serving model is not
// required since this only bounds prompt size.
const promptEncoding = "cl100k_base"

// buildMappingPrompt renders the mapping instruction with the extracted
// outline, bounded to tokenBudget tokens of outline JSON.
func buildMappingPrompt(url string, outline *formOutline, tokenBudget int) (string, error) {
	outlineJSON, err := json.MarshalIndent(outline, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode form outline: %w", err)
	}

	bounded, err := truncateToTokens(string(outlineJSON), tokenBudget)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Analyze the following extracted web form structure and normalize it into a field schema.\n\n")
	fmt.Fprintf(&b, "Form URL: %s\n\n", url)
	b.WriteString("Extracted form elements (document order):\n")
	b.WriteString(bounded)
	b.WriteString("\n\nReturn a JSON object with this structure:\n")
	b.WriteString(`{
  "form_title": "Title of the form if identifiable",
  "fields": [
    {
      "name": "unique_identifier",
      "label": "Display label",
      "type": "text|email|phone|number|date|select|checkbox|radio|textarea|file|password",
      "selector": "CSS selector targeting the element",
      "required": true,
      "options": ["option1", "option2"],
      "value_source": "logical profile key"
    }
  ]
}`)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Preserve the document order of the elements.\n")
	b.WriteString("- Every field needs a non-empty CSS selector; prefer name or id attributes.\n")
	fmt.Fprintf(&b, "- value_source must be one of: %s. Omit it when nothing fits.\n", strings.Join(profileKeys, ", "))
	b.WriteString("- Include options only for select and radio fields.\n")
	b.WriteString("- Return ONLY valid JSON, no markdown formatting.")

	return b.String(), nil
}

// truncateToTokens bounds text to at most budget tokens.
func truncateToTokens(text string, budget int) (string, error) {
	if budget <= 0 {
		return text, nil
	}
	enc, err := tiktoken.GetEncoding(promptEncoding)
	if err != nil {
		return "", fmt.Errorf("failed to load tokenizer: %w", err)
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text, nil
	}
	return enc.Decode(tokens[:budget]), nil
}

// stripCodeFences removes a wrapping markdown code block, which models
// add despite instructions often enough that the original handled it too.
func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) <= 2 {
		return trimmed
	}
	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
}
