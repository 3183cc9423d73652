package analyzer

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// formElement is one raw fillable element lifted from the rendered DOM.
// It is the intermediate shape handed to the mapping model; the model's
// answer, not this, becomes the FormSchema.
type formElement struct {
	Tag         string   `json:"tag"`
	Type        string   `json:"type,omitempty"`
	Name        string   `json:"name,omitempty"`
	ID          string   `json:"id,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Label       string   `json:"label,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// formOutline is the extracted structure of one page's form content.
type formOutline struct {
	Title    string        `json:"title,omitempty"`
	Elements []formElement `json:"elements"`
}

// nonFillableInputTypes are input types that carry no user data.
var nonFillableInputTypes = map[string]bool{
	"hidden": true,
	"submit": true,
	"button": true,
	"reset":  true,
	"image":  true,
}

// extractFormOutline pulls the fillable elements out of rendered HTML in
// document order. Elements inside a <form> are preferred; when the page
// has no form wrapper, bare inputs are collected instead, since plenty of
// JS-driven pages render fields without one.
func extractFormOutline(html string) (*formOutline, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}

	outline := &formOutline{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	scope := doc.Find("form input, form select, form textarea")
	if scope.Length() == 0 {
		scope = doc.Find("input, select, textarea")
	}

	scope.Each(func(_ int, sel *goquery.Selection) {
		el := elementFromSelection(doc, sel)
		if el != nil {
			outline.Elements = append(outline.Elements, *el)
		}
	})

	return outline, nil
}

// elementFromSelection converts one DOM node into a formElement, or nil
// for elements that carry no fillable data.
func elementFromSelection(doc *goquery.Document, sel *goquery.Selection) *formElement {
	tag := goquery.NodeName(sel)
	inputType := strings.ToLower(sel.AttrOr("type", ""))

	if tag == "input" && nonFillableInputTypes[inputType] {
		return nil
	}

	el := &formElement{
		Tag:         tag,
		Type:        inputType,
		Name:        sel.AttrOr("name", ""),
		ID:          sel.AttrOr("id", ""),
		Placeholder: sel.AttrOr("placeholder", ""),
	}
	if _, ok := sel.Attr("required"); ok {
		el.Required = true
	}

	el.Label = labelFor(doc, sel, el.ID)

	if tag == "select" {
		sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
			value := strings.TrimSpace(opt.AttrOr("value", opt.Text()))
			if value != "" {
				el.Options = append(el.Options, value)
			}
		})
	}

	// An element with no addressable identity is useless to the filler.
	if el.Name == "" && el.ID == "" {
		return nil
	}

	return el
}

// labelFor finds the human-visible label for an element, first via
// label[for], then via a wrapping <label>.
func labelFor(doc *goquery.Document, sel *goquery.Selection, id string) string {
	if id != "" {
		label := doc.Find(fmt.Sprintf(`label[for=%q]`, id)).First()
		if label.Length() > 0 {
			return strings.TrimSpace(label.Text())
		}
	}
	parentLabel := sel.ParentsFiltered("label").First()
	if parentLabel.Length() > 0 {
		return strings.TrimSpace(parentLabel.Text())
	}
	return ""
}
