// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package annotate

import (
	"bytes"
	"strings"
	"text/template"
)

// classifyPromptTmpl is the prompt sent to the model for each paper.
// The category list is embedded in the prompt so the model answers from
// the closed set; the trailing "Category:" cue keeps answers to a bare
// label.
var classifyPromptTmpl = template.Must(template.New("classify").Parse(`The following research paper has a title and an abstract. Classify the paper into one of these categories: {{.Categories}}.

Title: {{.Title}}
Abstract: {{.Abstract}}

Category:`))

// renderPrompt executes the classification prompt template.
func renderPrompt(categories []string, title, abstract string) (string, error) {
	var buf bytes.Buffer
	err := classifyPromptTmpl.Execute(&buf, struct {
		Categories string
		Title      string
		Abstract   string
	}{
		Categories: strings.Join(categories, ", "),
		Title:      title,
		Abstract:   abstract,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
