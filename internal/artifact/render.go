package artifact

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"

	"github.com/inkotake/ojoagent/internal/models"
)

// RenderStatement renders problem_statement.md from normalized ProblemData
// for the download-workspace operation (spec §6.1). Descriptions from HTML-
// scraping adapters carry markup; descriptions already in plain text or
// markdown pass through the converter unchanged since there's nothing for
// it to rewrite.
func RenderStatement(data *models.ProblemData) (string, error) {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", data.Title)

	if data.Description != "" {
		rendered, err := converter.ConvertString(data.Description)
		if err != nil {
			return "", fmt.Errorf("render description: %w", err)
		}
		b.WriteString(rendered)
		b.WriteString("\n\n")
	}
	if data.InputFormat != "" {
		b.WriteString("## Input\n\n")
		rendered, err := converter.ConvertString(data.InputFormat)
		if err != nil {
			return "", fmt.Errorf("render input format: %w", err)
		}
		b.WriteString(rendered)
		b.WriteString("\n\n")
	}
	if data.OutputFormat != "" {
		b.WriteString("## Output\n\n")
		rendered, err := converter.ConvertString(data.OutputFormat)
		if err != nil {
			return "", fmt.Errorf("render output format: %w", err)
		}
		b.WriteString(rendered)
		b.WriteString("\n\n")
	}
	for i, sample := range data.Samples {
		fmt.Fprintf(&b, "### Sample %d\n\n**Input**\n```\n%s\n```\n\n**Output**\n```\n%s\n```\n\n",
			i+1, sample.Input, sample.Output)
	}
	if data.Hints != "" {
		b.WriteString("## Hints\n\n")
		rendered, err := converter.ConvertString(data.Hints)
		if err != nil {
			return "", fmt.Errorf("render hints: %w", err)
		}
		b.WriteString(rendered)
		b.WriteString("\n")
	}

	return b.String(), nil
}

// SaveStatement renders and atomically writes problem_statement.md.
func (m *Manager) SaveStatement(data *models.ProblemData) error {
	rendered, err := RenderStatement(data)
	if err != nil {
		return err
	}
	return writeAtomic(m.path(statementFile), []byte(rendered))
}
