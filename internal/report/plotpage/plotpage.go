// Package plotpage renders a qcfang report as a standalone HTML page with
// themed go-echarts charts and metric tables.
package plotpage

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"
)

const styleTagLen = 8 // len("</style>").

// Renderable is the interface for chart and table components.
type Renderable interface {
	Render(w io.Writer) error
}

// Section represents one report section within a page.
type Section struct {
	Title    string
	Anchor   string
	Subtitle string
	Helptext string
	Content  Renderable
}

// Page represents a complete report page.
type Page struct {
	Title           string
	Description     string
	ProjectName     string
	ProjectSubtitle string
	Theme           Theme
	Sections        []Section
}

// NewPage creates a new report page with qcfang branding.
func NewPage(title, description string) *Page {
	return &Page{
		Title:           title,
		Description:     description,
		ProjectName:     "qcfang",
		ProjectSubtitle: "Sequencing QC Aggregation",
		Theme:           ThemeLight,
	}
}

// WithTheme sets the theme for the page.
func (p *Page) WithTheme(theme Theme) *Page {
	p.Theme = theme

	return p
}

// Add appends sections to the page.
func (p *Page) Add(sections ...Section) {
	p.Sections = append(p.Sections, sections...)
}

// Render writes the page as HTML.
func (p *Page) Render(w io.Writer) error {
	return HTMLRenderer{}.Render(w, p)
}

// HTMLRenderer renders pages as HTML.
type HTMLRenderer struct{}

// Render writes the page as HTML to the writer.
func (r HTMLRenderer) Render(w io.Writer, page *Page) error {
	header, err := renderTemplate("header.html", headerData{
		ProjectName: page.ProjectName,
		Subtitle:    page.ProjectSubtitle,
		Title:       page.Title,
		Description: page.Description,
		Sections:    navEntries(page.Sections),
	})
	if err != nil {
		return fmt.Errorf("render header: %w", err)
	}

	var sectionsHTML bytes.Buffer

	for _, section := range page.Sections {
		sectionHTML, sectionErr := r.renderSection(section)
		if sectionErr != nil {
			return fmt.Errorf("render section %s: %w", section.Title, sectionErr)
		}

		sectionsHTML.WriteString(string(sectionHTML))
	}

	darkClass := ""
	if page.Theme == ThemeDark {
		darkClass = "dark"
	}

	data := pageData{
		Title:       page.Title,
		ProjectName: page.ProjectName,
		DarkClass:   darkClass,
		Header:      header,
		Content:     template.HTML(sectionsHTML.String()),
	}

	html, err := renderTemplate("page.html", data)
	if err != nil {
		return fmt.Errorf("render page: %w", err)
	}

	_, err = w.Write([]byte(html))
	if err != nil {
		return fmt.Errorf("writing page: %w", err)
	}

	return nil
}

type navEntry struct {
	Title  string
	Anchor string
}

func navEntries(sections []Section) []navEntry {
	entries := make([]navEntry, 0, len(sections))

	for _, s := range sections {
		if s.Anchor == "" {
			continue
		}

		entries = append(entries, navEntry{Title: s.Title, Anchor: s.Anchor})
	}

	return entries
}

func (r HTMLRenderer) renderSection(section Section) (template.HTML, error) {
	data := sectionData{
		Title:    section.Title,
		Anchor:   section.Anchor,
		Subtitle: section.Subtitle,
		Helptext: section.Helptext,
		Content:  template.HTML(renderContent(section.Content)),
	}

	return renderTemplate("section.html", data)
}

func renderContent(content Renderable) string {
	if content == nil {
		return ""
	}

	var buf bytes.Buffer

	err := content.Render(&buf)
	if err != nil {
		return ""
	}

	return extractChartContent(buf.String())
}

// extractChartContent strips the full-page scaffolding go-echarts emits so
// the chart div and script can be embedded in a report section. Fragments
// pass through unchanged.
func extractChartContent(html string) string {
	trimmed := strings.TrimSpace(html)
	if !strings.HasPrefix(trimmed, "<!DOCTYPE") && !strings.HasPrefix(trimmed, "<html") {
		return html
	}

	start := strings.Index(html, `<div class="container">`)
	if start == -1 {
		return html
	}

	end := strings.Index(html, `</body>`)
	if end == -1 {
		return html
	}

	content := html[start:end]
	content = strings.ReplaceAll(content, `class="container"`, `class="echart-box"`)

	return removeStyleTags(content)
}

func removeStyleTags(content string) string {
	for {
		i := strings.Index(content, `<style>`)
		if i == -1 {
			break
		}

		j := strings.Index(content[i:], `</style>`)
		if j == -1 {
			break
		}

		content = content[:i] + content[i+j+styleTagLen:]
	}

	return content
}
