package plotpage

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
)

// TableColumn is one column header of a metric table.
type TableColumn struct {
	Title   string
	Tooltip string
}

// Table renders a metric table with a fixed left-hand label column.
type Table struct {
	ID        string
	RowHeader string
	Columns   []TableColumn
	Rows      []TableRow
}

// TableRow is one labelled row of cell strings, aligned with Columns.
type TableRow struct {
	Label string
	Cells []string
}

// Render writes the table HTML.
func (t *Table) Render(w io.Writer) error {
	html, err := renderTemplate("table.html", t)
	if err != nil {
		return fmt.Errorf("rendering table %s: %w", t.ID, err)
	}

	_, err = w.Write([]byte(html))
	if err != nil {
		return fmt.Errorf("writing table %s: %w", t.ID, err)
	}

	return nil
}

// TabItem represents a single tab in a tab group.
type TabItem struct {
	ID      string
	Label   string
	Content Renderable
}

// Tabs renders a tabbed group of report components.
type Tabs struct {
	ID    string
	Items []TabItem
}

// NewTabs creates a new tab group.
func NewTabs(id string, items ...TabItem) *Tabs {
	return &Tabs{ID: id, Items: items}
}

type tabItemData struct {
	ID      string
	Label   string
	Content template.HTML
	First   bool
}

type tabsData struct {
	ID    string
	Items []tabItemData
}

// Render writes the tabs HTML.
func (t *Tabs) Render(w io.Writer) error {
	if len(t.Items) == 0 {
		return nil
	}

	items := make([]tabItemData, len(t.Items))

	for i, item := range t.Items {
		var content template.HTML

		if item.Content != nil {
			var buf bytes.Buffer

			err := item.Content.Render(&buf)
			if err != nil {
				return fmt.Errorf("rendering tab %s: %w", item.ID, err)
			}

			content = template.HTML(extractChartContent(buf.String()))
		}

		items[i] = tabItemData{
			ID:      item.ID,
			Label:   item.Label,
			Content: content,
			First:   i == 0,
		}
	}

	html, err := renderTemplate("tabs.html", tabsData{ID: t.ID, Items: items})
	if err != nil {
		return fmt.Errorf("rendering tabs %s: %w", t.ID, err)
	}

	_, err = w.Write([]byte(html))
	if err != nil {
		return fmt.Errorf("writing tabs %s: %w", t.ID, err)
	}

	return nil
}
