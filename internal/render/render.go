// Package render turns changelog models into text through embedded
// templates. Rendering is pure: (model, template name) in, text out.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/modioab/nagger/notes"
)

//go:embed templates
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"labelsToMD": labelsToMD,
	"issueTree":  issueTreeMD,
	"issueGraph": issueGraphMermaid,
}).ParseFS(templateFS, "templates/*.md", "templates/*.txt"))

// Render executes the named template over data.
func Render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}

// labelsToMD converts a label list to GitLab markdown label references.
func labelsToMD(labels []string) string {
	prefixed := make([]string, len(labels))
	for i, l := range labels {
		prefixed[i] = "~" + l
	}
	return strings.Join(prefixed, " ")
}

// Changelog is the model for whole-milestone pages.
type Changelog struct {
	Milestone string
	Projects  []notes.ProjectChangelog
}

// Homepage is the model for the homepage news article.
type Homepage struct {
	Milestone string
	Author    string
	Date      string
	Projects  []notes.ProjectChangelog
}

// Tag is the model for an annotated tag message.
type Tag struct {
	TagName string
	Project notes.ProjectChangelog
}

// Release is the model for a release description.
type Release struct {
	TagName         string
	MilestoneTitle  string
	MilestoneWebURL string
	Project         notes.ProjectChangelog
}

// IssueTree is the model for the hierarchical milestone wiki page.
type IssueTree struct {
	Milestone string
	Roots     []*IssueNode
}

// IssueNode is one issue in the linked-issue hierarchy.
type IssueNode struct {
	Ref      string
	Title    string
	State    string
	WebURL   string
	Progress *Progress
	Children []*IssueNode
}

// Progress counts completed subtasks of an issue.
type Progress struct {
	Completed int
	Total     int
}

// issueTreeMD renders a node and its children as a nested markdown list.
func issueTreeMD(node *IssueNode) string {
	var buf bytes.Buffer
	writeNode(&buf, node, 0)
	return buf.String()
}

func writeNode(buf *bytes.Buffer, node *IssueNode, depth int) {
	fmt.Fprintf(buf, "%s* [%s](%s) %s", strings.Repeat("  ", depth), node.Ref, node.WebURL, node.Title)
	if node.State == "closed" {
		buf.WriteString(" (closed)")
	}
	if node.Progress != nil {
		fmt.Fprintf(buf, " (%d/%d done)", node.Progress.Completed, node.Progress.Total)
	}
	buf.WriteByte('\n')
	for _, child := range node.Children {
		writeNode(buf, child, depth+1)
	}
}

// issueGraphMermaid renders the issue hierarchy as a mermaid flowchart.
func issueGraphMermaid(roots []*IssueNode) string {
	var buf bytes.Buffer
	buf.WriteString("graph TD\n")
	seen := make(map[string]bool)
	var walk func(node *IssueNode)
	walk = func(node *IssueNode) {
		if !seen[node.Ref] {
			seen[node.Ref] = true
			fmt.Fprintf(&buf, "  %s[%q]\n", mermaidID(node.Ref), node.Title)
		}
		for _, child := range node.Children {
			fmt.Fprintf(&buf, "  %s --> %s\n", mermaidID(node.Ref), mermaidID(child.Ref))
			walk(child)
		}
	}
	for _, root := range roots {
		walk(root)
	}
	return buf.String()
}

// mermaidID strips the characters mermaid cannot digest in node ids.
func mermaidID(ref string) string {
	r := strings.NewReplacer("/", "_", "#", "_", "!", "_", "-", "_", ".", "_")
	return r.Replace(ref)
}
