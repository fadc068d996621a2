package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kamusis/cubepub/internal/config"
	"github.com/kamusis/cubepub/internal/datasource"
	"github.com/kamusis/cubepub/internal/publish"
	"github.com/kamusis/cubepub/internal/repository"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

func newTable(w io.Writer, plain bool) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.Options(tablewriter.WithConfig(tablewriter.Config{
		Header: tw.CellConfig{
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
	}))
	if plain {
		table.Options(tablewriter.WithSymbols(&tw.SymbolASCII{}))
	}
	return table
}

// RenderSteps prints the step results of one publish run.
func RenderSteps(w io.Writer, steps []publish.Result, plain bool) {
	if len(steps) == 0 {
		fmt.Fprintln(w, "No steps were run.")
		return
	}
	table := newTable(w, plain)
	table.Header("#", "Artifact", "Status", "Detail")
	for i, s := range steps {
		table.Append(fmt.Sprintf("%d", i+1), string(s.Artifact), s.Status.String(), s.Message)
	}
	table.Render()
}

// RenderComparison prints the local and remote definitions side by side.
// Passwords are never shown.
func RenderComparison(w io.Writer, local datasource.Definition, remote *datasource.Definition, cmp datasource.Comparison, plain bool) {
	table := newTable(w, plain)
	table.Header("Field", "Local", "Server")
	r := datasource.Definition{}
	if remote != nil {
		r = *remote
	}
	table.Append("name", local.Name, r.Name)
	table.Append("url", local.URL, r.URL)
	table.Append("username", local.Username, r.Username)
	table.Append("driver", local.DriverClass, r.DriverClass)
	table.Append("access", local.Access.String(), "")
	table.Render()
	fmt.Fprintf(w, "Result: %s\n", cmp)
}

// RenderConnections prints server datasource definitions.
func RenderConnections(w io.Writer, defs []datasource.Definition, plain bool) {
	if len(defs) == 0 {
		fmt.Fprintln(w, "No connections defined on the server.")
		return
	}
	table := newTable(w, plain)
	table.Header("Name", "Driver", "URL", "Username")
	for _, d := range defs {
		table.Append(d.Name, d.DriverClass, d.URL, d.Username)
	}
	table.Render()
}

// RenderHistory prints publish runs.
func RenderHistory(w io.Writer, runs []config.HistoryEntry, plain bool) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No publish runs recorded.")
		return
	}
	table := newTable(w, plain)
	table.Header("Started", "Kind", "Server", "Target", "Status", "Duration", "ID")
	for _, r := range runs {
		duration := ""
		if !r.FinishedAt.IsZero() {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		table.Append(r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Kind, r.Server, r.Catalog, r.Status, duration, shortID(r.ID))
	}
	table.Render()
}

// RenderServers prints server profiles, marking the default one.
func RenderServers(w io.Writer, servers []config.ServerProfile, current string, plain bool) {
	if len(servers) == 0 {
		fmt.Fprintln(w, "No server profiles configured.")
		return
	}
	table := newTable(w, plain)
	table.Header("", "Name", "URL", "Username")
	for _, s := range servers {
		marker := ""
		if s.Name == current {
			marker = "*"
		}
		table.Append(marker, s.Name, config.MaskURL(s.URL), s.Username)
	}
	table.Render()
}

// RenderTree prints a repository tree with two-space indentation per level.
func RenderTree(w io.Writer, root *repository.Node) {
	if root == nil {
		fmt.Fprintln(w, "(empty)")
		return
	}
	var walk func(n *repository.Node, depth int)
	walk = func(n *repository.Node, depth int) {
		name := n.Name
		if name == "" {
			name = n.Path
		}
		if n.IsFolder && name != "/" {
			name += "/"
		}
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), name)
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(root, 0)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
