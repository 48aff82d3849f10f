// Package sitemap renders the site graph as a Graphviz DOT document.
package sitemap

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/alvmarrod/site-weaver/internal/memory"
)

// Render writes snap as a DOT digraph. Visited pages become nodes, recorded
// discovery edges become solid arrows, derived cross-links dashed red arrows
// and external links dotted blue arrows.
func Render(w io.Writer, snap memory.Snapshot) error {
	bw := bufio.NewWriter(w)

	bw.WriteString("/* Generated Site Map */\n")
	bw.WriteString("digraph SiteMap {\n")
	bw.WriteString("    /* General Graph Attributes */\n")
	bw.WriteString("    graph [layout=neato, overlap=false, splines=true];\n")
	bw.WriteString(`    node [shape=circle, fontname="Arial", fontsize=12, style=filled, fillcolor=lightgray];` + "\n")
	bw.WriteString(`    edge [fontname="Arial", fontsize=10, fillcolor=orange];` + "\n\n")

	bw.WriteString("    /* Declare unique nodes with clickable links */\n")
	bw.WriteString("    {\n")
	for _, url := range snap.Visited {
		fmt.Fprintf(bw, "        %s [URL=%s];\n", quote(url), quote(url))
	}
	bw.WriteString("    }\n\n")

	bw.WriteString("    /* Hierarchical Structure */\n")
	for _, url := range snap.Visited {
		edge, ok := snap.Parents[url]
		switch {
		case !ok:
			fmt.Fprintf(bw, "    %s [fillcolor=lightblue];\n", quote(url))
		case edge.External:
			fmt.Fprintf(bw, "    %s -> %s [color=blue];\n", quote(edge.Parent), quote(url))
			fmt.Fprintf(bw, "    %s [shape=box, fillcolor=gold];\n", quote(url))
		default:
			fmt.Fprintf(bw, "    %s -> %s;\n", quote(edge.Parent), quote(url))
		}
	}

	bw.WriteString("\n    /* Cross-Links to Show Page Interconnections */\n")
	bw.WriteString("    edge [color=red, style=dashed];\n")
	for _, pair := range CrossLinks(snap) {
		fmt.Fprintf(bw, "    %s -> %s;\n", quote(pair[0]), quote(pair[1]))
	}

	bw.WriteString("\n    /* External Links */\n")
	bw.WriteString("    node [fillcolor=gold];\n")
	for _, link := range snap.External {
		fmt.Fprintf(bw, "    %s -> %s [URL=%s, style=dotted, color=blue];\n",
			quote(link.Source), quote(link.Target), quote(link.Target))
	}

	bw.WriteString("}\n")
	return bw.Flush()
}

// RenderString is Render into a string
func RenderString(snap memory.Snapshot) string {
	var buf bytes.Buffer
	_ = Render(&buf, snap)
	return buf.String()
}

// CrossLinks returns every unordered pair of visited pages where neither is
// the recorded parent of the other. Pairs follow visit order, the earlier
// page first.
func CrossLinks(snap memory.Snapshot) [][2]string {
	var pairs [][2]string
	for i, a := range snap.Visited {
		for _, b := range snap.Visited[i+1:] {
			if a == b || isParent(snap, a, b) || isParent(snap, b, a) {
				continue
			}
			pairs = append(pairs, [2]string{a, b})
		}
	}
	return pairs
}

func isParent(snap memory.Snapshot, parent, child string) bool {
	edge, ok := snap.Parents[child]
	return ok && edge.Parent == parent
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// quote makes s a DOT double-quoted ID
func quote(s string) string {
	return `"` + quoteReplacer.Replace(s) + `"`
}
