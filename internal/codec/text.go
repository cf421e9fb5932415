package codec

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"echelon/internal/domain"
)

// WriteForest writes a bullet-point forest as an indented tree. Invalid
// bullet points are marked.
func WriteForest(w io.Writer, forest []domain.BulletPoint) error {
	ew := &errWriter{w: w}
	var walk func(bps []domain.BulletPoint, depth int)
	walk = func(bps []domain.BulletPoint, depth int) {
		for _, bp := range bps {
			ew.printf("%s%s\n", strings.Repeat("  ", depth), bulletLine(bp))
			walk(bp.Children, depth+1)
		}
	}
	walk(forest, 0)
	return ew.err
}

// WriteProvenance writes a provenance tree with the raw data each bullet
// point cites, then a footer with the tree's size, depth and every cited
// raw data id
func WriteProvenance(w io.Writer, root *domain.ProvenanceNode) error {
	ew := &errWriter{w: w}
	root.Walk(func(n *domain.ProvenanceNode, depth int) bool {
		indent := strings.Repeat("  ", depth)
		ew.printf("%s%s\n", indent, bulletLine(n.Details.BulletPoint()))
		if len(n.RawData) > 0 {
			ew.printf("%s  raw data: %s\n", indent, joinIDs(n.RawData))
		}
		return true
	})

	cited := "none"
	if ids := root.RawDataIDs(); len(ids) > 0 {
		cited = joinIDs(ids)
	}
	ew.printf("-- %d bullet points, depth %d, cites raw data: %s\n", root.Size(), root.Depth(), cited)
	return ew.err
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

// WriteTeamTree writes a team with its subordinates indented below it
func WriteTeamTree(w io.Writer, node domain.TeamNode) error {
	ew := &errWriter{w: w}
	var walk func(n domain.TeamNode, depth int)
	walk = func(n domain.TeamNode, depth int) {
		ew.printf("%s%s (%s) #%d\n", strings.Repeat("  ", depth), n.Name, n.EchelonLevel, n.ID)
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(node, 0)
	return ew.err
}

// WriteTeams writes a team table
func WriteTeams(w io.Writer, teams []domain.Team) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tECHELON\tPARENT")
	for _, t := range teams {
		parent := "-"
		if id, ok := t.Parent(); ok {
			parent = fmt.Sprintf("%d", id)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, t.Name, t.EchelonLevel, parent)
	}
	return tw.Flush()
}

func bulletLine(bp domain.BulletPoint) string {
	line := fmt.Sprintf("[%d] team %d", bp.ID, bp.TeamID)
	if bp.EchelonLevel != "" {
		line += " " + bp.EchelonLevel
	}
	line += ": " + bp.Content
	if !bp.IsValid() {
		line += " (INVALID)"
	}
	return line
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
