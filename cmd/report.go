package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cwbudde/ffopt/internal/ff"
	"github.com/cwbudde/ffopt/internal/store"
)

// printParams writes one row per parameter. Parameters whose row and column
// appear in marked get a '*' in the last column.
func printParams(w io.Writer, params []ff.Parameter, marked []ff.Parameter) {
	type key struct{ row, col int }
	mark := make(map[key]bool, len(marked))
	for _, p := range marked {
		mark[key{p.Row, p.Col}] = true
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tCOL\tTYPE\tVALUE\tSTEP\tDER1\tDER2\t")
	for _, p := range params {
		flag := ""
		if mark[key{p.Row, p.Col}] {
			flag = "*"
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%.4f\t%s\t%.6g\t%.6g\t%s\n",
			p.Row, p.Col, p.PType, p.Value, p.Step, p.Der1, p.Der2, flag)
	}
	tw.Flush()
}

// printTrials writes the evaluated force fields in the given order.
func printTrials(w io.Writer, trials []*ff.FF) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tMETHOD\tX2")
	for i, t := range trials {
		fmt.Fprintf(tw, "%d\t%s\t%.6g\n", i+1, t.Method, t.X2)
	}
	tw.Flush()
}

func printSummary(w io.Writer, initial, best float64, method string) {
	improvement := 0.0
	if initial != 0 {
		improvement = (initial - best) / initial * 100
	}
	fmt.Fprintf(w, "x2: %.6g -> %.6g (%.2f%%), kept %s\n", initial, best, improvement, method)
}

// printRunTable writes one row per recorded run. The size column is read
// from the run directories in st.
func printRunTable(w io.Writer, infos []store.RunInfo, st *store.FSStore) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tUPDATED\tSTEPS\tBEST X2\tCONVERGED\tSIZE")
	for _, info := range infos {
		size := "unknown"
		if n, err := getDirSize(st.RunDir(info.RunID)); err == nil {
			size = formatBytes(n)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.6g\t%t\t%s\n",
			shortID(info.RunID),
			info.Timestamp.Format("2006-01-02 15:04:05"),
			info.Step,
			info.BestX2,
			info.Converged,
			size,
		)
	}
	tw.Flush()
}
