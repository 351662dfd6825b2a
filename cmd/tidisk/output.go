package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/weberc2/tidisk/pkg/volume"
)

func writeJSON(ctx *cli.Context, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling to JSON: %w", err)
	}
	if _, err := fmt.Fprintf(ctx.App.Writer, "%s\n", data); err != nil {
		return fmt.Errorf("writing JSON to stdout: %w", err)
	}
	return nil
}

const timeLayout = "2006-01-02 15:04"

func writeListing(ctx *cli.Context, entries []volume.Entry) error {
	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tSECTORS\tP\tUPDATED")
	for _, e := range entries {
		if e.Directory {
			fmt.Fprintf(w, "%s\t<DIR>\t\t\t%s\n", e.Name, formatTime(e))
			continue
		}
		protected := ""
		if e.Protected {
			protected = "Y"
		}
		kind := e.Type
		switch {
		case e.SwapSuspected:
			kind += " (swapped count?)"
		case e.BadCount:
			kind += " (bad count)"
		}
		fmt.Fprintf(
			w,
			"%s\t%s\t%d\t%s\t%s\n",
			e.Name,
			kind,
			e.Sectors,
			protected,
			formatTime(e),
		)
	}
	return w.Flush()
}

func formatTime(e volume.Entry) string {
	t := e.Updated
	if t.IsZero() {
		t = e.Created
	}
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}
