package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
	header   = color.New(color.Bold).SprintFunc()
)

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emit prints v as JSON with --json and runs text otherwise.
func (a *app) emit(v any, text func()) error {
	if a.outputJSON {
		return a.printJSON(v)
	}
	text()
	return nil
}

func (a *app) success(format string, args ...any) {
	if a.outputJSON {
		return
	}
	fmt.Fprintf(a.out, "%s %s\n", okMark("✓"), fmt.Sprintf(format, args...))
}

func (a *app) warn(format string, args ...any) {
	fmt.Fprintf(a.errOut, "%s %s\n", warnMark("!"), fmt.Sprintf(format, args...))
}

// printTable styles the header line after tabwriter has aligned it.
func (a *app) printTable(headers []string, rows [][]string) {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()

	first, rest, _ := strings.Cut(buf.String(), "\n")
	fmt.Fprintln(a.out, header(strings.TrimRight(first, " ")))
	fmt.Fprint(a.out, rest)
}

// printObject prints a loosely shaped response as sorted key: value lines.
func (a *app) printObject(obj map[string]any) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tw := tabwriter.NewWriter(a.out, 0, 0, 1, ' ', 0)
	for _, k := range keys {
		v := obj[k]
		switch v.(type) {
		case map[string]any, []any:
			b, _ := json.Marshal(v)
			fmt.Fprintf(tw, "%s:\t%s\n", k, b)
		default:
			fmt.Fprintf(tw, "%s:\t%v\n", k, v)
		}
	}
	_ = tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
