package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/lk2023060901/niml-dset-go/internal/json"
	"github.com/lk2023060901/niml-dset-go/internal/niml"
	"github.com/lk2023060901/niml-dset-go/pkg/dset"
	"github.com/lk2023060901/niml-dset-go/pkg/version"
)

func runInfo(e *env, args []string) error {
	flags := pflag.NewFlagSet("info", pflag.ContinueOnError)
	args, err := parseFlags(e, flags, args, 1, "<file>")
	if err != nil {
		return err
	}

	ds, err := e.app.IO().LoadAll(context.Background(), args[0])
	if err != nil {
		return err
	}
	for i, d := range ds {
		if i > 0 {
			fmt.Fprintln(e.stdout)
		}
		printInfo(e, d)
	}
	return nil
}

func printInfo(e *env, d *dset.Dataset) {
	fmt.Fprintf(e.stdout, "dset_type: %s\n", d.DsetType)
	if d.Data != nil {
		rows, cols := d.Data.Shape()
		fmt.Fprintf(e.stdout, "shape:     %d x %d (%s)\n", rows, cols, d.Data.DType())
	} else {
		fmt.Fprintln(e.stdout, "shape:     <no data>")
	}
	if d.NodeIndices != nil {
		fmt.Fprintf(e.stdout, "sorted:    %t\n", dset.IsSorted(d.NodeIndices))
	}
	fmt.Fprintf(e.stdout, "labels:    %s\n", strings.Join(d.Labels, ", "))
	fmt.Fprintf(e.stdout, "stats:     %s\n", strings.Join(d.Stats, ", "))
	if d.History != "" {
		fmt.Fprintln(e.stdout, "history:")
		for _, line := range strings.Split(strings.TrimRight(d.History, "\n"), "\n") {
			fmt.Fprintf(e.stdout, "  %s\n", line)
		}
	}
}

// groupView 与 nodeView 是节点树的 JSON 视图。
// 数值以文本形式输出，NaN 与 Inf 也能表示。
type groupView struct {
	Name  string      `json:"name"`
	Attrs niml.Attrs  `json:"attrs"`
	Nodes []*nodeView `json:"nodes"`
}

type nodeView struct {
	Name    string     `json:"name"`
	Attrs   niml.Attrs `json:"attrs"`
	Kind    string     `json:"kind"`
	DType   string     `json:"dtype,omitempty"`
	Shape   []int      `json:"shape,omitempty"`
	Values  []string   `json:"values,omitempty"`
	Text    *string    `json:"text,omitempty"`
	Strings []string   `json:"strings,omitempty"`
}

func newGroupView(g *niml.Group) *groupView {
	v := &groupView{Name: g.Name, Attrs: g.Attrs, Nodes: make([]*nodeView, 0, len(g.Nodes))}
	for _, el := range g.Nodes {
		v.Nodes = append(v.Nodes, newNodeView(el))
	}
	return v
}

func newNodeView(el *niml.Element) *nodeView {
	v := &nodeView{Name: el.Name, Attrs: el.Attrs}
	kind, _ := dset.ClassifyNode(el)
	v.Kind = kind.String()
	switch data := el.Data.(type) {
	case niml.String:
		s := string(data)
		v.Text = &s
	case niml.Strings:
		v.Strings = data
	case niml.Numeric:
		if data.Matrix == nil {
			break
		}
		rows, cols := data.Matrix.Shape()
		v.DType = data.Matrix.DType().String()
		v.Shape = []int{rows, cols}
		printer := niml.ValuePrinter(data.Matrix.DType())
		for _, x := range data.Matrix.Values() {
			v.Values = append(v.Values, printer(x))
		}
	}
	return v
}

func runDump(e *env, args []string) error {
	flags := pflag.NewFlagSet("dump", pflag.ContinueOnError)
	indent := flags.Bool("indent", false, "indent the JSON output")
	args, err := parseFlags(e, flags, args, 1, "[--indent] <file>")
	if err != nil {
		return err
	}

	groups, err := e.app.IO().Codec().Read(args[0])
	if err != nil {
		return err
	}
	views := make([]*groupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, newGroupView(g))
	}

	enc := json.NewEncoder(e.stdout)
	if *indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(views)
}

func runConvert(e *env, args []string) error {
	flags := pflag.NewFlagSet("convert", pflag.ContinueOnError)
	formFlag := flags.String("form", "", "output form: binary, text or base64 (default from config)")
	args, err := parseFlags(e, flags, args, 2, "[--form binary|text|base64] <in> <out>")
	if err != nil {
		return err
	}
	form, err := niml.ParseForm(*formFlag)
	if err != nil {
		return err
	}
	if *formFlag == "" {
		form = e.app.IO().Form()
	}

	ctx := context.Background()
	d, err := e.app.IO().Load(ctx, args[0])
	if err != nil {
		return err
	}
	if err := e.app.IO().Save(ctx, args[1], d, form); err != nil {
		return err
	}
	fmt.Fprintf(e.stderr, "wrote %s (%s)\n", args[1], form)
	return nil
}

func runVersion(e *env, args []string) error {
	flags := pflag.NewFlagSet("version", pflag.ContinueOnError)
	full := flags.Bool("full", false, "include Go version and platform")
	if _, err := parseFlags(e, flags, args, 0, "[--full]"); err != nil {
		return err
	}
	if _, err := version.Semver(); err != nil {
		return err
	}
	if *full {
		fmt.Fprintln(e.stdout, version.Full())
		return nil
	}
	fmt.Fprintln(e.stdout, version.Info())
	return nil
}
