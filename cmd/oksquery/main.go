// Package main contains the cli implementation of the query tool. It uses
// the cobra package for cli tool implementation: one constructor per
// subcommand, a RunE closure per command delegating to a run* function.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"oks/config"
	"oks/internal/kernel"
	"oks/internal/objstore"
	"oks/internal/output"
	"oks/internal/query"
	"oks/internal/schema"
	"oks/internal/value"
)

type rootFlags struct {
	configPath string
}

type queryFlags struct {
	class      string
	subclasses bool
	attr       string
	op         string
	val        string
	format     string
}

type pathFlags struct {
	start  string
	goal   string
	levels []string
	format string
}

func main() {
	root := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:   "oksquery <repository-root.xml>",
		Short: "Query an OKS object repository",
	}
	rootCmd.PersistentFlags().StringVar(&root.configPath, "config", "", "Path to an oks.toml configuration file")

	rootCmd.AddCommand(queryCmd(root))
	rootCmd.AddCommand(pathCmd(root))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func queryCmd(root *rootFlags) *cobra.Command {
	flags := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query <repository-root.xml>",
		Short: "Run a single attribute comparator against a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runQuery(args[0], root, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.class, "class", "c", "", "Class name to query (required)")
	cmd.Flags().BoolVarP(&flags.subclasses, "subclasses", "s", false, "Include every subclass of --class")
	cmd.Flags().StringVarP(&flags.attr, "attr", "a", "", "Attribute name to compare (required)")
	cmd.Flags().StringVarP(&flags.op, "op", "o", "=", "Comparator: =, !=, <, <=, >, >=, ~")
	cmd.Flags().StringVarP(&flags.val, "value", "v", "", "Right-hand side literal (required)")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "text", "Output format: text, json, or summary")

	return cmd
}

func pathCmd(root *rootFlags) *cobra.Command {
	flags := &pathFlags{}
	cmd := &cobra.Command{
		Use:   "path <repository-root.xml>",
		Short: "Find a path between two objects over named relationships",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runPath(args[0], root, flags)
		},
	}

	cmd.Flags().StringVar(&flags.start, "start", "", "Start object, Class#ID (required)")
	cmd.Flags().StringVar(&flags.goal, "goal", "", "Goal object, Class#ID (required)")
	cmd.Flags().StringArrayVar(&flags.levels, "level", nil, "One path level, \"direct:rel1,rel2\" or \"nested:rel1,rel2\" (repeatable, required)")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "text", "Output format: text, json, or summary")

	return cmd
}

func openKernel(rootPath, configPath string) (*kernel.Kernel, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	k := kernel.New(cfg, os.Stderr)
	if _, err := k.Load(rootPath, false); err != nil {
		return nil, err
	}
	return k, nil
}

func runQuery(rootPath string, root *rootFlags, flags *queryFlags) error {
	if flags.class == "" || flags.attr == "" {
		return fmt.Errorf("oksquery query: --class and --attr are required")
	}

	k, err := openKernel(rootPath, root.configPath)
	if err != nil {
		return err
	}

	k.RLock()
	defer k.RUnlock()

	c, ok := k.Schema().FindClass(flags.class)
	if !ok {
		return fmt.Errorf("oksquery query: no such class %q", flags.class)
	}
	expr, err := buildAttrExpr(c, flags.attr, flags.op, flags.val)
	if err != nil {
		return err
	}

	matches, err := k.Query(query.Query{ClassName: flags.class, IncludeSubclass: flags.subclasses, Root: expr})
	if err != nil {
		return fmt.Errorf("oksquery query: %w", err)
	}

	formatter, err := output.NewFormatter(flags.format)
	if err != nil {
		return err
	}
	rendered, err := formatter.FormatQuery(output.QueryResult{
		ClassName:       flags.class,
		IncludeSubclass: flags.subclasses,
		Matches:         toObjectRefs(matches),
	})
	if err != nil {
		return err
	}
	fmt.Print(rendered)
	return nil
}

func runPath(rootPath string, root *rootFlags, flags *pathFlags) error {
	if flags.start == "" || flags.goal == "" || len(flags.levels) == 0 {
		return fmt.Errorf("oksquery path: --start, --goal, and at least one --level are required")
	}

	k, err := openKernel(rootPath, root.configPath)
	if err != nil {
		return err
	}

	k.RLock()
	defer k.RUnlock()

	startClass, startID, err := parseObjectRefArg(flags.start)
	if err != nil {
		return err
	}
	goalClass, goalID, err := parseObjectRefArg(flags.goal)
	if err != nil {
		return err
	}

	startObj, ok := k.Store().FindObject(startClass, startID)
	if !ok {
		return fmt.Errorf("oksquery path: no such object %s", flags.start)
	}
	goalObj, ok := k.Store().FindObject(goalClass, goalID)
	if !ok {
		return fmt.Errorf("oksquery path: no such object %s", flags.goal)
	}

	levels, err := parseLevels(flags.levels)
	if err != nil {
		return err
	}

	path, err := k.FindPath(startObj, goalObj, levels)
	found := err == nil
	if err != nil && !errors.Is(err, query.ErrPathNotFound) {
		return fmt.Errorf("oksquery path: %w", err)
	}

	formatter, err := output.NewFormatter(flags.format)
	if err != nil {
		return err
	}
	rendered, err := formatter.FormatPath(output.PathResult{
		Start: output.ObjectRef{ClassName: startClass, ID: startID},
		Goal:  output.ObjectRef{ClassName: goalClass, ID: goalID},
		Found: found,
		Path:  toObjectRefs(path),
	})
	if err != nil {
		return err
	}
	fmt.Print(rendered)
	return nil
}

func toObjectRefs(objs []*objstore.Object) []output.ObjectRef {
	refs := make([]output.ObjectRef, 0, len(objs))
	for _, o := range objs {
		refs = append(refs, output.ObjectRef{ClassName: o.ClassName(), ID: o.ObjectID()})
	}
	return refs
}

func parseObjectRefArg(s string) (className, id string, err error) {
	parts := strings.SplitN(s, "#", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("oksquery: object reference %q must be \"Class#ID\"", s)
	}
	return parts[0], parts[1], nil
}

func parseLevels(raw []string) ([]query.PathLevel, error) {
	levels := make([]query.PathLevel, 0, len(raw))
	for _, r := range raw {
		parts := strings.SplitN(r, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("oksquery: --level %q must be \"direct:rel1,rel2\" or \"nested:rel1,rel2\"", r)
		}
		var nested bool
		switch parts[0] {
		case "direct":
			nested = false
		case "nested":
			nested = true
		default:
			return nil, fmt.Errorf("oksquery: --level %q: kind must be \"direct\" or \"nested\"", r)
		}
		names := strings.Split(parts[1], ",")
		levels = append(levels, query.PathLevel{RelNames: names, Nested: nested})
	}
	return levels, nil
}

func buildAttrExpr(c *schema.Class, attrName, opStr, valStr string) (*query.Expr, error) {
	attr, ok := c.FindAttribute(attrName)
	if !ok {
		return nil, fmt.Errorf("oksquery query: class %s has no attribute %q", c.Name, attrName)
	}

	op, err := parseOp(opStr)
	if err != nil {
		return nil, err
	}
	if op == query.OpRegex {
		rng, err := value.ParseRange(attr.Kind, valStr)
		if err != nil {
			return nil, fmt.Errorf("oksquery query: %w", err)
		}
		return query.AttrRegex(attrName, rng), nil
	}

	rhs, err := value.Parse(attr.Kind, valStr, attr.Range)
	if err != nil {
		return nil, fmt.Errorf("oksquery query: %w", err)
	}
	return query.Attr(attrName, op, rhs), nil
}

func parseOp(s string) (query.Op, error) {
	switch s {
	case "=":
		return query.OpEqual, nil
	case "!=":
		return query.OpNotEqual, nil
	case "~":
		return query.OpRegex, nil
	case "<":
		return query.OpLess, nil
	case "<=":
		return query.OpLessEqual, nil
	case ">":
		return query.OpGreater, nil
	case ">=":
		return query.OpGreaterEqual, nil
	default:
		return 0, fmt.Errorf("oksquery query: unsupported operator %q", s)
	}
}
