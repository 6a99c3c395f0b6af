package main

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	entityassist "github.com/Entity-Assist/EntityAssist-sub001"
	"github.com/Entity-Assist/EntityAssist-sub001/eagorm"
	"github.com/Entity-Assist/EntityAssist-sub001/idmap"
)

func newPingCmd(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Open a session with the configured driver and check it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := eagorm.Open(a.config)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			start := time.Now()
			if err := s.Health(ctx); err != nil {
				return err
			}
			result := pingResult{
				Driver:   a.config.Driver,
				Dialect:  s.Dialect().String(),
				Detached: s.Detached(),
				Latency:  time.Since(start).Round(time.Microsecond).String(),
			}
			return a.render(cmd.OutOrStdout(), result, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "ok: %s (%s dialect, detached=%t) in %s\n",
					result.Driver, result.Dialect, result.Detached, result.Latency)
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "health check timeout")
	return cmd
}

type pingResult struct {
	Driver   string `yaml:"driver"`
	Dialect  string `yaml:"dialect"`
	Detached bool   `yaml:"detached"`
	Latency  string `yaml:"latency"`
}

// =====================================
// Flags
// =====================================

type rangeEntry struct {
	Name  string   `yaml:"name"`
	Flags []string `yaml:"flags"`
}

var namedRanges = []struct {
	name string
	set  entityassist.FlagSet
}{
	{"PermanentRange", entityassist.PermanentRange},
	{"HighlightedAndUp", entityassist.HighlightedAndUp},
	{"ActiveRange", entityassist.ActiveRange},
	{"ActiveAndUp", entityassist.ActiveAndUp},
	{"VisibleRange", entityassist.VisibleRange},
	{"VisibleAndUp", entityassist.VisibleAndUp},
	{"RemovedRange", entityassist.RemovedRange},
	{"RemovedAndUp", entityassist.RemovedAndUp},
}

func newFlagsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "flags",
		Short: "List the lifecycle flags in order and the predefined ranges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out struct {
				Flags  []string     `yaml:"flags"`
				Ranges []rangeEntry `yaml:"ranges"`
			}
			for _, f := range entityassist.AllFlags() {
				out.Flags = append(out.Flags, f.String())
			}
			for _, r := range namedRanges {
				e := rangeEntry{Name: r.name}
				for _, f := range r.set.Flags() {
					e.Flags = append(e.Flags, f.String())
				}
				out.Ranges = append(out.Ranges, e)
			}

			return a.render(cmd.OutOrStdout(), out, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				for i, f := range out.Flags {
					fmt.Fprintf(tw, "%d\t%s\n", i, f)
				}
				fmt.Fprintln(tw)
				for _, r := range namedRanges {
					fmt.Fprintf(tw, "%s\t%s\n", r.name, r.set)
				}
				return tw.Flush()
			})
		},
	}
}

// =====================================
// ID mapping
// =====================================

var idTypes = map[string]reflect.Type{
	"int32":   idmap.Int32Type,
	"int64":   idmap.Int64Type,
	"bigint":  idmap.BigIntType,
	"decimal": idmap.DecimalType,
	"float32": idmap.Float32Type,
	"float64": idmap.Float64Type,
	"string":  idmap.StringType,
	"uuid":    idmap.UUIDType,
}

func idTypeNames() []string {
	names := make([]string, 0, len(idTypes))
	for n := range idTypes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func newIDMapCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idmap",
		Short: "Inspect the generated key conversion registry",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every registered (database type, declared type) pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := idmap.Default()
			if err != nil {
				return err
			}
			type pair struct {
				DB       string `yaml:"db"`
				Declared string `yaml:"declared"`
			}
			var pairs []pair
			for _, m := range r.Mappings() {
				pairs = append(pairs, pair{DB: m.DBType.String(), Declared: m.DeclaredType.String()})
			}
			return a.render(cmd.OutOrStdout(), pairs, func(w io.Writer) error {
				for _, m := range r.Mappings() {
					if _, err := fmt.Fprintln(w, m); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	var to string
	convert := &cobra.Command{
		Use:   "convert <value>",
		Short: "Convert a key, given as text, to a declared type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, ok := idTypes[strings.ToLower(to)]
			if !ok {
				return fmt.Errorf("unknown type %q, want one of %s", to, strings.Join(idTypeNames(), ", "))
			}
			r, err := idmap.Default()
			if err != nil {
				return err
			}
			v, err := r.Convert(args[0], target)
			if err != nil {
				return err
			}
			text := fmt.Sprint(v)
			return a.render(cmd.OutOrStdout(), map[string]string{"type": target.String(), "value": text},
				func(w io.Writer) error {
					_, err := fmt.Fprintln(w, text)
					return err
				})
		},
	}
	convert.Flags().StringVar(&to, "to", "int64", "declared type ("+strings.Join(idTypeNames(), ", ")+")")

	cmd.AddCommand(list, convert)
	return cmd
}
