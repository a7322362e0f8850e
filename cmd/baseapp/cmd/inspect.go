package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/GoCodeAlone/baseapp"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalidLocation is returned for a request argument that is not
// module/controller/action.
var ErrInvalidLocation = errors.New("location must be module/controller/action")

// NewRoutesCommand creates the routes command
func NewRoutesCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the registered modules and the route table in match order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := opts.boot(cmd)
			if err != nil {
				return err
			}
			defer inst.close(cmd.Context())

			router, err := inst.app.Router()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODULE\tENTRY\tCLASS")
			for _, d := range inst.app.Modules().Descriptors() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.EntryPath, d.ClassName)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "#\tPATTERN\tTARGET\tMETHODS")
			for _, rule := range router.Rules() {
				methods := "*"
				if len(rule.Methods) > 0 {
					methods = strings.Join(rule.Methods, ",")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", rule.Order(), rule.Pattern, describeDefaults(rule.Defaults), methods)
			}
			return w.Flush()
		},
	}
}

func describeDefaults(d baseapp.Defaults) string {
	part := func(v, placeholder string) string {
		if v == "" {
			return placeholder
		}
		return v
	}
	return part(d.Module, ":module") + "/" + part(d.Controller, ":controller") + "/" + part(d.Action, ":action")
}

// NewMatchCommand creates the match command
func NewMatchCommand(opts *globalOptions) *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "match PATH",
		Short: "Show the dispatch target a path resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := opts.boot(cmd)
			if err != nil {
				return err
			}
			defer inst.close(cmd.Context())

			target, err := inst.app.Match(args[0], method)
			if err != nil {
				return err
			}
			out := map[string]any{
				"target":   target.String(),
				"route":    target.Route,
				"params":   target.Params,
				"named":    target.Named,
				"notFound": target.NotFound(),
			}
			return writeJSON(cmd, out)
		},
	}
	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "HTTP method")
	return cmd
}

// NewRequestCommand creates the request command
func NewRequestCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "request module/controller/action [params...]",
		Short: "Perform an internal request and print its result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := ParseLocation(args[0], args[1:])
			if err != nil {
				return err
			}
			inst, err := opts.boot(cmd)
			if err != nil {
				return err
			}
			defer inst.close(cmd.Context())

			result, err := inst.app.Request(cmd.Context(), loc)
			if err != nil {
				return err
			}
			if s, ok := result.(string); ok {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), s)
				return err
			}
			return writeJSON(cmd, result)
		},
	}
}

// ParseLocation reads "module/controller/action" plus positional params.
func ParseLocation(s string, params []string) (baseapp.Location, error) {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) != 3 || slices.Contains(parts, "") {
		return baseapp.Location{}, fmt.Errorf("%w: %q", ErrInvalidLocation, s)
	}
	values := make([]any, len(params))
	for i, p := range params {
		values[i] = p
	}
	return baseapp.Location{Module: parts[0], Controller: parts[1], Action: parts[2], Params: values}, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
