package main

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/winsync/internal/adapter/output"
	"github.com/jmylchreest/winsync/internal/core"
	"github.com/jmylchreest/winsync/internal/model"
)

var listOpts struct {
	// Filter options
	all   bool
	since string
	meta  []string
	limit int

	// Sort options
	sortBy    string
	sortOrder string

	// Output options
	format   string
	field    string
	template string
}

var listCmd = &cobra.Command{
	Use:     "list [index|id]",
	Aliases: []string{"ls"},
	Short:   "Show the windows currently in the registry",
	Long: `Read the shared registry once and print its windows.

Windows whose heartbeat is older than the liveness timeout are hidden
unless --all is given. With an index (1-based) or an id (or unique id
prefix) argument, only that window is printed.

Examples:
  # Table of live windows
  winsync list

  # Ids only, for scripting
  winsync list --format ids

  # Windows with role=editor, as JSON
  winsync list --meta role=editor --format json

  # Width of the second window
  winsync list 2 --field w

  # Custom line template
  winsync list --format line --template '{{.Window.ID}} {{geometry .Window.Shape}}'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	// Filter flags
	listCmd.Flags().BoolVarP(&listOpts.all, "all", "a", false,
		"Include windows that missed their heartbeats")
	listCmd.Flags().StringVar(&listOpts.since, "since", "",
		"Only windows seen within this duration (e.g., 2s, 5m)")
	listCmd.Flags().StringArrayVarP(&listOpts.meta, "meta", "m", nil,
		"Only windows with this metadata key=value (repeatable)")
	listCmd.Flags().IntVarP(&listOpts.limit, "limit", "n", 0,
		"Maximum number of windows to show (0=unlimited)")

	// Sort flags
	listCmd.Flags().StringVar(&listOpts.sortBy, "sort", "id",
		"Sort by field (id, last_seen, position)")
	listCmd.Flags().StringVar(&listOpts.sortOrder, "order", "asc",
		"Sort order (asc, desc)")

	// Output flags
	listCmd.Flags().StringVarP(&listOpts.format, "format", "f", "plain",
		fmt.Sprintf("Output format %v", output.ValidFormats()))
	listCmd.Flags().StringVar(&listOpts.field, "field", "",
		"Output a single field (id, x, y, w, h, center, joined, last_seen, meta, meta.<key>)")
	listCmd.Flags().StringVar(&listOpts.template, "template", "",
		"Custom Go template for line output")
}

func runList(cmd *cobra.Command, args []string) error {
	format := output.FormatType(listOpts.format)
	if !slices.Contains(output.ValidFormats(), format) {
		return fmt.Errorf("invalid format %q, must be one of: %v", listOpts.format, output.ValidFormats())
	}

	fs, err := openRegistry()
	if err != nil {
		return err
	}
	defer func() { _ = fs.Close() }()

	entries, err := readRegistry(fs)
	if err != nil {
		return err
	}

	// Departed windows are never listed, stale ones only with --all.
	entries = core.Live(entries)
	now := time.Now()
	if !listOpts.all {
		entries, _ = core.PruneStale(entries, now, cfg.Registry.LivenessTimeout(), "")
	}

	entries, err = applyListFilters(entries, now)
	if err != nil {
		return err
	}

	field, _ := core.ParseSortField(listOpts.sortBy)
	order, _ := core.ParseSortOrder(listOpts.sortOrder)
	core.Sort(entries, core.SortOptions{Field: field, Order: order})

	if len(args) > 0 {
		e, err := lookupWindow(entries, args[0])
		if err != nil {
			return err
		}
		entries = []model.WindowEntry{*e}
	}

	if listOpts.field != "" {
		for i := range entries {
			fmt.Println(output.FormatField(&entries[i], listOpts.field))
		}
		return nil
	}

	opts := output.DefaultFormatterOptions()
	opts.Template = listOpts.template
	opts.Now = func() time.Time { return now }
	return output.NewFormatter(format, opts).Format(os.Stdout, entries)
}

// applyListFilters applies the filter flags to entries.
func applyListFilters(entries []model.WindowEntry, now time.Time) ([]model.WindowEntry, error) {
	opts := core.FilterOptions{
		Limit: listOpts.limit,
	}

	if listOpts.since != "" {
		d, err := core.ParseDuration(listOpts.since)
		if err != nil {
			return nil, err
		}
		opts.SeenWithin = d
	}

	if len(listOpts.meta) > 0 {
		meta, err := core.ParseMetadata(listOpts.meta)
		if err != nil {
			return nil, err
		}
		opts.Metadata = meta
	}

	return core.Filter(entries, now, opts), nil
}

// lookupWindow resolves a 1-based index, a full id or a unique id prefix.
func lookupWindow(entries []model.WindowEntry, arg string) (*model.WindowEntry, error) {
	if idx, err := strconv.Atoi(arg); err == nil && idx > 0 {
		if e := core.LookupByIndex(entries, idx); e != nil {
			return e, nil
		}
		return nil, fmt.Errorf("window at index %d not found", idx)
	}
	if e := core.LookupByID(entries, arg); e != nil {
		return e, nil
	}
	if e := core.LookupByPrefix(entries, arg); e != nil {
		return e, nil
	}
	return nil, fmt.Errorf("window %s not found", arg)
}
