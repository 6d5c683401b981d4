/*
main.go - Offline bonus calculator

PURPOSE:
  Computes a roster from a YAML file (or the built-in demo roster) without
  a server or database, prints one line per person plus the summary, and
  optionally writes the Excel report.

COMMAND-LINE FLAGS:
  -roster        Roster YAML (persons, optional parameters block)
  -params        Parameters YAML, overrides the roster's block
  -demo          Use the built-in demo roster instead of -roster
  -xlsx          Write the Excel report to this path
  -write-roster  Write the effective roster and parameters as YAML
  -workers       Concurrent calculations (0 = unbounded)

EXAMPLES:
  bonuscalc -roster roster.yaml -xlsx out.xlsx
  bonuscalc -demo -params params.yaml
  bonuscalc -demo -write-roster roster.yaml

SEE ALSO:
  - config/roster.go: roster and parameter file formats
  - report/excel.go: workbook layout
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/trouble2112/Bouns-tools/api"
	"github.com/trouble2112/Bouns-tools/bonus"
	"github.com/trouble2112/Bouns-tools/config"
	"github.com/trouble2112/Bouns-tools/report"
	"github.com/trouble2112/Bouns-tools/store/memory"
)

type options struct {
	rosterPath  string
	paramsPath  string
	demo        bool
	xlsxPath    string
	writeRoster string
	workers     int
}

func main() {
	var opts options
	flag.StringVar(&opts.rosterPath, "roster", "", "roster YAML file")
	flag.StringVar(&opts.paramsPath, "params", "", "parameters YAML file")
	flag.BoolVar(&opts.demo, "demo", false, "use the built-in demo roster")
	flag.StringVar(&opts.xlsxPath, "xlsx", "", "write the Excel report to this path")
	flag.StringVar(&opts.writeRoster, "write-roster", "", "write the effective roster as YAML")
	flag.IntVar(&opts.workers, "workers", 4, "concurrent calculations (0 = unbounded)")
	flag.Parse()

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	persons, params, err := loadInput(opts)
	if err != nil {
		return err
	}

	// The store assigns IDs, so validation results can be keyed per person.
	store := memory.New()
	persons, err = store.ReplacePersons(ctx, persons)
	if err != nil {
		return err
	}

	validation := bonus.ValidateRoster(persons, params)
	var invalid []error
	for _, p := range persons {
		if err := validation[p.ID].Err(p.Name); err != nil {
			invalid = append(invalid, err)
		}
	}
	if len(invalid) > 0 {
		return errors.Join(invalid...)
	}

	breakdowns, err := bonus.ComputeAll(ctx, persons, params, opts.workers)
	if err != nil {
		return err
	}
	summary := bonus.Aggregate(breakdowns)

	printWarnings(out, persons, validation)
	if err := printBreakdowns(out, breakdowns, summary); err != nil {
		return err
	}

	if opts.xlsxPath != "" {
		if err := writeReport(opts.xlsxPath, persons, breakdowns, validation, summary); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nReport written to %s\n", opts.xlsxPath)
	}
	if opts.writeRoster != "" {
		if err := config.SaveRoster(opts.writeRoster, persons, params); err != nil {
			return err
		}
		fmt.Fprintf(out, "Roster written to %s\n", opts.writeRoster)
	}
	return nil
}

func loadInput(opts options) ([]bonus.Person, bonus.Parameters, error) {
	var (
		persons []bonus.Person
		params  = bonus.DefaultParameters()
	)

	switch {
	case opts.demo && opts.rosterPath != "":
		return nil, params, errors.New("-demo and -roster are mutually exclusive")
	case opts.demo:
		persons = api.DemoRoster()
	case opts.rosterPath != "":
		roster, err := config.LoadRoster(opts.rosterPath)
		if err != nil {
			return nil, params, err
		}
		persons, params = roster.Persons, roster.Parameters
	default:
		return nil, params, errors.New("one of -roster or -demo is required")
	}

	if opts.paramsPath != "" {
		p, err := config.LoadParameters(opts.paramsPath)
		if err != nil {
			return nil, params, err
		}
		params = p
	}
	return persons, params, nil
}

func printWarnings(out io.Writer, persons []bonus.Person, validation map[string]bonus.ValidationResult) {
	var printed bool
	for _, p := range persons {
		for _, w := range validation[p.ID].Warnings {
			if !printed {
				fmt.Fprintln(out, "Warnings:")
				printed = true
			}
			fmt.Fprintf(out, "- %s: %s\n", p.Name, w)
		}
	}
	if printed {
		fmt.Fprintln(out)
	}
}

func printBreakdowns(out io.Writer, breakdowns []bonus.Breakdown, summary bonus.Summary) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "姓名\t岗位\t过程激励\t完成奖\t区域奖\t全国奖\t补贴\tCEO奖\t合计\t")
	for _, b := range breakdowns {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			b.Name, b.RoleName,
			b.Incentive.StringFixed(2), b.CompletionBonusTotal.StringFixed(2),
			b.RegionBonus.StringFixed(2), b.NationalBonus.StringFixed(2),
			b.Subsidy.StringFixed(2), b.CEOBonus.StringFixed(2), b.Total.StringFixed(2),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Persons:          %d\n", summary.Count)
	fmt.Fprintf(out, "Incentive:        %s\n", summary.Incentive.StringFixed(2))
	fmt.Fprintf(out, "Completion bonus: %s\n", summary.CompletionBonus.StringFixed(2))
	fmt.Fprintf(out, "Region+national:  %s\n", summary.RegionNational.StringFixed(2))
	fmt.Fprintf(out, "Subsidy+CEO:      %s\n", summary.SubsidyCEO.StringFixed(2))
	fmt.Fprintf(out, "Total:            %s\n", summary.Total.StringFixed(2))
	for _, r := range summary.Roles {
		fmt.Fprintf(out, "  %-12s %3d  %s\n", r.RoleName, r.Count, r.Total.StringFixed(2))
	}
	return nil
}

func writeReport(path string, persons []bonus.Person, breakdowns []bonus.Breakdown, validation map[string]bonus.ValidationResult, summary bonus.Summary) error {
	rows := make([]report.Row, len(breakdowns))
	for i, b := range breakdowns {
		rows[i] = report.Row{Person: persons[i], Breakdown: b, Warnings: validation[b.PersonID].Warnings}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := report.Write(f, rows, summary, time.Now()); err != nil {
		f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	return f.Close()
}
