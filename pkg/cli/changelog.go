package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/annodb/pkg/infra/source"
	"github.com/m-mizutani/annodb/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdChangelog() *cli.Command {
	var (
		category string
		version  string
		summary  bool
		validate bool
		asJSON   bool
	)

	return &cli.Command{
		Name:      "changelog",
		Usage:     "List, summarise or validate changelog entries",
		ArgsUsage: "CHANGELOG.md",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Category (ENH, BUG, DEP, API, DOC, DEV or an alias)", Destination: &category},
			&cli.StringFlag{Name: "release", Aliases: []string{"r"}, Usage: "Release or since version of the section", Destination: &version},
			&cli.BoolFlag{Name: "summary", Usage: "Print entry counts per section and category", Destination: &summary},
			&cli.BoolFlag{Name: "validate", Usage: "Report structural problems and exit non-zero if any", Destination: &validate},
			&cli.BoolFlag{Name: "json", Usage: "Print JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			path := c.Args().First()
			if path == "" {
				return goerr.New("changelog file is required", goerr.T(types.ErrTagInvalidArgument))
			}

			uc := usecase.NewChangelog(source.New(), path)
			if err := uc.Load(ctx); err != nil {
				return err
			}
			w := c.Root().Writer

			switch {
			case validate:
				issues, err := uc.Validate(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					if err := printJSON(w, issues); err != nil {
						return err
					}
				} else {
					for _, issue := range issues {
						fmt.Fprintln(w, warnColor.Sprint(issue.String()))
					}
				}
				if len(issues) > 0 {
					return cli.Exit(fmt.Sprintf("%d changelog issues found", len(issues)), 1)
				}
				if !asJSON {
					fmt.Fprintln(w, okColor.Sprint("changelog is valid"))
				}
				return nil

			case summary:
				sums, err := uc.Summary(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(w, sums)
				}
				printSummary(w, sums)
				return nil

			default:
				entries, err := uc.Entries(ctx, category, version)
				if err != nil {
					return err
				}
				if asJSON {
					if entries == nil {
						entries = []model.Entry{}
					}
					return printJSON(w, entries)
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{e.Version.String(), string(e.Category), e.Text})
				}
				printTable(w, []string{"VERSION", "CATEGORY", "ENTRY"}, rows)
				return nil
			}
		},
	}
}

func printSummary(w io.Writer, sums []model.SectionSummary) {
	for _, s := range sums {
		title := s.Version.String()
		if title == "" {
			title = "unreleased"
		}
		fmt.Fprintf(w, "%s: %d entries\n", headerColor.Sprint(title), s.Total)

		categories := make([]string, 0, len(s.Counts))
		for c := range s.Counts {
			categories = append(categories, string(c))
		}
		sort.Strings(categories)
		for _, c := range categories {
			fmt.Fprintf(w, "  %-14s %d\n", c, s.Counts[model.Category(c)])
		}
	}
}
