package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/renameio/v2"
	"github.com/m-mizutani/annodb/pkg/cli/config"
	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/annodb/pkg/infra/source"
	"github.com/m-mizutani/annodb/pkg/infra/sqlite"
	"github.com/m-mizutani/annodb/pkg/parser/fasta"
	"github.com/m-mizutani/annodb/pkg/usecase"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// queryFlags selects annotation rows
type queryFlags struct {
	Dataset    string
	SeqName    string
	BioType    string
	Identifier string
	Start      int
	End        int
	Strand     string
}

func (q *queryFlags) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "dataset", Usage: "Dataset name when several are loaded", Destination: &q.Dataset},
		&cli.StringFlag{Name: "seq-name", Usage: "Sequence (seqid or locus) name", Destination: &q.SeqName},
		&cli.StringFlag{Name: "bio-type", Aliases: []string{"t"}, Usage: "Feature type", Destination: &q.BioType},
		&cli.StringFlag{Name: "identifier", Aliases: []string{"i"}, Usage: "Feature identifier (ID, Name or gene/locus_tag)", Destination: &q.Identifier},
		&cli.IntFlag{Name: "start", Usage: "0-based start, inclusive", Destination: &q.Start},
		&cli.IntFlag{Name: "end", Usage: "0-based end, exclusive", Destination: &q.End},
		&cli.StringFlag{Name: "strand", Usage: "Strand (+ or -)", Destination: &q.Strand},
	}
}

func (q *queryFlags) Query(c *cli.Command) model.Query {
	query := model.Query{
		SeqName:    q.SeqName,
		BioType:    q.BioType,
		Identifier: q.Identifier,
		Strand:     q.Strand,
	}
	if c.IsSet("start") {
		start := q.Start
		query.Start = &start
	}
	if c.IsSet("end") {
		end := q.End
		query.End = &end
	}
	return query
}

// openAnnotation loads every configured dataset. The returned function
// closes the databases.
func openAnnotation(ctx context.Context, cfg *config.Database) (*usecase.Annotation, func(), error) {
	datasets, err := cfg.Datasets()
	if err != nil {
		return nil, nil, err
	}
	if len(datasets) == 0 {
		return nil, nil, goerr.New("no dataset given: use --gff, --genbank, --datasets or --db",
			goerr.T(types.ErrTagInvalidArgument))
	}

	files, closeFiles, err := cfg.FileStore(ctx, config.Paths(datasets)...)
	if err != nil {
		return nil, nil, err
	}

	uc := usecase.NewAnnotation(files, sqlite.NewAnnotationDB)
	closer := func() {
		if err := uc.Close(); err != nil {
			ctxlog.From(ctx).Warn("Failed to close annotation databases", "error", err)
		}
		closeFiles()
	}

	for _, ds := range datasets {
		if _, err := uc.Load(ctx, ds); err != nil {
			closer()
			return nil, nil, err
		}
	}
	return uc, closer, nil
}

func cmdLoad() *cli.Command {
	var dbCfg config.Database

	return &cli.Command{
		Name:  "load",
		Usage: "Parse GFF/GenBank files into SQLite databases and print the row counts",
		Flags: dbCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closer, err := openAnnotation(ctx, &dbCfg)
			if err != nil {
				return err
			}
			defer closer()

			var rows [][]string
			for _, info := range uc.Datasets() {
				db := info.DB
				if db == "" {
					db = "(memory)"
				}
				rows = append(rows, []string{info.Name, string(info.Format), fmt.Sprint(info.Rows), db})
			}
			printTable(c.Root().Writer, []string{"DATASET", "FORMAT", "ROWS", "DB"}, rows)
			return nil
		},
	}
}

func cmdQuery() *cli.Command {
	var (
		dbCfg   config.Database
		q       queryFlags
		asJSON  bool
		countOf bool
	)

	flags := append(dbCfg.Flags(), q.Flags()...)
	flags = append(flags,
		&cli.BoolFlag{Name: "json", Usage: "Print JSON", Destination: &asJSON},
		&cli.BoolFlag{Name: "count", Usage: "Print the number of matching rows", Destination: &countOf},
	)

	return &cli.Command{
		Name:    "query",
		Aliases: []string{"q"},
		Usage:   "Find annotation records by type, identifier and region",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closer, err := openAnnotation(ctx, &dbCfg)
			if err != nil {
				return err
			}
			defer closer()

			w := c.Root().Writer
			if countOf {
				n, err := uc.Count(ctx, q.Dataset, q.Query(c))
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(w, map[string]int{"count": n})
				}
				fmt.Fprintln(w, n)
				return nil
			}

			records, err := uc.FindRecords(ctx, q.Dataset, q.Query(c))
			if err != nil {
				return err
			}
			if asJSON {
				if records == nil {
					records = []model.Record{}
				}
				return printJSON(w, records)
			}

			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{r.Name, r.Type, formatSpans(r.Spans)})
			}
			printTable(w, []string{"NAME", "TYPE", "SPANS"}, rows)
			return nil
		},
	}
}

func cmdDescribe() *cli.Command {
	var (
		dbCfg   config.Database
		dataset string
		asJSON  bool
	)

	flags := append(dbCfg.Flags(),
		&cli.StringFlag{Name: "dataset", Usage: "Dataset name when several are loaded", Destination: &dataset},
		&cli.BoolFlag{Name: "json", Usage: "Print JSON", Destination: &asJSON},
	)

	return &cli.Command{
		Name:  "describe",
		Usage: "Print the distinct sequence names, types and identifiers",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closer, err := openAnnotation(ctx, &dbCfg)
			if err != nil {
				return err
			}
			defer closer()

			result, err := uc.Describe(ctx, dataset, model.DescribeQuery{SeqName: true, BioType: true, Identifier: true})
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if asJSON {
				return printJSON(w, result)
			}

			keys := make([]string, 0, len(result))
			for k := range result {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(w, "%s (%d)\n", headerColor.Sprint(k), len(result[k]))
				for _, v := range result[k] {
					fmt.Fprintf(w, "  %s\n", v)
				}
			}
			return nil
		},
	}
}

func cmdExport() *cli.Command {
	var (
		dbCfg config.Database
		q     queryFlags
		out   string
	)

	flags := append(dbCfg.Flags(), q.Flags()...)
	flags = append(flags, &cli.StringFlag{
		Name:        "out",
		Aliases:     []string{"o"},
		Usage:       "Output JSON file",
		Required:    true,
		Destination: &out,
	})

	return &cli.Command{
		Name:  "export",
		Usage: "Write matching records to a JSON file atomically",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closer, err := openAnnotation(ctx, &dbCfg)
			if err != nil {
				return err
			}
			defer closer()

			records, err := uc.FindRecords(ctx, q.Dataset, q.Query(c))
			if err != nil {
				return err
			}
			if records == nil {
				records = []model.Record{}
			}

			if err := writeFileAtomically(out, records); err != nil {
				return err
			}
			ctxlog.From(ctx).Info("Records exported", "path", out, "records", len(records))
			fmt.Fprintf(c.Root().Writer, "%d records written to %s\n", len(records), out)
			return nil
		},
	}
}

// writeFileAtomically replaces path with the JSON encoding of v. Readers see
// either the previous file or the complete new one.
func writeFileAtomically(path string, v any) error {
	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return goerr.Wrap(err, "failed to create pending file", goerr.V("path", path))
	}
	defer func() {
		_ = pendingFile.Cleanup()
	}()

	enc := json.NewEncoder(pendingFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to write JSON", goerr.V("path", path))
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return goerr.Wrap(err, "failed to replace file", goerr.V("path", path))
	}
	return nil
}

func cmdExtract() *cli.Command {
	var (
		dbCfg         config.Database
		q             queryFlags
		fastaPath     string
		ignorePartial bool
		width         int
	)

	flags := append(dbCfg.Flags(), q.Flags()...)
	flags = append(flags,
		&cli.StringFlag{Name: "fasta", Usage: "FASTA file with the annotated sequences", Required: true, Destination: &fastaPath},
		&cli.BoolFlag{Name: "ignore-partial", Usage: "Skip features extending beyond their sequence", Destination: &ignorePartial},
		&cli.IntFlag{Name: "width", Usage: "FASTA line width (0 writes one line)", Value: 60, Destination: &width},
	)

	return &cli.Command{
		Name:  "extract",
		Usage: "Print the sequences of matching features as FASTA",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closer, err := openAnnotation(ctx, &dbCfg)
			if err != nil {
				return err
			}
			defer closer()

			files, closeFiles, err := dbCfg.FileStore(ctx, fastaPath)
			if err != nil {
				return err
			}
			defer closeFiles()

			seqs, err := readFasta(ctx, files, fastaPath)
			if err != nil {
				return err
			}

			var extracted []*model.Sequence
			for _, seq := range seqs {
				query := q.Query(c)
				query.SeqName = seq.Name
				records, err := uc.FindRecords(ctx, q.Dataset, query)
				if err != nil {
					return err
				}
				for _, r := range records {
					if _, err := seq.AddFeature(r.Type, r.Name, r.Spans); err != nil {
						if !ignorePartial {
							return err
						}
						ctxlog.From(ctx).Warn("Skipping partial feature", "sequence", seq.Name, "feature", r.Name, "error", err)
					}
				}

				parts, err := seq.ByAnnotation("*", "", ignorePartial)
				if err != nil {
					return err
				}
				for _, p := range parts {
					p.Name = seq.Name + ":" + p.Name
				}
				extracted = append(extracted, parts...)
			}

			return fasta.Write(c.Root().Writer, extracted, width)
		},
	}
}

func readFasta(ctx context.Context, files *source.Store, path string) ([]*model.Sequence, error) {
	r, err := files.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	seqs, err := fasta.Parse(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read FASTA", goerr.V("path", path))
	}
	return seqs, nil
}
