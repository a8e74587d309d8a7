package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"paperchat/internal/answer"
	"paperchat/internal/app"
	"paperchat/internal/chat"
	"paperchat/internal/config"
	"paperchat/internal/models"
	"paperchat/internal/util"
)

func newApp() *cli.App {
	var cfg config.Config

	open := func(c *cli.Context) (*app.Services, error) {
		return app.Open(c.Context, cfg, slog.Default())
	}

	return &cli.App{
		Name:  "paperctl",
		Usage: "Ingest research papers and ask questions about them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
				EnvVars: []string{"PAPERCHAT_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"PAPERCHAT_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "store",
				Usage:   "Graph store backend (badger, postgres); overrides the config file",
				Value:   "badger",
				EnvVars: []string{"PAPERCHAT_STORE"},
			},
		},
		Before: func(c *cli.Context) error {
			_ = godotenv.Load(".env")
			if _, err := app.ParseLevel(c.String("log-level")); err != nil {
				return err
			}
			app.NewLogger(c.App.ErrWriter, c.String("log-level"))

			loaded, err := config.LoadFrom(c.String("config"))
			if err != nil {
				return err
			}
			loaded.Store = c.String("store")
			if err := loaded.Validate(); err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "chunk",
				Usage:     "Split a text file into chunks and print them",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "size", Usage: "Chunk size in characters (defaults to config)"},
					&cli.IntFlag{Name: "overlap", Usage: "Chunk overlap in characters (defaults to config)", Value: -1},
				},
				Action: func(c *cli.Context) error {
					return chunkCommand(c, cfg)
				},
			},
			{
				Name:      "ingest",
				Usage:     "Ingest papers into the graph store",
				ArgsUsage: "<paper_id>...",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return errors.New("at least one paper id is required")
					}
					svc, err := open(c)
					if err != nil {
						return err
					}
					defer svc.Close()
					return ingestCommand(c, svc)
				},
			},
			{
				Name:      "ask",
				Usage:     "Ask a question about an ingested paper",
				ArgsUsage: "<question>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "paper", Aliases: []string{"p"}, Usage: "Paper id to ask about", Required: true},
					&cli.StringFlag{Name: "selected", Usage: "Selected passage to prioritise"},
					&cli.IntFlag{Name: "top-k", Usage: "Number of passages to retrieve (defaults to config)"},
					&cli.BoolFlag{Name: "stream", Usage: "Print the answer as it is generated"},
				},
				Action: func(c *cli.Context) error {
					svc, err := open(c)
					if err != nil {
						return err
					}
					defer svc.Close()
					return askCommand(c, svc)
				},
			},
			{
				Name:      "paper",
				Usage:     "Show a stored paper",
				ArgsUsage: "<paper_id>",
				Action: func(c *cli.Context) error {
					svc, err := open(c)
					if err != nil {
						return err
					}
					defer svc.Close()
					detail, err := svc.Store.GetPaper(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					return printJSON(c, detail)
				},
			},
			{
				Name:  "stats",
				Usage: "Show store-wide counts",
				Action: func(c *cli.Context) error {
					svc, err := open(c)
					if err != nil {
						return err
					}
					defer svc.Close()
					ov, err := svc.Store.Overview(c.Context)
					if err != nil {
						return err
					}
					return printJSON(c, ov)
				},
			},
			{
				Name:      "search",
				Usage:     "Search the configured paper source",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "max", Usage: "Maximum results", Value: 10},
				},
				Action: func(c *cli.Context) error {
					source, err := app.NewPaperSource(cfg, nil)
					if err != nil {
						return err
					}
					papers, err := source.Search(c.Context, strings.Join(c.Args().Slice(), " "), c.Int("max"))
					if err != nil {
						return err
					}
					for _, p := range papers {
						fmt.Fprintf(c.App.Writer, "%s\t%d\t%s\n", p.PaperID, p.Year, p.Title)
					}
					return nil
				},
			},
		},
	}
}

func chunkCommand(c *cli.Context, cfg config.Config) error {
	if c.NArg() != 1 {
		return errors.New("exactly one file is required")
	}
	size, overlap := cfg.ChunkSize, cfg.ChunkOverlap
	if c.Int("size") > 0 {
		size = c.Int("size")
	}
	if c.Int("overlap") >= 0 {
		overlap = c.Int("overlap")
	}
	chunker, err := util.NewChunker(size, overlap)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("read %s: %w", c.Args().First(), err)
	}
	for _, seg := range chunker.Segments(util.SanitizeText(string(data))) {
		fmt.Fprintf(c.App.Writer, "[%d] %d-%d %s\n", seg.Index, seg.Start, seg.End, util.Snippet(seg.Text, 80))
	}
	return nil
}

func ingestCommand(c *cli.Context, svc *app.Services) error {
	var failed int
	for _, id := range c.Args().Slice() {
		res, err := svc.Ingest.Ingest(c.Context, id)
		if err != nil {
			failed++
			fmt.Fprintf(c.App.Writer, "%s\tfailed\t%s\t%v\n", id, util.Kind(err), err)
			continue
		}
		fmt.Fprintf(c.App.Writer, "%s\tok\t%d chunks\t%d authors\t%d citations\t%s\n",
			res.PaperID, res.Chunks, res.Authors, res.Citations, res.Title)
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d papers failed", failed, c.NArg()), 1)
	}
	return nil
}

func askCommand(c *cli.Context, svc *app.Services) error {
	req := chat.Request{
		PaperID:      c.String("paper"),
		Query:        strings.Join(c.Args().Slice(), " "),
		SelectedText: c.String("selected"),
		TopK:         c.Int("top-k"),
	}
	if !c.Bool("stream") {
		resp, err := svc.Chat.Ask(c.Context, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, resp.Response)
		printSources(c, resp.Sources)
		return nil
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	events, err := svc.Chat.AskStream(ctx, req)
	if err != nil {
		return err
	}
	var (
		sources   []models.RetrievalContext
		streamErr error
	)
	for ev := range events {
		switch ev.Type {
		case answer.EventSources:
			sources = ev.Sources
		case answer.EventContent:
			fmt.Fprint(c.App.Writer, ev.Content)
		case answer.EventError:
			streamErr = ev.Err
		}
	}
	fmt.Fprintln(c.App.Writer)
	if streamErr != nil {
		return streamErr
	}
	printSources(c, sources)
	return nil
}

func printSources(c *cli.Context, sources []models.RetrievalContext) {
	for i, src := range sources {
		fmt.Fprintf(c.App.Writer, "[C%d] %s chunk %d (%s, %.3f)\n", i+1, src.PaperID, src.ChunkIndex, src.Origin, src.Score)
	}
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
