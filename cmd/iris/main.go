package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/iris/internal"
	pkgconfig "github.com/starford/iris/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

// withSession opens the vault for a one-shot command. Logs go to stderr so
// stdout only carries the command output.
func withSession(fn func(context.Context, *cli.Command, *internal.Session) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		sess, err := internal.Open(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
		if err != nil {
			return err
		}
		defer sess.Close()
		return fn(ctx, cmd, sess)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requireArgs(cmd *cli.Command, n int) error {
	if cmd.Args().Len() != n {
		return fmt.Errorf("%s: expected %d argument(s): %s", cmd.Name, n, cmd.ArgsUsage)
	}
	return nil
}

func listImages(ctx context.Context, cmd *cli.Command, sess *internal.Session) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	images, err := sess.Service.Images(ctx, cmd.Args().Get(0))
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPATH\tMIME\tSTATUS")
	for i, img := range images {
		status := "ok"
		switch {
		case img.External:
			status = "external"
		case img.Missing:
			status = "missing"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, img.Path, img.MimeType, status)
	}
	return tw.Flush()
}

func showContext(ctx context.Context, cmd *cli.Command, sess *internal.Session) error {
	if err := requireArgs(cmd, 2); err != nil {
		return err
	}
	res, err := sess.Service.BuildContext(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, res)
}

func cacheStats(ctx context.Context, _ *cli.Command, sess *internal.Session) error {
	st := sess.Service.Stats(ctx)
	fmt.Printf("entries: %s (%s valid, %s expired)\n",
		humanize.Comma(int64(st.Total)), humanize.Comma(int64(st.Valid)), humanize.Comma(int64(st.Expired)))
	fmt.Printf("backend: %s\n", sess.Config.Cache.Backend)
	fmt.Printf("bounds:  %s entries, max age %s\n",
		humanize.Comma(int64(sess.Config.Cache.MaxEntries)), sess.Config.Cache.MaxAge)
	return nil
}

func cacheKeys(ctx context.Context, _ *cli.Command, sess *internal.Session) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tACTION\tMODEL\tCREATED\tSIZE")
	for _, e := range sess.Service.Entries(ctx) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Key, e.Action, e.Result.ModelUsed,
			humanize.Time(e.CreatedAt), humanize.Bytes(uint64(len(e.Result.Content))))
	}
	return tw.Flush()
}

func cacheClear(ctx context.Context, _ *cli.Command, sess *internal.Session) error {
	n := sess.Service.Stats(ctx).Total
	sess.Service.Clear(ctx)
	fmt.Printf("removed %s entries\n", humanize.Comma(int64(n)))
	return nil
}

func cacheInvalidate(ctx context.Context, cmd *cli.Command, sess *internal.Session) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	key := cmd.Args().Get(0)
	sess.Service.Invalidate(ctx, key)
	fmt.Printf("invalidated %s\n", key)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "iris",
		Usage:   "Note-aware image analysis and result cache for Markdown vaults",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("IRIS_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with live vault indexing",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:      "images",
				Usage:     "List the images embedded in a note",
				ArgsUsage: "<note>",
				Action:    withSession(listImages),
			},
			{
				Name:      "context",
				Usage:     "Print the note context and cache keys of an embedded image",
				ArgsUsage: "<note> <image>",
				Action:    withSession(showContext),
			},
			{
				Name:  "cache",
				Usage: "Inspect and manage the analysis result cache",
				Commands: []*cli.Command{
					{Name: "stats", Usage: "Show cache counters", Action: withSession(cacheStats)},
					{Name: "keys", Usage: "List entries, least recently used first", Action: withSession(cacheKeys)},
					{Name: "clear", Usage: "Remove every entry", Action: withSession(cacheClear)},
					{Name: "invalidate", Usage: "Remove one entry", ArgsUsage: "<key>", Action: withSession(cacheInvalidate)},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
