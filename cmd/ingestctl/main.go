// Command ingestctl publishes work for the indexing workers and provisions
// their stores.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	_ "github.com/lib/pq"
	"github.com/urfave/cli/v2"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/features/document"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/adapter/nsq"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/adapter/postgres"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/adapter/s3"
	wstore "github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/adapter/weaviate"
	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/worker"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func nsqdFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "nsqd",
		Usage:   "nsqd TCP address",
		Value:   "localhost:4150",
		EnvVars: []string{"NSQD_HOST"},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ingestctl",
		Usage: "Publish pages and drawings for indexing and provision the sinks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "publish-pdf",
				Usage:     "Extract a PDF and publish one message per page",
				ArgsUsage: "<file>",
				Action:    publishPDFCommand,
				Flags: []cli.Flag{
					nsqdFlag(),
					&cli.StringFlag{
						Name:  "origin",
						Usage: "Origin path recorded on every page (defaults to the file path)",
					},
					&cli.StringFlag{
						Name:    "s3-bucket",
						Usage:   "Upload the source PDF to this bucket for page references",
						EnvVars: []string{"S3_BUCKET"},
					},
					&cli.StringFlag{
						Name:    "s3-region",
						Value:   "us-east-1",
						EnvVars: []string{"S3_REGION"},
					},
					&cli.StringFlag{
						Name:    "s3-endpoint",
						Usage:   "S3-compatible endpoint, e.g. MinIO",
						EnvVars: []string{"S3_ENDPOINT"},
					},
				},
			},
			{
				Name:      "publish-drawing",
				Usage:     "Publish drawing messages from a JSON file (object or array, - for stdin)",
				ArgsUsage: "<file>",
				Action:    publishDrawingCommand,
				Flags:     []cli.Flag{nsqdFlag()},
			},
			{
				Name:   "ensure-schema",
				Usage:  "Create the search classes and relational tables if missing",
				Action: ensureSchemaCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "dsn",
						Usage:   "Postgres connection string; empty skips the relational sink",
						EnvVars: []string{"DATABASE_URL"},
					},
					&cli.StringFlag{
						Name:    "weaviate-host",
						Usage:   "Weaviate host:port; empty skips the search index",
						EnvVars: []string{"WEAVIATE_HOST"},
					},
					&cli.StringFlag{
						Name:    "weaviate-scheme",
						Value:   "http",
						EnvVars: []string{"WEAVIATE_SCHEME"},
					},
					&cli.StringFlag{
						Name:    "weaviate-api-key",
						EnvVars: []string{"WEAVIATE_API_KEY"},
					},
					&cli.StringFlag{
						Name:    "page-class",
						Value:   "ManualChunk_20250624",
						EnvVars: []string{"WEAVIATE_PAGE_CLASS"},
					},
					&cli.StringFlag{
						Name:    "drawing-class",
						Value:   "DrawingRecord_20250625",
						EnvVars: []string{"WEAVIATE_DRAWING_CLASS"},
					},
					&cli.StringFlag{
						Name:    "tokenization",
						Value:   "word",
						EnvVars: []string{"WEAVIATE_TEXT_TOKENIZATION"},
					},
				},
			},
		},
	}
}

func publishPDFCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("a PDF file is required")
	}
	ctx := c.Context

	pub, err := nsq.NewPublisher(c.String("nsqd"), slog.Default(), slog.LevelWarn)
	if err != nil {
		return err
	}
	defer pub.Stop()

	var uploader document.Uploader
	if bucket := c.String("s3-bucket"); bucket != "" {
		up, err := s3.NewUploader(ctx, s3.Config{
			Bucket:          bucket,
			Region:          c.String("s3-region"),
			Endpoint:        c.String("s3-endpoint"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),
		})
		if err != nil {
			return err
		}
		uploader = up
	}

	res, err := document.NewService(pub, uploader, nil).ProcessPDF(ctx, path, c.String("origin"))
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, res)
}

func publishDrawingCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("a JSON file is required")
	}

	msgs, err := readDrawings(path, c.App.Reader)
	if err != nil {
		return err
	}

	pub, err := nsq.NewPublisher(c.String("nsqd"), slog.Default(), slog.LevelWarn)
	if err != nil {
		return err
	}
	defer pub.Stop()

	svc := document.NewService(pub, nil, nil)
	for i, msg := range msgs {
		if err := svc.PublishDrawing(c.Context, msg); err != nil {
			return fmt.Errorf("drawing %d: %w", i, err)
		}
	}
	fmt.Fprintf(c.App.Writer, "published %d drawing(s)\n", len(msgs))
	return nil
}

// readDrawings accepts a single object or an array. All messages are
// validated before any is published.
func readDrawings(path string, stdin io.Reader) ([]worker.DrawingMessage, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var msgs []worker.DrawingMessage
	if trimmed := strings.TrimSpace(string(raw)); strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(raw, &msgs)
	} else {
		var one worker.DrawingMessage
		err = json.Unmarshal(raw, &one)
		msgs = append(msgs, one)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	for i, m := range msgs {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("drawing %d: %w", i, err)
		}
	}
	return msgs, nil
}

func ensureSchemaCommand(c *cli.Context) error {
	ctx := c.Context
	dsn, host := c.String("dsn"), c.String("weaviate-host")
	if dsn == "" && host == "" {
		return fmt.Errorf("nothing to provision: set --dsn and/or --weaviate-host")
	}

	if dsn != "" {
		if err := ensureTable(ctx, dsn); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, "relational schema ready")
	}

	if host != "" {
		cfg := weaviate.Config{Host: host, Scheme: c.String("weaviate-scheme")}
		if key := c.String("weaviate-api-key"); key != "" {
			cfg.AuthConfig = auth.ApiKey{Value: key}
		}
		client, err := weaviate.NewClient(cfg)
		if err != nil {
			return fmt.Errorf("weaviate client: %w", err)
		}
		store := wstore.NewStore(client, wstore.Config{
			PageClass:    c.String("page-class"),
			DrawingClass: c.String("drawing-class"),
			Tokenization: c.String("tokenization"),
		})
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, "search schema ready")
	}
	return nil
}

func ensureTable(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	return postgres.NewSink(db).EnsureSchema(ctx)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}
