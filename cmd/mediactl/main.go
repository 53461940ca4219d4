// Package main is a command line client for the media API.
// Usage:
//
//	MEDIA_SERVICE_URL=http://localhost:8089 go run ./cmd/mediactl upload -name "Launch" video.mp4
//	go run ./cmd/mediactl get 0_abc123
//	go run ./cmd/mediactl list -page-size 10
//	go run ./cmd/mediactl sessions
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/term"

	"mediaclient/config"
	"mediaclient/internal/client"
	"mediaclient/internal/logging"
	"mediaclient/internal/object"
	"mediaclient/internal/request"
	"mediaclient/internal/types"
	"mediaclient/internal/upload"
	"mediaclient/internal/uploadstate"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: mediactl [-config path] <command> [args]

commands:
  upload [-name n] [-token id] <file>   upload a file and create a ready media entry
  get <entryId>                         print a media entry
  list [-page-size n] [-page n]         list media entries
  sessions [-limit n]                   list recorded upload sessions
`)
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	result, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := result.Config
	slog.SetDefault(logging.New(cfg.Logging))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if cmd == "sessions" {
		err = listSessions(ctx, cfg, args)
	} else {
		err = withClient(ctx, cfg, func(c *client.Client) error {
			switch cmd {
			case "upload":
				return uploadFile(ctx, c, args)
			case "get":
				return getEntry(ctx, c, args)
			case "list":
				return listEntries(ctx, c, args)
			default:
				usage()
				os.Exit(2)
				return nil
			}
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func withClient(ctx context.Context, cfg *config.Config, fn func(*client.Client) error) error {
	c, err := client.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			slog.Warn("client close error", "error", err)
		}
	}()
	return fn(c)
}

func uploadFile(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	name := fs.String("name", "", "entry name (default: file name)")
	tokenID := fs.String("token", "", "resume an existing upload token")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("upload needs exactly one file")
	}

	file, err := upload.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer file.Close()
	if *name == "" {
		*name = filepath.Base(fs.Arg(0))
	}

	if *tokenID == "" {
		token, err := request.ResultAs[*types.UploadToken](c.Do(ctx, types.UploadTokens.Add(types.NewUploadToken(file.Name(), file.Size()))))
		if err != nil {
			return fmt.Errorf("create upload token: %w", err)
		}
		*tokenID, _ = token.ID()
	}

	up := types.UploadTokens.Upload(*tokenID, file)
	if term.IsTerminal(int(os.Stderr.Fd())) {
		up.SetProgress(progressPrinter())
	}
	started := time.Now()
	if _, err := c.Upload(ctx, up); err != nil {
		return fmt.Errorf("upload %s (resume with -token %s): %w", file.Name(), *tokenID, err)
	}
	fmt.Fprintln(os.Stderr)
	slog.Info("upload finished", "token", *tokenID, "bytes", file.Size(), "duration", time.Since(started).Round(time.Millisecond))

	// one round trip creates the entry and attaches the uploaded file to it
	resource := types.NewUploadedFileTokenResource(*tokenID)
	addContent := types.Media.AddContent("", resource)
	addContent.SetDependency(object.DependsOn("entryId", 0, "id"))
	batch := c.DoMulti(ctx, request.NewMulti(
		types.Media.Add(types.NewMediaEntry(*name, types.MediaTypeVideo)),
		addContent,
	))
	entry, err := request.ResultAs[*types.MediaEntry](batch.At(1))
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return printJSON(entry)
}

func progressPrinter() request.ProgressFunc {
	return func(loaded, total int64) {
		pct := 100.0
		if total > 0 {
			pct = float64(loaded) * 100 / float64(total)
		}
		fmt.Fprintf(os.Stderr, "\ruploading %d/%d bytes (%.1f%%)", loaded, total, pct)
	}
}

func getEntry(ctx context.Context, c *client.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("get needs exactly one entry id")
	}
	entry, err := request.ResultAs[*types.MediaEntry](c.Do(ctx, types.Media.Get(args[0])))
	if err != nil {
		return err
	}
	return printJSON(entry)
}

func listEntries(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	pageSize := fs.Int("page-size", 30, "entries per page")
	page := fs.Int("page", 1, "page index, starting at 1")
	_ = fs.Parse(args)

	filter := &types.MediaEntryFilter{}
	filter.SetOrderBy(types.MediaEntryOrderByCreatedAtDesc)
	list, err := request.ResultAs[*types.MediaListResponse](c.Do(ctx, types.Media.List(filter, types.NewFilterPager(*pageSize, *page))))
	if err != nil {
		return err
	}
	for _, e := range list.Objects() {
		id, _ := e.ID()
		name, _ := e.Name()
		status, _ := e.Status()
		fmt.Printf("%s\t%s\t%s\n", id, status, name)
	}
	fmt.Fprintf(os.Stderr, "%d entries in total\n", list.TotalCount())
	return nil
}

func listSessions(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	limit := fs.Int("limit", 20, "maximum sessions to show")
	_ = fs.Parse(args)

	result, err := uploadstate.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer result.Close()

	sessions, err := result.Store.List(ctx, *limit)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		fmt.Printf("%s\t%s\t%d/%d\t%s\t%s\n", s.TokenID, s.Status, s.ResumeAt, s.FileSize,
			s.FileName, s.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

type fieldReader interface {
	Fields() []string
	Get(name string) (any, bool)
}

// printJSON prints every field the server returned, read-only ones included.
func printJSON(o fieldReader) error {
	fields := make(map[string]any, len(o.Fields()))
	for _, name := range o.Fields() {
		fields[name], _ = o.Get(name)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(fields)
}
