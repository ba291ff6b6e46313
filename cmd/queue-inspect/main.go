package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/example/telemetry-sdk/config"
	"github.com/example/telemetry-sdk/internal/logging"
	"github.com/example/telemetry-sdk/internal/queue"
	"github.com/example/telemetry-sdk/internal/storage"
)

var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintln(w, "\nUsage:")
	fmt.Fprintln(w, "  queue-inspect [-config file] list        - Show queued requests, oldest first")
	fmt.Fprintln(w, "  queue-inspect [-config file] drop-head   - Discard the oldest request")
	fmt.Fprintln(w, "  queue-inspect [-config file] clear       - Discard every queued request")
	fmt.Fprintln(w, "  queue-inspect [-config file] device      - Show the stored device id")
	fmt.Fprintln(w, "\nExample:")
	fmt.Fprintln(w, "  STORAGE_PATH=/data/telemetry-sdk.json queue-inspect list")
}

func main() {
	configPath := flag.String("config", "", "optional YAML file overlaid on the environment configuration")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	logger := logging.New(os.Stderr, "queue-inspect", cfg.Debug)
	if err != nil {
		level.Error(logger).Log("msg", "failed to load configuration", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, closeStore, err := storage.Open(ctx, storage.Options{
		Backend:       cfg.StorageBackend,
		Path:          cfg.StoragePath,
		Namespace:     cfg.StorageNamespace,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		level.Error(logger).Log("msg", "failed to open storage", "backend", cfg.StorageBackend, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	if err := run(ctx, store, flag.Args(), os.Stdout, logger); err != nil {
		if errors.Is(err, errUsage) {
			usage(os.Stderr)
		} else {
			level.Error(logger).Log("msg", "command failed", "err", err)
		}
		closeStore()
		os.Exit(1)
	}
}

// run executes one inspection command against store.
func run(ctx context.Context, store storage.Store, args []string, out io.Writer, logger log.Logger) error {
	if len(args) < 1 {
		return errUsage
	}

	q := queue.New(store, logger)
	if err := q.Restore(ctx); err != nil {
		// A malformed backlog is reported; clear still works on it.
		level.Warn(logger).Log("msg", "persisted queue could not be read", "err", err)
		if args[0] != "clear" {
			return err
		}
	}

	switch args[0] {
	case "list":
		entries := q.Entries()
		fmt.Fprintf(out, "%d queued request(s)\n", len(entries))
		for i, e := range entries {
			fmt.Fprintf(out, "%3d  %s  %-4s  %s  decorated=%t  %s\n",
				i+1, e.CreatedAt.Format(time.RFC3339), methodOrDefault(e), e.Endpoint, e.Decorated, summarize(e))
		}
	case "drop-head":
		e, ok := q.DropHead(ctx)
		if !ok {
			fmt.Fprintln(out, "queue is empty")
			return nil
		}
		fmt.Fprintf(out, "dropped %s (%s), %d left\n", e.ID, summarize(e), q.Len())
	case "clear":
		n := q.Len()
		q.Clear(ctx)
		fmt.Fprintf(out, "cleared %d request(s)\n", n)
	case "device":
		id, err := store.Get(ctx, storage.DeviceIDKey)
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Fprintln(out, "no device id stored")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, id)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	return nil
}

func methodOrDefault(e queue.Entry) string {
	if e.Method == "" {
		return "-"
	}
	return string(e.Method)
}

// summarize lists the param names of an entry, skipping the fields every
// request carries.
func summarize(e queue.Entry) string {
	common := map[string]bool{
		"app_key": true, "device_id": true, "timestamp": true, "hour": true, "dow": true,
		"tz": true, "sdk_name": true, "sdk_version": true, "checksum256": true,
	}
	var keys []string
	for k := range e.Params {
		if !common[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return "(no payload)"
	}
	return strings.Join(keys, ",")
}
