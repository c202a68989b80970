package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jelu/lim-plugin-orr/pkg/config"
	"github.com/jelu/lim-plugin-orr/pkg/store"
)

func main() {
	var (
		configPath = flag.String("config", "orrd.yaml", "Path to YAML config")
		dir        = flag.String("dir", "migrations", "Migrations directory (contains *_up.sql and *_down.sql)")
		dryRun     = flag.Bool("dry-run", false, "Show what would be applied without making changes")
	)
	flag.Parse()

	action := "up"
	steps := 0
	args := flag.Args()
	if len(args) >= 1 && args[0] != "" {
		action = strings.ToLower(args[0])
	}
	if len(args) >= 2 {
		if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
			steps = n
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
	if err != nil {
		log.Fatalf("pgxpool: %v", err)
	}
	defer pool.Close()

	switch action {
	case "up":
		runUp(ctx, pool, *dir, steps, *dryRun)
	case "down":
		runDown(ctx, pool, *dir, steps, *dryRun)
	default:
		log.Fatalf("unknown action %q. Use: up | down [steps]", action)
	}
}

func runUp(ctx context.Context, pool *pgxpool.Pool, dir string, steps int, dryRun bool) {
	files, err := listSQL(dir, "_up.sql")
	if err != nil {
		log.Fatalf("list up: %v", err)
	}
	if len(files) == 0 {
		log.Println("No *_up.sql migrations found. Nothing to do.")
		return
	}
	sort.Strings(files)
	if steps > 0 && steps < len(files) {
		files = files[:steps]
	}

	if dryRun {
		log.Printf("[DRY RUN] Would apply %d up migration(s):", len(files))
		for _, f := range files {
			log.Printf("  %s", filepath.Base(f))
		}
		return
	}

	log.Printf("Applying %d up migration(s)...", len(files))
	for _, f := range files {
		if err := execSQLFile(ctx, pool, f); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}
	}

	version := len(files)
	st, err := store.Open(ctx, pool.Config().ConnString())
	if err != nil {
		log.Fatalf("open store for schema_version: %v", err)
	}
	defer st.Close()
	if err := st.Setup(ctx, version); err != nil {
		log.Fatalf("record schema version: %v", err)
	}

	log.Println("Up migrations completed.")
}

func runDown(ctx context.Context, pool *pgxpool.Pool, dir string, steps int, dryRun bool) {
	files, err := listSQL(dir, "_down.sql")
	if err != nil {
		log.Fatalf("list down: %v", err)
	}
	if len(files) == 0 {
		log.Println("No *_down.sql migrations found. Nothing to do.")
		return
	}
	sort.Strings(files)
	reverseInPlace(files)
	if steps > 0 && steps < len(files) {
		files = files[:steps]
	}

	if dryRun {
		log.Printf("[DRY RUN] Would apply %d down migration(s):", len(files))
		for _, f := range files {
			log.Printf("  %s", filepath.Base(f))
		}
		return
	}

	log.Printf("Applying %d down migration(s)...", len(files))
	for _, f := range files {
		if err := execSQLFile(ctx, pool, f); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}
	}
	log.Println("Down migrations completed.")
}

func listSQL(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

func reverseInPlace(ss []string) {
	for i, j := 0, len(ss)-1; i < j; i, j = i+1, j-1 {
		ss[i], ss[j] = ss[j], ss[i]
	}
}

func execSQLFile(ctx context.Context, pool *pgxpool.Pool, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	start := time.Now()
	_, err = pool.Exec(ctx, string(b))
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	log.Printf("OK %s (%s)", filepath.Base(path), time.Since(start).Truncate(time.Millisecond))
	return nil
}
