package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"visionstream/internal/config"
	"visionstream/internal/logger"
	"visionstream/internal/metrics"
	"visionstream/internal/repository/sqlite"
	"visionstream/internal/service/ai"
	"visionstream/internal/service/storage"

	"github.com/urfave/cli/v2"
)

func main() {
	cfg := config.Load("")

	cliApp := &cli.App{
		Name:  "migrate",
		Usage: "rebuild the artifact catalog from the snapshot and analysis files on disk",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "captures", Value: cfg.CapturesDirectory, Usage: "directory containing snapshots"},
			&cli.StringFlag{Name: "static", Value: cfg.StaticDirectory, Usage: "directory containing analysis results"},
			&cli.StringFlag{Name: "db", Value: cfg.DatabasePath, Usage: "database path"},
		},
		Action: func(c *cli.Context) error {
			cfg.CapturesDirectory = c.String("captures")
			cfg.StaticDirectory = c.String("static")
			cfg.DatabasePath = c.String("db")
			return migrate(cfg)
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
}

func migrate(cfg *config.Config) error {
	fmt.Printf("Indexing %s and %s into database %s\n", cfg.CapturesDirectory, cfg.StaticDirectory, cfg.DatabasePath)

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	artifactRepo := sqlite.NewArtifactRepository(db)
	archiver := storage.NewArchiver(cfg, logger.NewWithWriter(os.Stderr), metrics.NewNop(), artifactRepo, nil,
		ai.NewStabilizer(cfg.CellSize, cfg.Attributes))

	indexed, skipped := 0, 0
	for _, dir := range []string{cfg.CapturesDirectory, cfg.StaticDirectory} {
		files, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", dir, err)
		}

		for _, file := range files {
			if file.IsDir() || filepath.Ext(file.Name()) != ".jpg" {
				continue
			}
			if _, _, ok := storage.ParseArtifactName(file.Name()); !ok {
				skipped++
				continue
			}
			if _, err := archiver.Index(filepath.Join(dir, file.Name())); err != nil {
				log.Printf("⚠️  Skipping %s: %v", file.Name(), err)
				skipped++
				continue
			}
			indexed++
		}
	}

	fmt.Printf("✅ Indexed %d artifacts\n", indexed)
	if skipped > 0 {
		fmt.Printf("⚠️  Skipped %d files (unrecognized name or errors)\n", skipped)
	}

	stats, err := artifactRepo.GetStats()
	if err == nil {
		fmt.Printf("\n📊 Database Statistics:\n")
		fmt.Printf("   Total artifacts: %d\n", stats.TotalArtifacts)
		fmt.Printf("   Total size: %d bytes\n", stats.TotalSizeBytes)
		for kind, count := range stats.PerKind {
			fmt.Printf("      - %s: %d\n", kind, count)
		}
	}
	return nil
}
