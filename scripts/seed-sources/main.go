// seed-sources creates or updates catalog sources from a YAML file.
//
// Usage: go run ./scripts/seed-sources <sources.yaml>
//
// File format:
//
//	sources:
//	  - name: IRD
//	    description: Institut de recherche pour le developpement
//	    url: https://www.ird.fr
//	  - name: AFSP
//	    description: Africa Soil Profiles database
//
// Database connection: config.yaml plus the usual PG* environment variables.
// Names are matched exactly; an existing source keeps its id.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/geosoil-inc/geosoil-engine/pkg/config"
	"github.com/geosoil-inc/geosoil-engine/pkg/database"
	"github.com/geosoil-inc/geosoil-engine/pkg/logging"
	"github.com/geosoil-inc/geosoil-engine/pkg/models"
	"github.com/geosoil-inc/geosoil-engine/pkg/repositories"
)

type seedFile struct {
	Sources []seedSource `yaml:"sources"`
}

type seedSource struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	URL         string `yaml:"url"`
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <sources.yaml>\n", os.Args[0])
		os.Exit(1)
	}

	sources, err := readSeedFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load("seed-sources")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.ResolveDockerHosts()

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	db, err := database.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(cfg.Database.ConnectionString(), logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	repo := repositories.NewSourceRepository(db)
	for _, s := range sources {
		if err := repo.Upsert(ctx, s); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to upsert source %s: %v\n", s.Name, err)
			os.Exit(1)
		}
		fmt.Printf("  %-12s id=%d\n", s.Name, s.ID)
	}
	fmt.Printf("Seeded %d sources\n", len(sources))
}

func readSeedFile(path string) ([]*models.Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(file.Sources) == 0 {
		return nil, fmt.Errorf("%s lists no sources", path)
	}

	seen := make(map[string]bool, len(file.Sources))
	sources := make([]*models.Source, 0, len(file.Sources))
	for i, s := range file.Sources {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("source #%d has no name", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("source %s is listed twice", name)
		}
		seen[name] = true

		source := &models.Source{Name: name, Description: s.Description}
		if s.URL != "" {
			url := s.URL
			source.URL = &url
		}
		sources = append(sources, source)
	}
	return sources, nil
}
