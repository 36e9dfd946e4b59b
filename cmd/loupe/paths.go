package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samcharles93/loupe/internal/catalog"
)

const (
	envLoupeModelsDir = "LOUPE_MODELS_DIR"
	envLoupeCatalog   = "LOUPE_CATALOG"
)

func resolveModelsDir() string {
	if dir := strings.TrimSpace(modelsDir); dir != "" {
		return filepath.Clean(dir)
	}
	if dir := strings.TrimSpace(os.Getenv(envLoupeModelsDir)); dir != "" {
		return filepath.Clean(dir)
	}
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(cfgDir, "loupe", "models")
}

func resolveCatalogPath() string {
	if path := strings.TrimSpace(catalogPath); path != "" {
		return filepath.Clean(path)
	}
	if path := strings.TrimSpace(os.Getenv(envLoupeCatalog)); path != "" {
		return filepath.Clean(path)
	}
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "catalog.json"
	}
	return filepath.Join(cfgDir, "loupe", "catalog.json")
}

func openStore() (*catalog.Store, error) {
	store, err := catalog.Open(resolveCatalogPath(), resolveModelsDir())
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return store, nil
}

func formatFileSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
