package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/loupe/internal/catalog"
	"github.com/samcharles93/loupe/internal/gguf"
)

func modelsCmd() *cli.Command {
	return &cli.Command{
		Name:    "models",
		Aliases: []string{"ls"},
		Usage:   "Manage the model catalog",
		Flags:   catalogFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return listModels(cmd)
		},
		Commands: []*cli.Command{
			listModelsCmd(),
			addModelCmd(),
			removeModelCmd(),
			showModelCmd(),
		},
	}
}

func listModelsCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List catalogued models",
		Flags: catalogFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return listModels(cmd)
		},
	}
}

func listModels(cmd *cli.Command) error {
	applyCatalogConfig(cmd, LoadConfig())
	store, err := openStore()
	if err != nil {
		return cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}

	models := store.List()
	if len(models) == 0 {
		fmt.Println("no models in catalog")
		return nil
	}

	fmt.Printf("%-36s  %-24s  %-11s  %-8s  %s\n", "ID", "NAME", "STATE", "SIZE", "FILE")
	for _, m := range models {
		size := ""
		if m.FileSize > 0 {
			size = formatFileSize(int64(m.FileSize))
		}
		fmt.Printf("%-36s  %-24s  %-11s  %-8s  %s\n", m.ID, m.Name, m.State, size, m.FileName)
	}
	fmt.Printf("\n%d model(s)\n", len(models))
	return nil
}

func addModelCmd() *cli.Command {
	var (
		name     string
		file     string
		dir      string
		title    string
		author   string
		license  string
		noVerify bool
	)

	return &cli.Command{
		Name:  "add",
		Usage: "Add a .gguf model to the catalog",
		Flags: append(catalogFlags(),
			&cli.StringFlag{
				Name:        "name",
				Aliases:     []string{"n"},
				Usage:       "model name (defaults to the file name)",
				Destination: &name,
			},
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "model file name or path",
				Destination: &file,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "dir",
				Usage:       "directory holding the file (defaults to the models directory)",
				Destination: &dir,
			},
			&cli.StringFlag{Name: "title", Usage: "display title", Destination: &title},
			&cli.StringFlag{Name: "author", Usage: "model author", Destination: &author},
			&cli.StringFlag{Name: "license", Usage: "model license", Destination: &license},
			&cli.BoolFlag{
				Name:        "no-verify",
				Usage:       "skip decoding the container before cataloguing",
				Destination: &noVerify,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyCatalogConfig(cmd, LoadConfig())
			store, err := openStore()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			m := catalog.Model{
				Name:     strings.TrimSpace(name),
				Title:    title,
				Author:   author,
				License:  license,
				Path:     dir,
				FileName: file,
				State:    catalog.StateInstalled,
			}
			if filepath.IsAbs(file) || strings.ContainsRune(file, filepath.Separator) {
				m.Path, m.FileName = filepath.Split(filepath.Clean(file))
				m.Path = filepath.Clean(m.Path)
			}
			if m.Name == "" {
				m.Name = strings.TrimSuffix(m.FileName, filepath.Ext(m.FileName))
			}

			path := filepath.Join(m.Path, m.FileName)
			if !filepath.IsAbs(path) {
				path = filepath.Join(resolveModelsDir(), path)
			}
			if stat, err := os.Stat(path); err == nil {
				m.FileSize = uint64(stat.Size())
			} else {
				return cli.Exit(fmt.Sprintf("error: stat model file %q: %v", path, err), 1)
			}

			if !noVerify {
				f, err := gguf.Open(path)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: not a valid gguf container: %v", err), 1)
				}
				fillFromMetadata(&m, f)
			}

			m = store.Create(m)
			if err := store.Save(); err != nil {
				return cli.Exit(fmt.Sprintf("error: persist catalog: %v", err), 1)
			}
			fmt.Printf("added %s (%s)\n", m.Name, m.ID)
			return nil
		},
	}
}

// fillFromMetadata backfills descriptive fields from general.* metadata keys
// when they were not given on the command line.
func fillFromMetadata(m *catalog.Model, f *gguf.File) {
	if m.Title == "" {
		m.Title, _ = gguf.GetString(f, "general.name")
	}
	if m.Author == "" {
		m.Author, _ = gguf.GetString(f, "general.author")
	}
	if m.License == "" {
		m.License, _ = gguf.GetString(f, "general.license")
	}
	if m.Description == "" {
		m.Description, _ = gguf.GetString(f, "general.description")
	}
	if m.Quantization == "" {
		if ft, ok := gguf.GetUint64(f, "general.file_type"); ok {
			m.Quantization = fmt.Sprintf("file_type=%d", ft)
		}
	}
}

func removeModelCmd() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Aliases:   []string{"rm"},
		Usage:     "Remove a model from the catalog",
		ArgsUsage: "<id-or-name>",
		Flags:     catalogFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			idOrName := cmd.Args().First()
			if idOrName == "" {
				return cli.Exit("error: model id or name required", 1)
			}
			applyCatalogConfig(cmd, LoadConfig())
			store, err := openStore()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			m, err := store.Remove(idOrName, false)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if err := store.Save(); err != nil {
				return cli.Exit(fmt.Sprintf("error: persist catalog: %v", err), 1)
			}
			fmt.Printf("removed %s (%s)\n", m.Name, m.ID)
			return nil
		},
	}
}

func showModelCmd() *cli.Command {
	var withMetadata bool

	return &cli.Command{
		Name:      "show",
		Usage:     "Show a catalogued model record",
		ArgsUsage: "<id-or-name>",
		Flags: append(catalogFlags(),
			&cli.BoolFlag{
				Name:        "metadata",
				Usage:       "also decode and include the container metadata",
				Destination: &withMetadata,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			idOrName := cmd.Args().First()
			if idOrName == "" {
				return cli.Exit("error: model id or name required", 1)
			}
			applyCatalogConfig(cmd, LoadConfig())
			store, err := openStore()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			m, ok := store.Get(idOrName)
			if !ok {
				return cli.Exit(fmt.Sprintf("error: model not found: %s", idOrName), 1)
			}

			out := map[string]any{"model": m}
			if withMetadata {
				path, err := store.ModelPath(m.ID)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				f, err := gguf.Open(path)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: open gguf: %v", err), 1)
				}
				out["metadata"] = inspectReport(f)
			}

			enc, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: encode json: %v", err), 1)
			}
			fmt.Println(string(enc))
			return nil
		},
	}
}
