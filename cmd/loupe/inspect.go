package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/loupe/internal/gguf"
)

func inspectCmd() *cli.Command {
	var (
		filePath string
		asJSON   bool
		limit    int
		onlyKey  string
	)

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect the metadata of a .gguf model container",
		ArgsUsage: "<file.gguf>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "path to .gguf file (alternative to the positional argument)",
				Destination: &filePath,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "emit metadata as JSON",
				Destination: &asJSON,
			},
			&cli.IntFlag{
				Name:        "limit",
				Usage:       "limit array elements shown per entry (0 = no limit)",
				Value:       8,
				Destination: &limit,
			},
			&cli.StringFlag{
				Name:        "key",
				Aliases:     []string{"k"},
				Usage:       "print a single metadata key in full",
				Destination: &onlyKey,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx

			target, err := inspectTarget(c.Args().First(), filePath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			stat, err := os.Stat(target)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: stat model path %q: %v", target, err), 1)
			}
			if stat.IsDir() {
				return cli.Exit(fmt.Sprintf("error: %q is a directory", target), 1)
			}

			f, err := gguf.Open(target)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open gguf: %v", err), 1)
			}

			if onlyKey != "" {
				v, ok := gguf.Lookup(f, onlyKey)
				if !ok {
					return cli.Exit(fmt.Sprintf("error: key %q not found", onlyKey), 1)
				}
				if asJSON {
					return printJSON(map[string]any{
						"key":   onlyKey,
						"type":  v.Type.String(),
						"value": jsonValue(v.Value),
					})
				}
				fmt.Printf("%s  [%s]\n%s\n", onlyKey, v.Type, formatValue(v, 0))
				return nil
			}

			if asJSON {
				return printJSON(inspectReport(f))
			}

			fmt.Printf("GGUF Inspect: %s\n", target)
			fmt.Printf("File: %s (%s)\n", filepath.Base(target), formatFileSize(f.Size))
			fmt.Printf("Version: %d | Tensors: %d | Metadata entries: %d\n\n",
				f.Header.Version, f.Header.TensorCount, f.Header.KVCount)

			keyWidth := 0
			for _, e := range f.Entries {
				if len(e.Key) > keyWidth {
					keyWidth = len(e.Key)
				}
			}
			if keyWidth > 48 {
				keyWidth = 48
			}
			for _, e := range f.Entries {
				fmt.Printf("  %-*s  %-7s %s\n", keyWidth, e.Key, e.Value.Type, formatValue(e.Value, limit))
			}
			return nil
		},
	}
}

// inspectTarget resolves the file to inspect: positional argument first,
// then the --file flag.
func inspectTarget(arg, flag string) (string, error) {
	if p := strings.TrimSpace(arg); p != "" {
		return p, nil
	}
	if p := strings.TrimSpace(flag); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("a .gguf file is required (positional argument or --file)")
}

type metadataReport struct {
	File        string        `json:"file"`
	FileSize    int64         `json:"file_size"`
	Version     uint32        `json:"version"`
	TensorCount uint64        `json:"tensor_count"`
	KVCount     uint64        `json:"metadata_kv_count"`
	Entries     []entryReport `json:"entries"`
}

type entryReport struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

func inspectReport(f *gguf.File) metadataReport {
	entries := make([]entryReport, 0, len(f.Entries))
	for _, e := range f.Entries {
		entries = append(entries, entryReport{
			Key:   e.Key,
			Type:  e.Value.Type.String(),
			Value: jsonValue(e.Value.Value),
		})
	}
	return metadataReport{
		File:        f.Path,
		FileSize:    f.Size,
		Version:     f.Header.Version,
		TensorCount: f.Header.TensorCount,
		KVCount:     f.Header.KVCount,
		Entries:     entries,
	}
}

// jsonValue flattens ArrayValue wrappers into plain slices for JSON output.
func jsonValue(v any) any {
	av, ok := v.(gguf.ArrayValue)
	if !ok {
		return v
	}
	vals := make([]any, 0, len(av.Values))
	for _, el := range av.Values {
		vals = append(vals, jsonValue(el))
	}
	return vals
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return cli.Exit(fmt.Sprintf("error: encode json: %v", err), 1)
	}
	fmt.Println(string(out))
	return nil
}

// formatValue renders a decoded value for terminal output. Arrays are
// elided past limit elements, long strings past 120 bytes.
func formatValue(v gguf.Value, limit int) string {
	return formatAny(v.Value, limit)
}

func formatAny(v any, limit int) string {
	switch val := v.(type) {
	case string:
		if limit > 0 && len(val) > 120 {
			cut := 120
			for cut > 0 && !utf8.RuneStart(val[cut]) {
				cut--
			}
			return strconv.Quote(val[:cut]) + fmt.Sprintf(" (+%d bytes)", len(val)-cut)
		}
		return strconv.Quote(val)
	case gguf.ArrayValue:
		var sb strings.Builder
		fmt.Fprintf(&sb, "[%s; %d] = [", val.ElemType, len(val.Values))
		shown := len(val.Values)
		if limit > 0 && shown > limit {
			shown = limit
		}
		for i := 0; i < shown; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(formatAny(val.Values[i], limit))
		}
		if rest := len(val.Values) - shown; rest > 0 {
			fmt.Fprintf(&sb, ", ... (+%d more)", rest)
		}
		sb.WriteString("]")
		return sb.String()
	default:
		return fmt.Sprint(val)
	}
}
