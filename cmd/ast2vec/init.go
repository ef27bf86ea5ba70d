package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/ast2vec/internal/config"
)

// mcpConfig represents the structure of a .mcp.json file.
type mcpConfig struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// mcpEntry is the MCP server configuration for the ast2vec binary.
type mcpEntry struct {
	Type    string   `json:"type"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// runInit writes a default ast2vec.yml and registers the MCP server in
// .mcp.json inside the target project directory.
func runInit(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	projectRoot := fs.String("project-root", ".", "path to the target project")
	model := fs.String("model", "embeddings.json", "artifact the MCP server loads")
	force := fs.Bool("force", false, "overwrite existing files and entries")
	if err := fs.Parse(args); err != nil {
		return err
	}

	abs, err := filepath.Abs(*projectRoot)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}

	if err := writeDefaultConfig(stdout, filepath.Join(abs, "ast2vec.yml"), *model, *force); err != nil {
		return err
	}
	if err := mergeMCPConfig(stdout, filepath.Join(abs, ".mcp.json"), *model, *force); err != nil {
		return err
	}

	fmt.Fprintln(stdout, "\nSetup complete. Run 'ast2vec train --source .' to build embeddings.")
	return nil
}

func writeDefaultConfig(stdout io.Writer, path, model string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		fmt.Fprintf(stdout, "  skipped %s (exists, use --force to overwrite)\n", filepath.Base(path))
		return nil
	}

	cfg := config.Default()
	cfg.Output = model
	cfg.Source.Path = "."
	cfg.Source.ExcludeDirs = []string{"vendor", "node_modules", "testdata"}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(stdout, "  created %s\n", filepath.Base(path))
	return nil
}

// mergeMCPConfig creates or merges the ast2vec entry into .mcp.json.
func mergeMCPConfig(stdout io.Writer, mcpPath, model string, force bool) error {
	var cfg mcpConfig

	data, err := os.ReadFile(mcpPath)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", mcpPath, err)
		}
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]json.RawMessage)
	}

	if _, exists := cfg.MCPServers["ast2vec"]; exists && !force {
		fmt.Fprintf(stdout, "  skipped .mcp.json ast2vec entry (exists, use --force to overwrite)\n")
		return nil
	}

	entry, err := json.Marshal(mcpEntry{
		Type:    "stdio",
		Command: "ast2vec",
		Args:    []string{"serve-mcp", "--model", model},
	})
	if err != nil {
		return err
	}
	cfg.MCPServers["ast2vec"] = entry

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling .mcp.json: %w", err)
	}

	if err := os.WriteFile(mcpPath, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mcpPath, err)
	}

	action := "created"
	if data != nil {
		action = "updated"
	}
	fmt.Fprintf(stdout, "  %s .mcp.json with ast2vec MCP server\n", action)
	return nil
}
