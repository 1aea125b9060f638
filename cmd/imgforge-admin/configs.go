package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/imgforge/imgforge-api/config"
	"github.com/imgforge/imgforge-api/internal/domain/model"
	"github.com/imgforge/imgforge-api/internal/service"
)

const previewJobID = "preview"

type renderEnvOptions struct {
	Path  string
	JobID string
}

type showConfigOptions struct {
	JobID string
	JSON  bool
}

func workspaceFor(cfg *config.AppConfig) service.Workspace {
	return service.Workspace{
		ScratchDir: cfg.Storage.ScratchDir,
		ConfigsDir: cfg.Storage.ConfigsDir(),
		ImagesDir:  cfg.Storage.ImagesDir(),
		Workdir:    cfg.Storage.Workdir,
	}
}

func runRenderEnv(cmdCtx *commandContext, args []string) error {
	opts, err := parseRenderEnvFlags(args)
	if err != nil {
		return err
	}

	raw, err := readInput(cmdCtx.In, opts.Path)
	if err != nil {
		return err
	}

	var cfg model.BuildConfiguration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("decode build configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ws := workspaceFor(&cmdCtx.Config)
	env := cfg.Render(model.RenderPaths{
		ComposeFile: ws.ComposeFile(opts.JobID),
		ScriptFile:  ws.ScriptFile(opts.JobID),
	})
	doc, err := env.Marshal()
	if err != nil {
		return err
	}
	return writef(cmdCtx.Out, "%s", doc)
}

func parseRenderEnvFlags(args []string) (renderEnvOptions, error) {
	fs := flag.NewFlagSet("render-env", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opts := renderEnvOptions{}
	fs.StringVar(&opts.JobID, "job-id", previewJobID, "job id used to name the compose and script paths")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() != 1 {
		return opts, errors.New("usage: render-env [-job-id id] <config.json|->")
	}
	opts.Path = fs.Arg(0)
	return opts, nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		if stdin == nil {
			return nil, errors.New("stdin is not available")
		}
		return io.ReadAll(stdin)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}

func runShowConfig(cmdCtx *commandContext, args []string) error {
	opts, err := parseShowConfigFlags(args)
	if err != nil {
		return err
	}

	record, err := workspaceFor(&cmdCtx.Config).ReadConfigRecord(opts.JobID)
	if err != nil {
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(cmdCtx.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	}

	for _, key := range slices.Sorted(maps.Keys(record)) {
		if err := writef(cmdCtx.Out, "%s=%s\n", key, record[key]); err != nil {
			return err
		}
	}
	return nil
}

func parseShowConfigFlags(args []string) (showConfigOptions, error) {
	fs := flag.NewFlagSet("show-config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opts := showConfigOptions{}
	fs.BoolVar(&opts.JSON, "json", false, "print the record as a JSON object")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() != 1 {
		return opts, errors.New("usage: show-config [-json] <job-id>")
	}
	opts.JobID = fs.Arg(0)
	return opts, nil
}
