package preflight

import (
	"context"

	"songflow/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir),
	}

	if llmCfg, err := cfg.ResolveLLM("", ""); err == nil {
		results = append(results, CheckLLM(ctx, "Text provider ("+llmCfg.Provider+")", llmCfg))
	} else {
		results = append(results, Result{Name: "Text provider", Detail: err.Error()})
	}

	results = append(results, CheckImageProvider(cfg))
	results = append(results, CheckACE(ctx, cfg.ACE))

	if cfg.Audio.TrimSilence {
		for _, status := range CheckSystemDeps(cfg) {
			results = append(results, Result{Name: status.Name, Passed: status.Available, Detail: depDetail(status.Path, status.Detail)})
		}
	}
	return results
}

func depDetail(path, detail string) string {
	if detail != "" {
		return detail
	}
	return path
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
