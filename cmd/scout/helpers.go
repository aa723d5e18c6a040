package main

import (
	"os"

	"scout/internal/contract"
	"scout/internal/engine"
	"scout/internal/logging"
)

func newLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{
		Format: logging.Format(logFormatFlag),
		Level:  logging.ParseLevel(logLevelFlag),
	})
}

func newEmitter() *contract.Emitter {
	return contract.NewEmitter(os.Stdout)
}

// engineOptions builds run options from the persistent flags plus the
// target repo's engine config. Per-command flags override both.
func engineOptions(command string) engine.Options {
	opts := engine.Options{
		TargetRoot: repoFlag,
		Command:    command,
		PolicyPath: policyFlag,
		Token:      tokenFlag,
		Strict:     strictFlag,
		Logger:     newLogger(),
	}

	cfg, err := engine.LoadConfig(repoFlag)
	if err != nil {
		failInternal(newEmitter(), err)
	}
	opts.Thresholds = cfg.Thresholds()
	opts.Budget = cfg.Budget()
	opts.ReusePolicy = cfg.Reuse()
	opts.Workers = cfg.Workers
	return opts
}

// emitOutcome translates a pipeline outcome into machine lines and exits
// with the state's code. Denials emit only the denial block; everything
// else emits whatever artifacts the run produced, then the status line.
func emitOutcome(emitter *contract.Emitter, out *engine.Outcome, capabilityPayload interface{}) {
	if out.State.Denied() {
		_ = emitter.Denied(out.State, out.Decision)
		os.Exit(out.State.ExitCode())
	}

	if out.Record != nil && out.Workspace != nil {
		if capabilityPayload == nil {
			capabilityPayload = out.Record
		}
		_ = emitter.Pointer(contract.KindCapability, out.Workspace.SnapshotPath(), capabilityPayload)
		if out.Graph != nil {
			_ = emitter.Pointer(contract.KindGraph, out.Workspace.GraphPath(), out.Graph.Metrics)
		}
	}
	if out.HintBundlePath != "" {
		_ = emitter.Pointer(contract.KindHints, out.HintBundlePath, out.Score)
	}
	if out.FederationPath != "" {
		_ = emitter.Pointer(contract.KindFederation, out.FederationPath, map[string]interface{}{
			"repoFingerprint": out.Record.RepoFingerprint,
			"runId":           out.Record.RunID,
		})
	}

	var detail interface{}
	switch {
	case len(out.Violations) > 0:
		detail = out.Violations
	case out.Err != nil:
		detail = map[string]string{"error": out.Err.Error()}
	}
	_ = emitter.Status(out.State, detail)
	os.Exit(out.State.ExitCode())
}
