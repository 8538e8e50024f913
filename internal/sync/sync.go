package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/schaermu/materialsync/internal/config"
	"github.com/schaermu/materialsync/internal/git"
)

// Engine keeps the working copies of all template entries in sync
type Engine struct {
	settings *config.Settings
	doc      *config.Document
	git      git.Client
	logger   *slog.Logger
	dryRun   bool
}

// NewEngine creates a new sync engine
func NewEngine(settings *config.Settings, doc *config.Document, gitClient git.Client, logger *slog.Logger, dryRun bool) *Engine {
	return &Engine{
		settings: settings,
		doc:      doc,
		git:      gitClient,
		logger:   logger,
		dryRun:   dryRun,
	}
}

// Run syncs every entry in name order. A failing entry does not stop the
// run; the returned error is non-nil if any entry failed or ctx was
// cancelled.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	e.logger.Info("starting sync",
		"entries", len(e.doc.Material),
		"material_dir", e.settings.MaterialDir,
		"dry_run", e.dryRun)

	report := &Report{}
	for _, name := range e.doc.Names() {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("sync interrupted: %w", err)
		}
		report.Outcomes = append(report.Outcomes, e.syncEntry(ctx, name, e.doc.Material[name]))
	}

	e.logger.Info("sync summary",
		"cloned", report.Count(ActionCloned),
		"updated", report.Count(ActionUpdated),
		"skipped", len(report.Skipped()),
		"failed", report.Count(ActionFailed))

	if e.dryRun {
		e.logger.Info("dry-run complete, no changes applied",
			"would_clone", report.Count(ActionWouldClone),
			"would_update", report.Count(ActionWouldUpdate))
	}

	if failed := report.Failed(); len(failed) > 0 {
		return report, fmt.Errorf("%d of %d entries failed to sync", len(failed), len(report.Outcomes))
	}
	return report, nil
}

// syncEntry clones or updates a single entry
func (e *Engine) syncEntry(ctx context.Context, name string, entry config.Entry) Outcome {
	dir := entry.Dir(e.settings.MaterialDir)
	logger := e.logger.With("entry", name, "dir", dir)
	out := Outcome{Name: name, Dir: dir, URL: entry.URL}

	if !e.dryRun {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return e.fail(logger, out, fmt.Errorf("failed to create directory: %w", err))
		}
	}

	origin, err := e.git.Origin(dir)
	switch {
	case err == nil:
		out.Origin = origin
		return e.update(ctx, logger, out)
	case errors.Is(err, git.ErrNoOrigin):
		logger.Error("working copy has no origin remote, skipping", "expected", entry.URL)
		out.Action = ActionMismatch
		return out
	case git.IsNotRepository(err):
		return e.clone(ctx, logger, out)
	default:
		return e.fail(logger, out, err)
	}
}

// update stashes local changes and pulls an existing working copy
func (e *Engine) update(ctx context.Context, logger *slog.Logger, out Outcome) Outcome {
	if !git.SameRemote(out.URL, out.Origin) {
		logger.Error("working copy has a different remote, skipping", "expected", out.URL, "found", out.Origin)
		out.Action = ActionMismatch
		return out
	}

	if e.dryRun {
		logger.Info("[dry-run] would stash and pull", "origin", out.Origin)
		out.Action = ActionWouldUpdate
		return out
	}

	logger.Info("found working copy, pulling latest changes", "origin", out.Origin)

	stashed, err := e.git.Stash(ctx, out.Dir)
	if err != nil {
		return e.fail(logger, out, err)
	}
	if stashed {
		logger.Info("stashed local changes")
	}
	out.Stashed = stashed

	if err := e.git.Pull(ctx, out.URL, out.Dir); err != nil {
		return e.fail(logger, out, err)
	}

	logger.Info("update completed")
	out.Action = ActionUpdated
	return out
}

// clone clones into a directory that is not a working copy, if it is empty
func (e *Engine) clone(ctx context.Context, logger *slog.Logger, out Outcome) Outcome {
	empty, err := isEmptyDir(out.Dir)
	if err != nil {
		return e.fail(logger, out, fmt.Errorf("failed to read directory: %w", err))
	}
	if !empty {
		logger.Error("directory is not empty and not a working copy, refusing to clone")
		out.Action = ActionObstructed
		return out
	}

	if e.dryRun {
		logger.Info("[dry-run] would clone", "url", out.URL)
		out.Action = ActionWouldClone
		return out
	}

	logger.Info("cloning", "url", out.URL)
	if err := e.git.Clone(ctx, out.URL, out.Dir); err != nil {
		return e.fail(logger, out, err)
	}

	logger.Info("clone completed")
	out.Action = ActionCloned
	return out
}

func (e *Engine) fail(logger *slog.Logger, out Outcome, err error) Outcome {
	out.Action = ActionFailed
	out.Kind = git.KindOf(err)
	out.Err = err
	logger.Error("sync failed", "kind", out.Kind.String(), "error", err)
	return out
}

// isEmptyDir reports whether dir has no entries. A missing directory counts
// as empty.
func isEmptyDir(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	defer func() {
		_ = f.Close()
	}()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}
