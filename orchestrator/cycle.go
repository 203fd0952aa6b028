package orchestrator

import (
	"context"
	"log/slog"

	"github.com/input-output-hk/macrosync/automation"
	mserrors "github.com/input-output-hk/macrosync/errors"
	"github.com/input-output-hk/macrosync/store"
	"github.com/input-output-hk/macrosync/workspace"
)

// PollCycle runs one full cycle. Item-level failures are recorded in the
// result and do not fail the cycle. The returned error is non-nil only when
// the cycle aborted: a listing failed, a scratch directory could not be
// prepared, or ctx was cancelled.
func (o *Orchestrator) PollCycle(ctx context.Context) (*CycleResult, error) {
	res := &CycleResult{ID: o.newID(), StartedAt: o.now()}
	log := o.logger.With("cycle_id", res.ID)

	err := o.cycle(ctx, log, res)

	res.Duration = o.now().Sub(res.StartedAt)
	if err != nil {
		res.Error = err.Error()
		res.Errors = append(res.Errors, err)
		log.Error("cycle aborted", "error", err, "code", mserrors.CodeOf(err))
	} else if len(res.WorkItems) > 0 {
		log.Info("cycle finished",
			"work_items", len(res.WorkItems),
			"downloads", res.Downloads,
			"invocations", res.Invocations,
			"uploads", res.Uploads,
			"failures", len(res.Errors),
			"duration", res.Duration)
	}
	o.setLast(res)
	return res, err
}

func (o *Orchestrator) cycle(ctx context.Context, log *slog.Logger, res *CycleResult) error {
	cfg := o.cfg

	inputs, err := o.store.ListNames(ctx, cfg.InputContainer)
	if err != nil {
		return o.abort(ctx, "orchestrator.list", err)
	}
	outputs, err := o.store.ListNames(ctx, cfg.OutputContainer)
	if err != nil {
		return o.abort(ctx, "orchestrator.list", err)
	}

	res.WorkItems = Plan(inputs, outputs)
	o.quarantine.Retain(res.WorkItems)
	if len(res.WorkItems) == 0 {
		log.Debug("no pending documents")
		return nil
	}
	log.Info("pending documents", "count", len(res.WorkItems))

	if cfg.DryRun {
		for _, name := range res.WorkItems {
			res.item(name).Outcome = OutcomePlanned
		}
		return nil
	}

	active := make([]string, 0, len(res.WorkItems))
	for _, name := range res.WorkItems {
		if o.quarantine.IsQuarantined(name) {
			res.item(name).Outcome = OutcomeQuarantined
			log.Debug("skipping quarantined document", "item", name)
			continue
		}
		active = append(active, name)
	}
	if len(active) == 0 {
		return nil
	}

	if err := o.workspace.Prepare(cfg.InputDir); err != nil {
		return err
	}
	defer o.cleanup(log, cfg.InputDir)

	downloaded := o.download(ctx, log, res, active)
	if err := ctx.Err(); err != nil {
		return mserrors.Wrap(mserrors.CodeCanceled, "orchestrator.download", err)
	}
	if len(downloaded) == 0 {
		return nil
	}

	if err := o.workspace.Prepare(cfg.OutputDir); err != nil {
		return err
	}
	defer o.cleanup(log, cfg.OutputDir)

	for _, name := range downloaded {
		if err := o.process(ctx, log, res, name); err != nil {
			return err
		}
	}

	return o.upload(ctx, log, res, outputs)
}

func (o *Orchestrator) abort(ctx context.Context, op string, err error) error {
	switch {
	case ctx.Err() != nil:
		return mserrors.Wrap(mserrors.CodeCanceled, op, err)
	case store.IsCredentialError(err):
		return mserrors.Wrap(mserrors.CodeUnauthorized, op, err)
	}
	return mserrors.Wrap(mserrors.CodeStoreError, op, err)
}

// download fetches each item into the input scratch directory and returns the
// names that succeeded. Names that can never be stored locally are not
// fetched and count toward quarantine.
func (o *Orchestrator) download(ctx context.Context, log *slog.Logger, res *CycleResult, names []string) []string {
	ok := make([]string, 0, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}

		if err := workspace.ValidateName(name); err != nil {
			res.fail(name, OutcomeDownloadFailed,
				itemError(mserrors.CodeInvalidInput, "orchestrator.download", name, err))
			log.Error("document name rejected", "item", name, "error", err)
			o.recordUnproductive(log, name, "invalid name")
			continue
		}

		data, err := o.store.Get(ctx, o.cfg.InputContainer, name)
		if err == nil {
			_, err = o.workspace.WriteFile(o.cfg.InputDir, name, data)
		}
		if err != nil {
			classified := itemError(mserrors.CodeStoreError, "orchestrator.download", name, err)
			res.fail(name, OutcomeDownloadFailed, classified)
			log.Error("download failed", "item", name, "error", err)
			continue
		}

		res.Downloads++
		ok = append(ok, name)
	}
	return ok
}

// process discovers and runs every macro of one downloaded document. Each
// macro is run against the original input and writes the same output path,
// so the last successful macro determines the output.
func (o *Orchestrator) process(ctx context.Context, log *slog.Logger, res *CycleResult, name string) error {
	log = log.With("item", name)
	docPath := o.workspace.Path(o.cfg.InputDir, name)

	macros, err := o.discoverer.Discover(ctx, docPath)
	if err != nil {
		if ctx.Err() != nil {
			return mserrors.Wrap(mserrors.CodeCanceled, "orchestrator.process", ctx.Err())
		}
		res.fail(name, OutcomeOpenFailed, itemError(mserrors.CodeOpenFailure, "orchestrator.discover", name, err))
		o.recordUnproductive(log, name, "open failure: "+err.Error())
		return nil
	}

	it := res.item(name)
	for _, m := range macros {
		it.Macros = append(it.Macros, m.Name)
	}
	if len(macros) == 0 {
		it.Outcome = OutcomeNoMacros
		log.Warn("document declares no macros")
		o.recordUnproductive(log, name, "no macros")
		return nil
	}

	var succeeded, failed int
	var lastErr error
	for _, m := range macros {
		res.Invocations++
		_, err := o.runner.Execute(ctx, automation.Invocation{
			DocumentPath: docPath,
			Macro:        m,
			OutputPath:   o.workspace.Path(o.cfg.OutputDir, name),
			Parameter:    o.cfg.Parameter,
		})
		if err != nil {
			if ctx.Err() != nil {
				return mserrors.Wrap(mserrors.CodeCanceled, "orchestrator.process", ctx.Err())
			}
			failed++
			lastErr = itemError(mserrors.CodeExecutionFailed, "orchestrator.execute", name, err)
			res.Errors = append(res.Errors, lastErr)
			log.Error("macro failed", "macro", m.Name, "error", err)
			continue
		}
		succeeded++
	}

	it = res.item(name)
	it.Succeeded = succeeded
	it.Failed = failed
	if succeeded == 0 {
		it.Outcome = OutcomeExecutionFailed
		it.Error = lastErr.Error()
		o.recordUnproductive(log, name, "all macros failed")
	}
	return nil
}

// upload sends every finished output not yet present in the output
// container. The container is re-listed first; if that fails the listing from
// the start of the cycle is used.
func (o *Orchestrator) upload(ctx context.Context, log *slog.Logger, res *CycleResult, snapshot []string) error {
	files, err := o.workspace.List(o.cfg.OutputDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	remote, err := o.store.ListNames(ctx, o.cfg.OutputContainer)
	if err != nil {
		if ctx.Err() != nil {
			return mserrors.Wrap(mserrors.CodeCanceled, "orchestrator.upload", ctx.Err())
		}
		log.Warn("re-listing output container failed, using cycle snapshot", "error", err)
		remote = snapshot
	}
	present := store.Names(remote)

	for _, name := range files {
		if _, ok := present[name]; ok {
			res.item(name).Outcome = OutcomeAlreadyPresent
			log.Info("output already present, skipping upload", "item", name)
			o.quarantine.Forget(name)
			continue
		}

		data, err := o.workspace.ReadFile(o.cfg.OutputDir, name)
		if err == nil {
			err = o.store.Put(ctx, o.cfg.OutputContainer, name, data)
		}
		if err != nil {
			if ctx.Err() != nil {
				return mserrors.Wrap(mserrors.CodeCanceled, "orchestrator.upload", ctx.Err())
			}
			res.fail(name, OutcomeUploadFailed, itemError(mserrors.CodeStoreError, "orchestrator.upload", name, err))
			log.Error("upload failed", "item", name, "error", err)
			continue
		}

		res.Uploads++
		res.item(name).Outcome = OutcomeUploaded
		o.quarantine.Forget(name)
		log.Info("uploaded output", "item", name, "bytes", len(data))
	}
	return nil
}

func (o *Orchestrator) recordUnproductive(log *slog.Logger, name, reason string) {
	if o.quarantine.RecordFailure(name, reason, o.now()) {
		log.Warn("document quarantined", "reason", reason, "max_attempts", o.cfg.MaxAttempts)
	}
}

func (o *Orchestrator) cleanup(log *slog.Logger, dir string) {
	if err := o.workspace.Remove(dir); err != nil {
		log.Error("failed to remove scratch directory", "dir", o.workspace.Path(dir), "error", err)
	}
}

// itemError classifies err for item name, keeping a more specific code if err
// already carries one.
func itemError(code mserrors.ErrorCode, op, name string, err error) error {
	if c := mserrors.CodeOf(err); c != mserrors.CodeUnknown && c != "" {
		code = c
	}
	return &mserrors.Error{Code: code, Op: op, Item: name, Err: err}
}
