package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openneuropet/petdeface/internal/bids"
	"github.com/openneuropet/petdeface/internal/ctxlog"
	"github.com/openneuropet/petdeface/internal/dag"
	"github.com/openneuropet/petdeface/internal/deface"
	"github.com/openneuropet/petdeface/internal/noanat"
	"github.com/openneuropet/petdeface/internal/reconcile"
	"github.com/openneuropet/petdeface/internal/tools"
	"github.com/openneuropet/petdeface/internal/validate"
)

// Run executes the full defacing pipeline for the configured dataset.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	placement, err := reconcile.ParsePlacement(a.config.Placement)
	if err != nil {
		return err
	}
	anatMode, err := noanat.ParseAnatMode(a.config.AnatDefault)
	if err != nil {
		return err
	}

	if a.checkTools {
		if err := tools.CheckFreeSurfer(); err != nil {
			return err
		}
	}

	if !a.config.SkipValidator {
		if err := validate.DatasetErr(a.config.BIDSDir); err != nil {
			return err
		}
		a.logger.Debug("Dataset validation passed.")
	}

	layout, err := bids.Index(a.config.BIDSDir)
	if err != nil {
		return err
	}
	a.logger.Debug("Dataset indexed.", "subjects", len(layout.Subjects()))

	outputDir := a.config.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(a.config.BIDSDir, "derivatives", "petdeface")
	}
	workDir := filepath.Join(outputDir, "petdeface_wf")

	exclusions := bids.BuildExclusions(layout, bids.ExclusionSpec{
		ParticipantInclude: a.config.ParticipantLabel,
		ParticipantExclude: a.config.ParticipantExclude,
		SessionInclude:     a.config.SessionLabel,
		SessionExclude:     a.config.SessionExclude,
	})

	var participants []string
	for _, subject := range layout.Subjects() {
		if exclusions.Subject(subject) {
			a.logger.Debug("Skipping excluded participant.", "subject", "sub-"+subject)
			continue
		}
		participants = append(participants, subject)
	}
	if len(participants) == 0 {
		return fmt.Errorf("no participants left to process in %s after applying filters", a.config.BIDSDir)
	}

	opts := deface.Options{
		OutputDir:   outputDir,
		WorkDir:     workDir,
		AnatOnly:    a.config.AnatOnly,
		PreviewPics: a.config.PreviewPics,
		AnatMode:    anatMode,
		Exclusions:  exclusions,
		Runner:      a.runner,
	}

	// Build each subject into its own graph and merge them into one
	// run-level graph, collecting precondition failures so the operator
	// sees all of them at once.
	graph := dag.New()
	var created []noanat.CreatedItems
	batch := &deface.BatchError{}
	for _, subject := range participants {
		subjectGraph := dag.New()
		subjectCreated, err := deface.BuildSubject(ctx, subjectGraph, layout, subject, opts)
		created = append(created, subjectCreated...)
		if err != nil {
			batch.Append(err)
			continue
		}
		if err := graph.Merge(subjectGraph); err != nil {
			batch.Append(err)
		}
	}
	if err := batch.OrNil(); err != nil {
		// Nothing has executed; leave the dataset as we found it.
		a.removeSynthetic(ctx, created)
		return err
	}
	a.logger.Debug("Run graph assembled.", "node_count", graph.Len())

	runErr := a.execute(ctx, graph)

	// Synthetic anatomical data is reverted before reconciliation no
	// matter how execution went, so the source dataset never keeps our
	// stand-ins.
	a.removeSynthetic(ctx, created)

	if runErr != nil {
		return runErr
	}

	source := bids.ReadDatasetDescription(a.config.BIDSDir)
	if err := bids.WriteDatasetDescription(outputDir, source.Name); err != nil {
		return err
	}

	if err := reconcile.WrapUp(ctx, reconcile.Options{
		DatasetRoot: a.config.BIDSDir,
		OutputDir:   outputDir,
		TargetRoot:  a.config.DefacedDir,
		Placement:   placement,
		Exclusions:  exclusions,
		KeepStray:   debugEnabled(),
	}); err != nil {
		return err
	}

	if debugEnabled() {
		a.logger.Info("Debug flag set, keeping working directory.", "dir", workDir)
	} else if err := os.RemoveAll(workDir); err != nil {
		return fmt.Errorf("removing working directory: %w", err)
	}

	a.logger.Info("🏁 Defacing finished.", "output", outputDir)
	return nil
}

// execute runs the assembled graph through the bounded worker pool.
func (a *App) execute(ctx context.Context, graph *dag.Graph) error {
	if graph.Len() == 0 {
		a.logger.Warn("No tasks found in graph, execution not required.")
		return nil
	}
	a.logger.Info("🚀 Starting concurrent execution...", "tasks", graph.Len(), "workers", a.config.NProcs)
	exec := dag.NewExecutor(graph, a.config.NProcs)
	if err := exec.Run(ctx); err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	a.logger.Info("Execution finished.")
	return nil
}

// removeSynthetic reverts every synthetic anatomical contribution recorded
// during graph assembly.
func (a *App) removeSynthetic(ctx context.Context, created []noanat.CreatedItems) {
	for _, items := range created {
		if err := noanat.Remove(ctx, a.config.BIDSDir, items); err != nil {
			a.logger.Error("Failed to remove synthetic anatomical data.", "error", err)
		}
	}
}
