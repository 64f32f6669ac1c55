// Package deface assembles the per-subject defacing task graph.
//
// For one subject the graph holds a single Mideface task per distinct
// anatomical reference and a three-step chain (time-weighted average,
// rigid registration, mask application) per PET acquisition, with one edge
// from each anatomical task to the chains consuming its mask. That edge is
// the only cross-branch dependency: independent subjects, sessions and runs
// execute fully in parallel.
package deface

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/openneuropet/petdeface/internal/bids"
	"github.com/openneuropet/petdeface/internal/ctxlog"
	"github.com/openneuropet/petdeface/internal/dag"
	"github.com/openneuropet/petdeface/internal/locator"
	"github.com/openneuropet/petdeface/internal/noanat"
	"github.com/openneuropet/petdeface/internal/pet"
	"github.com/openneuropet/petdeface/internal/tools"
)

// Options configures graph construction for a run.
type Options struct {
	// OutputDir is the derivative root the pipeline writes into.
	OutputDir string
	// WorkDir holds intermediate artifacts (weighted averages) that are
	// removed after a successful run.
	WorkDir string
	// AnatOnly restricts the graph to anatomical defacing tasks.
	AnatOnly bool
	// PreviewPics enables before/after images on the defacing tool.
	PreviewPics bool
	// AnatMode selects the synthetic-anatomical fallback, ModeNone
	// disables it.
	AnatMode noanat.AnatMode
	// Exclusions filters subjects and sessions out of the run. The same
	// value must be handed to reconciliation afterwards.
	Exclusions bids.Exclusions
	// Runner executes external tool invocations.
	Runner tools.Runner
}

// BuildSubject adds one subject's tasks to graph and returns the records of
// any synthetic anatomical data it had to create. Missing anatomical
// references surface as a *BatchError listing every offending PET file for
// this subject; the caller aggregates batches across subjects before
// anything executes.
func BuildSubject(ctx context.Context, graph *dag.Graph, layout *bids.Layout, subject string, opts Options) ([]noanat.CreatedItems, error) {
	logger := ctxlog.FromContext(ctx).With("subject", "sub-"+bids.TrimSubjectPrefix(subject))
	logger.Debug("Building subject task graph.")

	matches, err := locator.Collect(layout, subject)
	if err != nil {
		return nil, err
	}

	var created []noanat.CreatedItems
	if missing := locator.Missing(matches); len(missing) > 0 {
		if opts.AnatMode == noanat.ModeNone {
			batch := &BatchError{}
			for _, petPath := range missing {
				batch.Append(&locator.MissingAnatError{
					Subject: bids.TrimSubjectPrefix(subject),
					PETFile: petPath,
				})
			}
			return nil, batch
		}

		// Substitute a synthetic anatomical for each unmatched PET
		// file, then re-run the locator against the refreshed index.
		for _, petPath := range missing {
			items, err := noanat.Provide(ctx, layout.Root, subject, petPath, opts.AnatMode)
			if err != nil {
				return nil, fmt.Errorf("providing synthetic anatomical for sub-%s: %w", bids.TrimSubjectPrefix(subject), err)
			}
			created = append(created, items)
		}
		if err := layout.Rebuild(); err != nil {
			return created, err
		}
		matches, err = locator.Collect(layout, subject)
		if err != nil {
			return created, err
		}
		if still := locator.Missing(matches); len(still) > 0 {
			return created, fmt.Errorf("synthetic anatomical for sub-%s did not resolve matches for %s",
				bids.TrimSubjectPrefix(subject), strings.Join(still, ", "))
		}
	}

	// Drop excluded acquisitions before anything is keyed off the map, so
	// task construction and reconciliation agree about scope.
	for petPath := range matches {
		if opts.Exclusions.File(bids.NewFile(petPath)) {
			logger.Debug("Excluding PET acquisition.", "file", petPath)
			delete(matches, petPath)
		}
	}

	// One defacing task per distinct anatomical reference, no matter how
	// many PET acquisitions share it.
	anatTasks := make(map[string]string) // anat path -> node ID
	anatMasks := make(map[string]string) // anat path -> published mask path
	for _, anatPath := range locator.UniqueAnat(matches) {
		nodeID, maskPath, err := addAnatTask(graph, anatPath, opts)
		if err != nil {
			return created, err
		}
		anatTasks[anatPath] = nodeID
		anatMasks[anatPath] = maskPath
	}

	if opts.AnatOnly {
		logger.Debug("Anatomical-only mode, skipping PET chains.")
		return created, nil
	}

	for _, petPath := range sortedKeys(matches) {
		anatPath := matches[petPath]
		if err := addPETChain(graph, layout, petPath, anatPath, anatTasks[anatPath], anatMasks[anatPath], opts); err != nil {
			return created, err
		}
	}

	logger.Debug("Subject task graph built.", "anat_tasks", len(anatTasks), "pet_chains", len(matches))
	return created, nil
}

// addAnatTask builds the Mideface task for one anatomical file and returns
// its node ID and the mask path it publishes. Synthetic self-average
// volumes get the mask-only variant: their face mask is still computed and
// published, but no defaced copy of a volume that contains no real facial
// identity is produced.
func addAnatTask(graph *dag.Graph, anatPath string, opts Options) (string, string, error) {
	file := bids.NewFile(anatPath)
	outDir := derivDir(opts.OutputDir, file.Entities)
	base := filepath.Base(anatPath)

	defacedPath := filepath.Join(outDir, DefacedName(base))
	maskPath := filepath.Join(outDir, FaceMaskName(base))
	maskOnly := file.Entities.Desc == noanat.SelfAverageTag

	cmd := tools.Mideface{
		InFile:   anatPath,
		OutFile:  defacedPath,
		FaceMask: maskPath,
		MaskOnly: maskOnly,
		Pics:     opts.PreviewPics,
		OutDir:   outDir,
	}.Command()

	nodeID := "anat." + file.Entities.Key() + ".deface"
	node := &dag.Node{
		ID: nodeID,
		Run: func(ctx context.Context) error {
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			return opts.Runner.Run(ctx, cmd)
		},
	}
	if err := graph.AddNode(node); err != nil {
		return "", "", err
	}
	return nodeID, maskPath, nil
}

// addPETChain builds the average -> coreg -> apply chain for one PET
// acquisition and wires it to the anatomical task publishing the mask it
// consumes.
func addPETChain(graph *dag.Graph, layout *bids.Layout, petPath, anatPath, anatNodeID, maskPath string, opts Options) error {
	file := bids.NewFile(petPath)
	key := file.Entities.Key()

	sidecarPath := layout.Sidecar(file)
	if sidecarPath == "" {
		return fmt.Errorf("PET file %s has no JSON sidecar; frame timing is required for the weighted average", petPath)
	}

	workDir := filepath.Join(opts.WorkDir, key)
	stem, _ := bids.SplitExtension(filepath.Base(petPath))
	avgPath := filepath.Join(workDir, strings.TrimSuffix(stem, "_pet")+WeightedAvgDesc+".nii.gz")

	outDir := derivDir(opts.OutputDir, file.Entities)
	ltaPath := filepath.Join(outDir, registrationName(file.Entities))
	defacedPath := filepath.Join(outDir, DefacedName(filepath.Base(petPath)))

	avgID := "pet." + key + ".average"
	coregID := "pet." + key + ".coreg"
	applyID := "pet." + key + ".apply"

	avgNode := &dag.Node{
		ID: avgID,
		Run: func(ctx context.Context) error {
			if err := os.MkdirAll(workDir, 0o755); err != nil {
				return err
			}
			return pet.WeightedAverage(petPath, sidecarPath, avgPath)
		},
	}

	coregCmd := tools.MRICoreg{Source: avgPath, Reference: anatPath, OutLTA: ltaPath}.Command()
	coregNode := &dag.Node{
		ID: coregID,
		Run: func(ctx context.Context) error {
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			return opts.Runner.Run(ctx, coregCmd)
		},
	}

	applyCmd := tools.ApplyMideface{
		InFile:   petPath,
		FaceMask: maskPath,
		LTAFile:  ltaPath,
		OutFile:  defacedPath,
	}.Command()
	applyNode := &dag.Node{
		ID: applyID,
		Run: func(ctx context.Context) error {
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			return opts.Runner.Run(ctx, applyCmd)
		},
	}

	for _, n := range []*dag.Node{avgNode, coregNode, applyNode} {
		if err := graph.AddNode(n); err != nil {
			return err
		}
	}
	if err := graph.AddEdge(avgID, coregID); err != nil {
		return err
	}
	if err := graph.AddEdge(coregID, applyID); err != nil {
		return err
	}
	// The one cross-branch dependency: a mask must exist before it is
	// applied.
	return graph.AddEdge(anatNodeID, applyID)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
