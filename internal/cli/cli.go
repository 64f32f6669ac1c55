// Package cli translates command-line arguments into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/openneuropet/petdeface/internal/app"
	"github.com/openneuropet/petdeface/internal/bids"
	"github.com/openneuropet/petdeface/internal/hclconfig"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("petdeface", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
petdeface - deface anatomical and PET images in a BIDS dataset.

Usage:
  petdeface [options] INPUT_DIR

Arguments:
  INPUT_DIR
    Path to the root of a BIDS dataset.

Options:
`)
		flagSet.PrintDefaults()
	}

	outputDirFlag := flagSet.String("output_dir", "", "Destination for defacing derivatives. Defaults to INPUT_DIR/derivatives/petdeface.")
	defacedDirFlag := flagSet.String("defaced_dir", "", "Destination for the 'adjacent' sibling dataset. Defaults to INPUT_DIR with a _defaced suffix.")
	anatOnlyFlag := flagSet.Bool("anat_only", false, "Deface anatomical images only, skipping PET processing.")
	participantFlag := flagSet.String("participant_label", "", "Comma-separated participant labels to process. Empty means all.")
	participantExclFlag := flagSet.String("participant_label_exclude", "", "Comma-separated participant labels to exclude.")
	sessionFlag := flagSet.String("session_label", "", "Comma-separated session labels to process. Empty means all.")
	sessionExclFlag := flagSet.String("session_label_exclude", "", "Comma-separated session labels to exclude.")
	placementFlag := flagSet.String("placement", "adjacent", "Where defaced images end up. Options: 'adjacent', 'inplace', or 'derivatives'.")
	anatDefaultFlag := flagSet.String("anat_default", "", "Fallback for subjects without a T1w image. Options: 't1', 'mni', or 'pet'.")
	nProcsFlag := flagSet.Int("n_procs", 2, "Number of concurrent workers for the executor.")
	skipValidatorFlag := flagSet.Bool("skip_bids_validator", false, "Skip dataset validation before processing.")
	previewPicsFlag := flagSet.Bool("preview_pics", false, "Generate before/after preview images for each defaced anatomical.")
	configFlag := flagSet.String("config", "", "Path to an HCL run configuration file. Explicit flags override file values.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	versionFlag := flagSet.Bool("version", false, "Print the version and exit.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if *versionFlag {
		fmt.Fprintf(output, "petdeface %s\n", bids.Version)
		return nil, true, nil
	}

	path := ""
	if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Input directory determined.", "path", path)

	if path == "" {
		slog.Debug("No input directory provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	cfg := app.Config{
		BIDSDir:            path,
		OutputDir:          *outputDirFlag,
		DefacedDir:         *defacedDirFlag,
		Placement:          *placementFlag,
		AnatDefault:        *anatDefaultFlag,
		AnatOnly:           *anatOnlyFlag,
		PreviewPics:        *previewPicsFlag,
		ParticipantLabel:   splitLabels(*participantFlag),
		ParticipantExclude: splitLabels(*participantExclFlag),
		SessionLabel:       splitLabels(*sessionFlag),
		SessionExclude:     splitLabels(*sessionExclFlag),
		NProcs:             *nProcsFlag,
		SkipValidator:      *skipValidatorFlag,
		LogFormat:          logFormat,
		LogLevel:           logLevel,
	}

	if *configFlag != "" {
		fileCfg, err := hclconfig.Load(*configFlag)
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		set := map[string]bool{}
		flagSet.Visit(func(f *flag.Flag) { set[f.Name] = true })
		mergeFileConfig(&cfg, fileCfg, set)
		slog.Debug("Run configuration file merged.", "path", *configFlag)
	}

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

// mergeFileConfig fills cfg from a run configuration file. A value from the
// file applies only when the matching flag was not set on the command line.
func mergeFileConfig(cfg *app.Config, file *hclconfig.RunConfig, set map[string]bool) {
	if file.OutputDir != nil && !set["output_dir"] {
		cfg.OutputDir = *file.OutputDir
	}
	if file.DefacedDir != nil && !set["defaced_dir"] {
		cfg.DefacedDir = *file.DefacedDir
	}
	if file.Placement != nil && !set["placement"] {
		cfg.Placement = *file.Placement
	}
	if file.AnatOnly != nil && !set["anat_only"] {
		cfg.AnatOnly = *file.AnatOnly
	}
	if file.AnatDefault != nil && !set["anat_default"] {
		cfg.AnatDefault = *file.AnatDefault
	}
	if len(file.ParticipantLabel) > 0 && !set["participant_label"] {
		cfg.ParticipantLabel = file.ParticipantLabel
	}
	if len(file.ParticipantExclude) > 0 && !set["participant_label_exclude"] {
		cfg.ParticipantExclude = file.ParticipantExclude
	}
	if len(file.SessionLabel) > 0 && !set["session_label"] {
		cfg.SessionLabel = file.SessionLabel
	}
	if len(file.SessionExclude) > 0 && !set["session_label_exclude"] {
		cfg.SessionExclude = file.SessionExclude
	}
	if file.NProcs != nil && !set["n_procs"] {
		cfg.NProcs = *file.NProcs
	}
	if file.SkipValidator != nil && !set["skip_bids_validator"] {
		cfg.SkipValidator = *file.SkipValidator
	}
	if file.PreviewPics != nil && !set["preview_pics"] {
		cfg.PreviewPics = *file.PreviewPics
	}
}

// splitLabels turns a comma-separated flag value into clean labels. The
// sub- and ses- prefixes are accepted and stripped so operators can paste
// directory names directly.
func splitLabels(value string) []string {
	if value == "" {
		return nil
	}
	var labels []string
	for _, part := range strings.Split(value, ",") {
		label := strings.TrimSpace(part)
		label = strings.TrimPrefix(label, "sub-")
		label = strings.TrimPrefix(label, "ses-")
		if label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}
