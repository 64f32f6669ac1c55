package bids

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Pipeline identity embedded in every derivative dataset this tool writes.
const (
	PipelineName = "petdeface"
	Version      = "0.3.0"
	BIDSVersion  = "1.8.0"
)

// DatasetDescription mirrors the dataset_description.json record at a
// dataset root.
type DatasetDescription struct {
	Name        string        `json:"Name"`
	BIDSVersion string        `json:"BIDSVersion"`
	GeneratedBy []GeneratedBy `json:"GeneratedBy,omitempty"`
	HowToAck    string        `json:"HowToAcknowledge,omitempty"`
	License     string        `json:"License,omitempty"`
	DatasetType string        `json:"DatasetType,omitempty"`
	Authors     []string      `json:"Authors,omitempty"`
}

// GeneratedBy identifies one pipeline that contributed to a derivative
// dataset.
type GeneratedBy struct {
	Name    string `json:"Name"`
	Version string `json:"Version,omitempty"`
	CodeURL string `json:"CodeURL,omitempty"`
}

// ReadDatasetDescription loads the dataset_description.json under root.
// A missing file yields a record named "Unknown" rather than an error, since
// raw datasets in the wild frequently lack one.
func ReadDatasetDescription(root string) DatasetDescription {
	desc := DatasetDescription{Name: "Unknown"}
	raw, err := os.ReadFile(filepath.Join(root, "dataset_description.json"))
	if err != nil {
		return desc
	}
	if err := json.Unmarshal(raw, &desc); err != nil {
		return DatasetDescription{Name: "Unknown"}
	}
	if desc.Name == "" {
		desc.Name = "Unknown"
	}
	return desc
}

// WriteDatasetDescription writes the derivative dataset_description.json at
// outputRoot, naming the source dataset it was derived from. The record is
// regenerated deterministically from its inputs, so rewriting it over an
// existing copy is always safe.
func WriteDatasetDescription(outputRoot, sourceName string) error {
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return fmt.Errorf("creating output root: %w", err)
	}

	desc := DatasetDescription{
		Name: fmt.Sprintf(
			"petdeface - PET and Anatomical Defacing workflow: "+
				"PET Defaced Version of BIDS Dataset `%s`", sourceName),
		BIDSVersion: BIDSVersion,
		GeneratedBy: []GeneratedBy{
			{
				Name:    "PET Deface",
				Version: Version,
				CodeURL: "https://github.com/openneuropet/petdeface",
			},
		},
		HowToAck: "This workflow uses FreeSurfer: `Fischl, B., FreeSurfer. Neuroimage, 2012. 62(2): p. 774-8.`," +
			"and the MiDeFace package developed by Doug Greve: `https://surfer.nmr.mgh.harvard.edu/fswiki/MiDeFace`",
		License: "CCBY",
	}

	raw, err := json.MarshalIndent(desc, "", "    ")
	if err != nil {
		return err
	}
	path := filepath.Join(outputRoot, "dataset_description.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing dataset description: %w", err)
	}
	return nil
}
