package tools

// Mideface builds the defacing invocation: given an input volume it produces
// a defaced copy and a reusable face-exclusion mask.
type Mideface struct {
	// InFile is the volume to deface.
	InFile string
	// OutFile receives the defaced volume.
	OutFile string
	// FaceMask receives the face-exclusion mask.
	FaceMask string
	// MaskOnly computes the mask without publishing a defaced volume.
	// Used for synthetic anatomicals that carry no real facial identity.
	MaskOnly bool
	// Pics enables before/after preview images.
	Pics bool
	// OutDir, when set, is passed through so previews land somewhere known.
	OutDir string
}

// Command assembles the argv list and declared outputs.
func (m Mideface) Command() Command {
	args := []string{"--i", m.InFile, "--facemask", m.FaceMask}
	outputs := []string{m.FaceMask}
	if !m.MaskOnly {
		args = append(args, "--o", m.OutFile)
		outputs = append(outputs, m.OutFile)
	}
	if m.OutDir != "" {
		args = append(args, "--odir", m.OutDir)
	}
	if m.Pics {
		args = append(args, "--pics")
	} else {
		args = append(args, "--no-pics")
	}
	return Command{Name: binMideface, Args: args, Outputs: outputs}
}

// ApplyMideface builds the mask-application invocation: an already computed
// face mask plus a registration transform are applied to a co-registered
// volume, producing its defaced counterpart.
type ApplyMideface struct {
	// InFile is the volume to deface, typically the original 4-D PET
	// series.
	InFile string
	// FaceMask is the face-exclusion mask from the anatomical deface step.
	FaceMask string
	// LTAFile is the registration transform mapping InFile into the mask's
	// space.
	LTAFile string
	// OutFile receives the defaced volume.
	OutFile string
}

// Command assembles the argv list and declared outputs. Argument order is
// positional and fixed by the tool.
func (a ApplyMideface) Command() Command {
	return Command{
		Name:    binMideface,
		Args:    []string{"--apply", a.InFile, a.FaceMask, a.LTAFile, a.OutFile},
		Outputs: []string{a.OutFile},
	}
}

// MRICoreg builds the rigid registration invocation: a moving volume is
// registered to a reference, producing an LTA transform.
type MRICoreg struct {
	// Source is the moving volume.
	Source string
	// Reference is the fixed volume registered against.
	Reference string
	// OutLTA receives the computed transform.
	OutLTA string
}

// Command assembles the argv list and declared outputs.
func (c MRICoreg) Command() Command {
	return Command{
		Name: binMRICoreg,
		Args: []string{
			"--mov", c.Source,
			"--ref", c.Reference,
			"--reg", c.OutLTA,
		},
		Outputs: []string{c.OutLTA},
	}
}
