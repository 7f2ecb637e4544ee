package checkpoint

import "time"

// Version is the current checkpoint format version. Loading a file written
// with any other version fails loudly instead of resuming from a foreign
// state.
const Version = "1.0"

// RunConfig is the snapshot of the run flags stored alongside the progress
// records. A checkpoint may only be resumed by a run with matching flags.
type RunConfig struct {
	ConvertOnly bool   `json:"convert"`
	Reprocess   bool   `json:"reprocess"`
	Replace     bool   `json:"replace"`
	Download    bool   `json:"download"`
	Folder      string `json:"folder"`

	// LastProcessed is the continuous-mode watermark: data ending at or
	// before this time has already been handled by an earlier run. It is
	// the one field allowed to differ between the checkpoint and the
	// resuming run.
	LastProcessed time.Time `json:"last_processed"`
}

// Matches reports whether two run configurations describe the same run.
// The watermark is excluded: it legitimately moves between invocations.
func (c RunConfig) Matches(other RunConfig) bool {
	return c.ConvertOnly == other.ConvertOnly &&
		c.Reprocess == other.Reprocess &&
		c.Replace == other.Replace &&
		c.Download == other.Download &&
		c.Folder == other.Folder
}

// Record tracks one measurement's progress through the pipeline stages.
type Record struct {
	SystemID      string `json:"system_id,omitempty"`
	MeasurementID string `json:"scc_measurement_id,omitempty"`
	NetCDFPath    string `json:"netcdf_path,omitempty"`

	Converted    bool `json:"converted"`
	AlreadyOnSCC bool `json:"already_on_scc"`
	Uploaded     bool `json:"uploaded"`
	Downloaded   bool `json:"downloaded"`

	Result string `json:"result,omitempty"`
}

// State is the full persisted checkpoint: the run configuration and one
// record per measurement, keyed by the measurement's run-local ordinal.
type State struct {
	Version      string          `json:"version"`
	Config       RunConfig       `json:"config"`
	Measurements map[int]*Record `json:"measurements"`
	SavedAt      time.Time       `json:"saved_at"`
}
