package model

// DocumentProgress is the latest document-generation snapshot. Each
// server event fully supersedes the previous snapshot (last-write-wins);
// Sequence, when supplied by the server, lets the client drop stale
// snapshots.
type DocumentProgress struct {
	Current         int     `json:"current"`
	Total           int     `json:"total"`
	Percent         int     `json:"percent"`
	CurrentDocument string  `json:"current_document,omitempty"`
	QualityScore    float64 `json:"quality_score,omitempty"`
	Sequence        int64   `json:"sequence,omitempty"`
}

// FrameworkAlternative is a non-chosen framework candidate.
type FrameworkAlternative struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// FrameworkResult is the outcome of the framework-analysis phase.
type FrameworkResult struct {
	Framework    string                 `json:"framework"`
	Confidence   string                 `json:"confidence"`
	Score        float64                `json:"score"`
	Reasoning    string                 `json:"reasoning,omitempty"`
	Alternatives []FrameworkAlternative `json:"alternatives,omitempty"`
}

// StructureResult is the outcome of the structure-generation phase.
type StructureResult struct {
	DocumentCount int      `json:"document_count"`
	FolderCount   int      `json:"folder_count"`
	Tree          []string `json:"tree,omitempty"`
}

// FinalizationProgress tracks package-finalization milestones.
type FinalizationProgress struct {
	ManifestCreated bool   `json:"manifest_created"`
	ZipCreated      bool   `json:"zip_created"`
	ZipName         string `json:"zip_name,omitempty"`
	ZipSizeBytes    int64  `json:"zip_size_bytes,omitempty"`
	DownloadURL     string `json:"download_url,omitempty"`
}

// QuotaStatus reflects plan usage as last reported by the server.
// Enforcement is server-side; this is display state.
type QuotaStatus struct {
	PlanName       string `json:"plan_name,omitempty"`
	DocumentsUsed  int    `json:"documents_used"`
	DocumentsLimit int    `json:"documents_limit"`
	PackagesUsed   int    `json:"packages_used"`
	PackagesLimit  int    `json:"packages_limit"`
}

// DocumentSelectionRequest is emitted by the server when the plan quota
// is smaller than the generated document count. It lives until a
// selection response arrives or the session is reset.
type DocumentSelectionRequest struct {
	Documents      []string `json:"documents"`
	MaxSelectable  int      `json:"max_selectable"`
	RemainingQuota int      `json:"remaining_quota"`
}

// ValidateSelection checks a candidate selection against the request
// bounds: at least one entry, no more than MaxSelectable.
func (r *DocumentSelectionRequest) ValidateSelection(selected []string) error {
	if len(selected) == 0 {
		return ErrSelectionEmpty
	}
	if r.MaxSelectable > 0 && len(selected) > r.MaxSelectable {
		return ErrSelectionLimit
	}
	return nil
}
