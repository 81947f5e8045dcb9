package entities

// MergeField names a scalar attribute that participates in a merge.
type MergeField string

// Mergeable scalar fields.
const (
	FieldPhone             MergeField = "phone"
	FieldEmail             MergeField = "email"
	FieldWebsite           MergeField = "website"
	FieldDescription       MergeField = "description"
	FieldNotes             MergeField = "notes"
	FieldHours             MergeField = "hours"
	FieldEligibility       MergeField = "eligibility"
	FieldPopulationsServed MergeField = "populations_served"
	FieldInsurance         MergeField = "insurance"
	FieldCost              MergeField = "cost"
	FieldLanguages         MergeField = "languages"
	FieldCapacity          MergeField = "capacity"

	// FieldServiceTypes is the tag field; it is merged by union, not first-non-empty.
	FieldServiceTypes MergeField = "service_types"
)

// MergeableFields is the closed, ordered set of scalar fields considered during a merge.
var MergeableFields = []MergeField{
	FieldPhone,
	FieldEmail,
	FieldWebsite,
	FieldDescription,
	FieldNotes,
	FieldHours,
	FieldEligibility,
	FieldPopulationsServed,
	FieldInsurance,
	FieldCost,
	FieldLanguages,
	FieldCapacity,
}

// MergedNotesMarker prefixes notes absorbed from duplicates.
const MergedNotesMarker = "MERGED INFO: "

// MergedNotesSeparator joins the notes of several duplicates.
const MergedNotesSeparator = " | "

// FieldChange records the before and after value of a field on the primary.
type FieldChange struct {
	Old string `json:"old"`
	New string `json:"new"`
	// SourceID is the record the new value was taken from. Empty for notes
	// and tags, which can draw on several records.
	SourceID string `json:"source_id,omitempty"`
}

// MergeResult describes the outcome of a merge.
type MergeResult struct {
	PrimaryID     string                     `json:"primary_id"`
	ArchivedIDs   []string                   `json:"archived_ids"`
	FieldsChanged map[MergeField]FieldChange `json:"fields_changed"`
	Summary       string                     `json:"summary"`
	// UnresolvedIDs lists requested duplicate ids that did not resolve.
	UnresolvedIDs []string `json:"unresolved_ids,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	DryRun        bool     `json:"dry_run"`
}
