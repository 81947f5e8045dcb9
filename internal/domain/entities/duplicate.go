package entities

import "time"

// DetectionMethod identifies one of the independent duplicate detections.
type DetectionMethod string

const (
	MethodExactName DetectionMethod = "exact_name"
	MethodPhone     DetectionMethod = "phone"
	MethodWebsite   DetectionMethod = "website"
	MethodEmail     DetectionMethod = "email"
	MethodAddress   DetectionMethod = "address"
	MethodFuzzyName DetectionMethod = "fuzzy_name"
	MethodContact   DetectionMethod = "contact"
)

// ConfidenceTier orders detection methods for human review. It never changes
// what a detection finds.
type ConfidenceTier int

const (
	TierHigh ConfidenceTier = iota + 1
	TierMedium
	TierLow
)

// String returns the tier label.
func (t ConfidenceTier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return "unknown"
	}
}

// DetectionMethods lists every method in report order.
var DetectionMethods = []DetectionMethod{
	MethodExactName,
	MethodPhone,
	MethodWebsite,
	MethodEmail,
	MethodAddress,
	MethodFuzzyName,
	MethodContact,
}

// Tier returns the review tier of the method.
func (m DetectionMethod) Tier() ConfidenceTier {
	switch m {
	case MethodExactName, MethodPhone, MethodEmail, MethodWebsite:
		return TierHigh
	case MethodAddress, MethodContact:
		return TierMedium
	default:
		return TierLow
	}
}

// DuplicateGroup is a normalized key shared by two or more records.
type DuplicateGroup struct {
	Key     string   `json:"key"`
	Records []Record `json:"records"`
}

// IDs returns the record ids of the group in order.
func (g DuplicateGroup) IDs() []string {
	ids := make([]string, len(g.Records))
	for i := range g.Records {
		ids[i] = g.Records[i].ID
	}
	return ids
}

// FuzzyPair is two records whose normalized names are similar.
type FuzzyPair struct {
	First  Record  `json:"first"`
	Second Record  `json:"second"`
	Score  float64 `json:"score"`
}

// ContactPair is two records sharing a contact channel.
type ContactPair struct {
	First        Record `json:"first"`
	Second       Record `json:"second"`
	MatchedField string `json:"matched_field"`
}

// ReportCounts holds the number of groups or pairs found per method.
type ReportCounts struct {
	ExactName int `json:"exact_name"`
	Phone     int `json:"phone"`
	Website   int `json:"website"`
	Email     int `json:"email"`
	Address   int `json:"address"`
	FuzzyName int `json:"fuzzy_name"`
	Contact   int `json:"contact"`
}

// Total returns the sum over all methods.
func (c ReportCounts) Total() int {
	return c.ExactName + c.Phone + c.Website + c.Email + c.Address + c.FuzzyName + c.Contact
}

// For returns the count of a single method.
func (c ReportCounts) For(m DetectionMethod) int {
	switch m {
	case MethodExactName:
		return c.ExactName
	case MethodPhone:
		return c.Phone
	case MethodWebsite:
		return c.Website
	case MethodEmail:
		return c.Email
	case MethodAddress:
		return c.Address
	case MethodFuzzyName:
		return c.FuzzyName
	case MethodContact:
		return c.Contact
	default:
		return 0
	}
}

// DuplicateReport is the result of one detection pass, grouped by method.
type DuplicateReport struct {
	ExactName      []DuplicateGroup `json:"exact_name"`
	Phone          []DuplicateGroup `json:"phone"`
	Website        []DuplicateGroup `json:"website"`
	Email          []DuplicateGroup `json:"email"`
	Address        []DuplicateGroup `json:"address"`
	FuzzyName      []FuzzyPair      `json:"fuzzy_name"`
	Contact        []ContactPair    `json:"contact"`
	Counts         ReportCounts     `json:"counts"`
	TotalRecords   int              `json:"total_records"`
	FuzzyThreshold float64          `json:"fuzzy_threshold"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// Groups returns the key groupings produced by a grouping method.
func (r *DuplicateReport) Groups(m DetectionMethod) []DuplicateGroup {
	switch m {
	case MethodExactName:
		return r.ExactName
	case MethodPhone:
		return r.Phone
	case MethodWebsite:
		return r.Website
	case MethodEmail:
		return r.Email
	case MethodAddress:
		return r.Address
	default:
		return nil
	}
}

// ReviewOrder lists the methods that found something, highest tier first.
func (r *DuplicateReport) ReviewOrder() []DetectionMethod {
	order := make([]DetectionMethod, 0, len(DetectionMethods))
	for _, tier := range []ConfidenceTier{TierHigh, TierMedium, TierLow} {
		for _, m := range DetectionMethods {
			if m.Tier() == tier && r.Counts.For(m) > 0 {
				order = append(order, m)
			}
		}
	}
	return order
}
