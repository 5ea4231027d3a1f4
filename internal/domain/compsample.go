package domain

import "time"

// CompSample is one comparable-listing price observed while estimating a
// candidate's market value. Samples are appended to analytics storage so
// estimator behavior can be audited after the fact.
type CompSample struct {
	RunID      string // scan run identifier
	ItemID     string // candidate listing the comps were fetched for
	CompQuery  string // the reduced query sent to the fixed-price search
	Price      float64
	ObservedAt time.Time
}
