// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package grounding enforces evidence on extracted items. Validate strips
// malformed evidence ids, nulls unsupported values, classifies coverage and
// decides whether the item is admitted.
package grounding

import (
	"regexp"

	"github.com/google/uuid"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

var blockIDRe = regexp.MustCompile(`^b_[0-9a-f]+$|^b_\d+$`)

// Drop reasons reported in Decision.Reason.
const (
	ReasonNoGrounding = "no_grounding"
	ReasonCoverageL0  = "coverage_l0"
)

// Missing field names.
const (
	MissingLabel        = "label"
	MissingAssayReadout = "assay_or_readout"
	MissingResults      = "results"
	MissingProtocol     = "protocol"
	MissingSummary      = "summary"
	MissingDataset      = "dataset"
	MissingResource     = "resource"
)

// Decision is the outcome of Validate. A dropped item is not an error; it is
// how ungrounded output is filtered.
type Decision struct {
	Drop bool

	// Reason is ReasonNoGrounding or ReasonCoverageL0 when Drop is set.
	Reason string

	// StrippedIDs counts evidence entries removed for being malformed.
	StrippedIDs int

	Coverage types.CoverageLevel
	Missing  []string
}

// ValidBlockID reports whether id is "b_" followed by lowercase hex or
// decimal digits.
func ValidBlockID(id string) bool {
	return blockIDRe.MatchString(id)
}

// Validate returns a cleaned copy of item and the admission decision.
//
// Every FieldValue keeps only well-formed evidence ids, and a value left
// without evidence becomes null. The grounding evidence list is cleaned the
// same way; if it ends up empty the item is dropped. Otherwise coverage is
// classified and an L0_candidate item is dropped too. The item id is
// replaced by a fresh UUID unless it already is one, and an empty kind
// becomes "claim".
func Validate(item types.Item) (types.Item, Decision) {
	it := clone(item)
	var d Decision

	it.ID = EnsureID(it.ID)
	if it.Kind == "" {
		it.Kind = types.ItemClaim
	}

	for _, fv := range it.FieldValues() {
		kept := sanitize(fv.Evidence, &d.StrippedIDs)
		fv.Evidence = kept
		if len(kept) == 0 {
			fv.Value = nil
		}
	}
	it.Grounding.EvidenceBlockIDs = sanitize(it.Grounding.EvidenceBlockIDs, &d.StrippedIDs)

	if len(it.Grounding.EvidenceBlockIDs) == 0 {
		d.Drop = true
		d.Reason = ReasonNoGrounding
		return it, d
	}

	missing, level := ClassifyCoverage(&it, it.Kind)
	d.Missing = missing
	d.Coverage = level
	it.Missing = missing
	it.Grounding.CoverageLevel = level
	it.Grounding.MissingCritical = missing
	if level == types.CoverageCandidate {
		d.Drop = true
		d.Reason = ReasonCoverageL0
	}
	return it, d
}

// EnsureID returns id in canonical form when it parses as a UUID and a new
// random UUID otherwise.
func EnsureID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return uuid.NewString()
}

// ClassifyCoverage computes the missing critical fields of it for kind and
// the resulting coverage level.
func ClassifyCoverage(it *types.Item, kind types.ItemKind) ([]string, types.CoverageLevel) {
	missing := []string{}
	if !it.Label.HasEvidence() {
		missing = append(missing, MissingLabel)
	}

	switch kind {
	case types.ItemExperiment:
		if !hasAssayOrReadout(it) {
			missing = append(missing, MissingAssayReadout)
		}
		if !hasResults(it) {
			missing = append(missing, MissingResults)
		}
	case types.ItemMethod:
		if !hasProtocol(it) {
			missing = append(missing, MissingProtocol)
		}
	case types.ItemClaim:
		if !it.Summary.HasEvidence() {
			missing = append(missing, MissingSummary)
		}
	case types.ItemDataset:
		if !it.Label.HasEvidence() {
			missing = append(missing, MissingDataset)
		}
	case types.ItemResource:
		if !it.Label.HasEvidence() {
			missing = append(missing, MissingResource)
		}
	case types.ItemNegativeResult:
		if !hasResults(it) {
			missing = append(missing, MissingResults)
		}
	}
	return missing, CoverageFor(kind, missing)
}

// CoverageFor maps a missing-field list to a coverage level. A missing label
// is always L0_candidate. A method needs its protocol for L1_protocol; an
// experiment is L3_results with results and L2_design without. Every other
// kind is L1_protocol.
func CoverageFor(kind types.ItemKind, missing []string) types.CoverageLevel {
	if contains(missing, MissingLabel) {
		return types.CoverageCandidate
	}
	switch kind {
	case types.ItemMethod:
		if contains(missing, MissingProtocol) {
			return types.CoverageCandidate
		}
		return types.CoverageProtocol
	case types.ItemExperiment:
		if contains(missing, MissingResults) {
			return types.CoverageDesign
		}
		return types.CoverageResults
	}
	return types.CoverageProtocol
}

func sanitize(ids []string, stripped *int) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !ValidBlockID(id) {
			*stripped++
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func anyEvidence(fvs []types.FieldValue) bool {
	for _, fv := range fvs {
		if fv.HasEvidence() {
			return true
		}
	}
	return false
}

func metricHasEvidence(m types.Metric) bool {
	return m.Name.HasEvidence() || m.Value.HasEvidence() || m.Unit.HasEvidence() || m.Conditions.HasEvidence()
}

func hasMetric(it *types.Item) bool {
	for _, m := range it.Results.Metrics {
		if metricHasEvidence(m) {
			return true
		}
	}
	return false
}

func hasAssayOrReadout(it *types.Item) bool {
	return anyEvidence(it.Entities.Assays) || anyEvidence(it.Entities.Samples) || hasMetric(it)
}

func hasResults(it *types.Item) bool {
	return hasMetric(it) || it.Results.Takeaway.HasEvidence()
}

func hasProtocol(it *types.Item) bool {
	for _, s := range it.Protocol.Steps {
		if s.Text.HasEvidence() {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
