package model

import (
	"encoding/json"
	"fmt"
)

// ColdDiff describes the transition between two target graph snapshots as three
// pairwise-disjoint label sets. A ColdDiff is immutable once constructed.
type ColdDiff struct {
	added   LabelSet
	removed LabelSet
	changed LabelSet
}

// NewColdDiff builds a diff and normalizes it to disjoint sets.
// Precedence when a label appears in more than one input: removed > added > changed.
func NewColdDiff(added, removed, changed []Label) ColdDiff {
	d := ColdDiff{
		added:   make(LabelSet),
		removed: NewLabelSet(removed...),
		changed: make(LabelSet),
	}
	for _, l := range added {
		if !d.removed.Has(l) {
			d.added.Add(l)
		}
	}
	for _, l := range changed {
		if !d.removed.Has(l) && !d.added.Has(l) {
			d.changed.Add(l)
		}
	}
	return d
}

// MergeDiffs combines several diffs into one, applying the same precedence as NewColdDiff.
func MergeDiffs(diffs ...ColdDiff) ColdDiff {
	var added, removed, changed []Label
	for _, d := range diffs {
		added = append(added, d.Added()...)
		removed = append(removed, d.Removed()...)
		changed = append(changed, d.Changed()...)
	}
	return NewColdDiff(added, removed, changed)
}

// Added returns the added labels in lexical order.
func (d ColdDiff) Added() []Label { return d.added.Sorted() }

// Removed returns the removed labels in lexical order.
func (d ColdDiff) Removed() []Label { return d.removed.Sorted() }

// Changed returns the changed labels in lexical order.
func (d ColdDiff) Changed() []Label { return d.changed.Sorted() }

// IsAdded reports whether l is in the added set.
func (d ColdDiff) IsAdded(l Label) bool { return d.added.Has(l) }

// IsRemoved reports whether l is in the removed set.
func (d ColdDiff) IsRemoved(l Label) bool { return d.removed.Has(l) }

// IsChanged reports whether l is in the changed set.
func (d ColdDiff) IsChanged(l Label) bool { return d.changed.Has(l) }

// Len returns the total number of labels across all three sets.
func (d ColdDiff) Len() int {
	return d.added.Len() + d.removed.Len() + d.changed.Len()
}

// IsEmpty reports whether all three sets are empty.
func (d ColdDiff) IsEmpty() bool {
	return d.Len() == 0
}

func (d ColdDiff) String() string {
	return fmt.Sprintf("added=%d removed=%d changed=%d", d.added.Len(), d.removed.Len(), d.changed.Len())
}

type coldDiffJSON struct {
	Added   []Label `json:"added"`
	Removed []Label `json:"removed"`
	Changed []Label `json:"changed"`
}

func (d ColdDiff) MarshalJSON() ([]byte, error) {
	return json.Marshal(coldDiffJSON{
		Added:   d.Added(),
		Removed: d.Removed(),
		Changed: d.Changed(),
	})
}

func (d *ColdDiff) UnmarshalJSON(data []byte) error {
	var raw coldDiffJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = NewColdDiff(raw.Added, raw.Removed, raw.Changed)
	return nil
}
