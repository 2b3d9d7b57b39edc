package models

import "sort"

// FeatureVector maps feature name -> value for one entity at one instant.
// The key set is fixed by the extractor schema: missing source data is filled
// with documented defaults, never dropped.
type FeatureVector map[string]float64

// Keys returns the feature names in sorted order.
func (v FeatureVector) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a copy of the vector.
func (v FeatureVector) Clone() FeatureVector {
	out := make(FeatureVector, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Merge copies all entries of other into v. Sub-extractors use disjoint
// namespaced keys, so collisions do not occur in practice.
func (v FeatureVector) Merge(other FeatureVector) {
	for k, val := range other {
		v[k] = val
	}
}

// TrainingExample pairs one feature vector with its label on the [0,1] scale.
// Transient: exists only for the duration of one retraining run.
type TrainingExample struct {
	EntityID int64
	Vector   FeatureVector
	Label    float64
}
