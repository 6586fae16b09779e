package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

var (
	// ErrArtifact is returned when a model artifact cannot be loaded.
	ErrArtifact = errors.New("invalid model artifact")
	// ErrFeatureCount is returned when a vector has the wrong width.
	ErrFeatureCount = errors.New("feature vector dimension mismatch")
	// ErrMalformedVector is returned for NaN or infinite feature values.
	ErrMalformedVector = errors.New("malformed feature vector")
)

// Node is one node of an exported decision tree. Leaves carry the class
// distribution in Value; split nodes send x[Feature] <= Threshold left.
type Node struct {
	Leaf      bool      `json:"leaf,omitempty"`
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      int       `json:"left,omitempty"`
	Right     int       `json:"right,omitempty"`
	Value     []float64 `json:"value,omitempty"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a tree ensemble exported from the training pipeline.
type Forest struct {
	Name     string   `json:"name"`
	Features []string `json:"features"`
	Classes  []string `json:"classes"`
	Trees    []Tree   `json:"trees"`
}

// LoadForest reads and validates an artifact from path.
func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrArtifact, path, err)
	}

	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrArtifact, path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

// Validate checks that the artifact matches the feature schema and that
// every tree is well formed.
func (f *Forest) Validate() error {
	if len(f.Features) != FeatureCount {
		return fmt.Errorf("%w: expected %d features, got %d", ErrArtifact, FeatureCount, len(f.Features))
	}
	for i, name := range f.Features {
		if name != FeatureNames[i] {
			return fmt.Errorf("%w: feature %d is %q, expected %q", ErrArtifact, i, name, FeatureNames[i])
		}
	}
	if len(f.Classes) < 2 {
		return fmt.Errorf("%w: need at least 2 classes, got %d", ErrArtifact, len(f.Classes))
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("%w: no trees", ErrArtifact)
	}

	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d is empty", ErrArtifact, ti)
		}
		for ni, n := range t.Nodes {
			if n.Leaf {
				if len(n.Value) != len(f.Classes) {
					return fmt.Errorf("%w: tree %d node %d has %d values for %d classes",
						ErrArtifact, ti, ni, len(n.Value), len(f.Classes))
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= FeatureCount {
				return fmt.Errorf("%w: tree %d node %d splits on feature %d", ErrArtifact, ti, ni, n.Feature)
			}
			// children must point forward so traversal always terminates
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("%w: tree %d node %d has invalid children", ErrArtifact, ti, ni)
			}
		}
	}
	return nil
}

// Predict returns the class label with the highest averaged probability.
// Ties resolve to the first class in Classes order.
func (f *Forest) Predict(v FeatureVector) (string, error) {
	if len(v) != FeatureCount {
		return "", fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(v), FeatureCount)
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", fmt.Errorf("%w: %s is %v", ErrMalformedVector, FeatureNames[i], x)
		}
	}

	proba := make([]float64, len(f.Classes))
	for _, t := range f.Trees {
		leaf := t.leaf(v)
		var total float64
		for _, c := range leaf.Value {
			total += c
		}
		if total <= 0 {
			continue
		}
		for i, c := range leaf.Value {
			proba[i] += c / total
		}
	}

	best := 0
	for i := 1; i < len(proba); i++ {
		if proba[i] > proba[best] {
			best = i
		}
	}
	return f.Classes[best], nil
}

func (t Tree) leaf(v FeatureVector) Node {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n
		}
		if v[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}
