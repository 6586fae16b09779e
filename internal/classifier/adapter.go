package classifier

import (
	"fmt"

	"anomaly-monitor/internal/models"
)

// Model is a loaded classifier over FeatureVector.
type Model interface {
	Predict(v FeatureVector) (string, error)
}

// Classifier is what the monitoring loop consumes.
type Classifier interface {
	Classify(v FeatureVector) (models.ClassificationResult, error)
}

var multiclassVocabulary = map[string]bool{
	models.ClassNormal: true,
	models.ClassDOS:    true,
	models.ClassProbe:  true,
	models.ClassR2L:    true,
	models.ClassU2R:    true,
}

// Fallback is returned alongside any inference error.
var Fallback = models.ClassificationResult{Binary: models.LabelNormal, Multiclass: models.ClassUnknown}

// Adapter runs the binary and multiclass models independently on the same
// vector.
type Adapter struct {
	binary     Model
	multiclass Model
}

func NewAdapter(binary, multiclass Model) *Adapter {
	return &Adapter{binary: binary, multiclass: multiclass}
}

// LoadAdapter loads both artifacts. Any error here should stop the process
// before the first tick.
func LoadAdapter(binaryPath, multiclassPath string) (*Adapter, error) {
	bin, err := LoadForest(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("load binary model: %w", err)
	}
	for _, c := range bin.Classes {
		if c != "0" && c != "1" {
			return nil, fmt.Errorf("load binary model: %w: class %q is not 0/1", ErrArtifact, c)
		}
	}

	multi, err := LoadForest(multiclassPath)
	if err != nil {
		return nil, fmt.Errorf("load multiclass model: %w", err)
	}
	for _, c := range multi.Classes {
		if !multiclassVocabulary[c] {
			return nil, fmt.Errorf("load multiclass model: %w: unknown class %q", ErrArtifact, c)
		}
	}

	return NewAdapter(bin, multi), nil
}

// Classify never panics on bad input; on failure it returns Fallback and
// the error so the caller can flag the entry.
func (a *Adapter) Classify(v FeatureVector) (res models.ClassificationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = Fallback, fmt.Errorf("classifier panic: %v", r)
		}
	}()

	binLabel, err := a.binary.Predict(v)
	if err != nil {
		return Fallback, fmt.Errorf("binary inference: %w", err)
	}
	class, err := a.multiclass.Predict(v)
	if err != nil {
		return Fallback, fmt.Errorf("multiclass inference: %w", err)
	}

	res = models.ClassificationResult{Binary: models.LabelNormal, Multiclass: class}
	switch binLabel {
	case "0":
	case "1":
		res.Binary = models.LabelAttack
	default:
		return Fallback, fmt.Errorf("binary inference: unexpected label %q", binLabel)
	}
	if !multiclassVocabulary[class] {
		return Fallback, fmt.Errorf("multiclass inference: unexpected label %q", class)
	}
	return res, nil
}

// Disabled stands in when a profile runs without models.
type Disabled struct{}

func (Disabled) Classify(FeatureVector) (models.ClassificationResult, error) {
	return models.ClassificationResult{Binary: models.LabelNormal, Multiclass: models.ClassNormal}, nil
}
