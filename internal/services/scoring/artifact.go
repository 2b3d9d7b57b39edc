package scoring

import (
    "encoding/json"
    "errors"
    "fmt"
    "sync"
    "time"
)

const (
    defaultEstimators   = 100
    defaultMaxDepth     = 6
    defaultLearningRate = 0.1
    defaultSeed         = 42

    // baselineRaw is the raw output of the untrained default artifact,
    // the midpoint of the [0,1] label scale.
    baselineRaw = 0.5

    initialVersion = "v1.0.0"
)

// Artifact is one immutable, versioned model snapshot: the bound feature
// schema, the fitted scaler and the tree ensemble. Artifacts are swapped
// whole, never mutated after construction, so readers need no locking.
type Artifact struct {
    Version      string          `json:"version"`
    CreatedAt    time.Time       `json:"created_at"`
    FeatureNames []string        `json:"feature_names"`
    Scaler       *StandardScaler `json:"scaler"`
    Model        *gbtModel       `json:"model"`

    expOnce sync.Once
    exp     *pathExplainer
}

// explainer returns the lazily built path explainer for this artifact.
// Caching per artifact means a swap invalidates it automatically.
func (a *Artifact) explainer() *pathExplainer {
    a.expOnce.Do(func() {
        a.exp = newPathExplainer(a.Model)
    })
    return a.exp
}

// Encode serializes the artifact to its persisted JSON document form.
func (a *Artifact) Encode() ([]byte, error) {
    doc, err := json.Marshal(a)
    if err != nil {
        return nil, fmt.Errorf("encode artifact %s: %w", a.Version, err)
    }
    return doc, nil
}

// DecodeArtifact parses and validates a persisted artifact document.
func DecodeArtifact(doc []byte) (*Artifact, error) {
    var a Artifact
    if err := json.Unmarshal(doc, &a); err != nil {
        return nil, fmt.Errorf("decode artifact: %w", err)
    }
    if err := a.validate(); err != nil {
        return nil, fmt.Errorf("invalid artifact: %w", err)
    }
    return &a, nil
}

func (a *Artifact) validate() error {
    if a.Version == "" {
        return errors.New("missing version")
    }
    if len(a.FeatureNames) == 0 {
        return errors.New("missing feature names")
    }
    if a.Scaler == nil || a.Model == nil {
        return errors.New("missing scaler or model")
    }
    if err := a.Scaler.validate(len(a.FeatureNames)); err != nil {
        return err
    }
    for ti := range a.Model.Trees {
        nodes := a.Model.Trees[ti].Nodes
        if len(nodes) == 0 {
            return fmt.Errorf("tree %d has no nodes", ti)
        }
        for ni, node := range nodes {
            if node.Left == -1 {
                continue
            }
            if node.Left <= ni || node.Left >= len(nodes) || node.Right <= ni || node.Right >= len(nodes) {
                return fmt.Errorf("tree %d node %d has out-of-range children", ti, ni)
            }
            if node.Feature < 0 || node.Feature >= len(a.FeatureNames) {
                return fmt.Errorf("tree %d node %d splits on unknown feature %d", ti, ni, node.Feature)
            }
        }
    }
    return nil
}

// DefaultArtifact builds the untrained bootstrap artifact: identity scaling
// and an empty ensemble that always predicts the label midpoint. It keeps
// the scoring path structurally valid before the first retraining run.
func DefaultArtifact(featureNames []string) *Artifact {
    names := make([]string, len(featureNames))
    copy(names, featureNames)
    return &Artifact{
        Version:      initialVersion,
        CreatedAt:    time.Now().UTC(),
        FeatureNames: names,
        Scaler:       identityScaler(len(names)),
        Model: &gbtModel{
            NEstimators:  defaultEstimators,
            MaxDepth:     defaultMaxDepth,
            LearningRate: defaultLearningRate,
            Seed:         defaultSeed,
            Base:         baselineRaw,
        },
    }
}
