package scoring

import (
    "context"
    "errors"
    "fmt"
    "math"
    "math/rand"
    "sort"
    "sync"
    "sync/atomic"
    "time"

    "CredPulse/internal/domain/models"
    "CredPulse/internal/domain/repository"
    domsvc "CredPulse/internal/domain/service"
    xlogger "CredPulse/pkg/logger"
)

var (
    // ErrNoModel is returned when no artifact is loaded at all.
    ErrNoModel = errors.New("scoring: no model artifact loaded")
    // ErrInsufficientTrainingData is returned by Retrain when the training
    // table is below the configured minimum. The previous artifact stays
    // active untouched.
    ErrInsufficientTrainingData = errors.New("scoring: insufficient training data")
)

const (
    defaultMinTrainingRows = 10
    defaultTolerance       = 0.1
    validationFraction     = 0.2

    scoreFloor = 300
    scoreSpan  = 550
)

// Engine holds the active model artifact and implements prediction and
// retraining over it. Reads go through an atomic pointer so concurrent
// scoring never blocks on a retraining run; Retrain builds the replacement
// aside and swaps it in whole.
type Engine struct {
    logger    *xlogger.Logger
    minRows   int
    tolerance float64

    active atomic.Pointer[Artifact]
    mu     sync.Mutex
}

type EngineOption func(*Engine)

// WithMinTrainingRows overrides the minimum training table size.
func WithMinTrainingRows(n int) EngineOption {
    return func(e *Engine) {
        if n > 0 {
            e.minRows = n
        }
    }
}

// WithTolerance overrides the evaluation tolerance on the [0,1] scale.
func WithTolerance(t float64) EngineOption {
    return func(e *Engine) {
        if t > 0 {
            e.tolerance = t
        }
    }
}

// WithEngineLogger attaches a logger.
func WithEngineLogger(l *xlogger.Logger) EngineOption {
    return func(e *Engine) { e.logger = l }
}

// NewEngine restores the newest persisted artifact from the store. An empty
// store is not an error: the engine starts on the default artifact bound to
// defaultFeatures, so scoring is available before the first retraining run.
// A present but unreadable artifact is logged and replaced by the default;
// the next retraining run persists a fresh one over it.
func NewEngine(ctx context.Context, store repository.ArtifactStore, defaultFeatures []string, opts ...EngineOption) (*Engine, error) {
    e := &Engine{
        minRows:   defaultMinTrainingRows,
        tolerance: defaultTolerance,
    }
    for _, opt := range opts {
        opt(e)
    }

    version, doc, err := store.LoadLatest(ctx)
    switch {
    case errors.Is(err, repository.ErrNotFound):
        e.active.Store(DefaultArtifact(defaultFeatures))
        e.info("no persisted model artifact, starting with default",
            xlogger.String("version", initialVersion),
            xlogger.Int("features", len(defaultFeatures)))
    case err != nil:
        return nil, fmt.Errorf("load latest artifact: %w", err)
    default:
        art, decErr := DecodeArtifact(doc)
        if decErr != nil {
            e.active.Store(DefaultArtifact(defaultFeatures))
            e.warn("persisted artifact unreadable, starting with default",
                xlogger.String("version", version),
                xlogger.Error(decErr))
            break
        }
        e.active.Store(art)
        e.info("model artifact restored",
            xlogger.String("version", art.Version),
            xlogger.Int("features", len(art.FeatureNames)),
            xlogger.Int("trees", len(art.Model.Trees)))
    }
    return e, nil
}

// Predict scores one feature vector against the active artifact. The vector
// is aligned to the artifact's bound schema first: features the artifact
// does not know are dropped, bound features the vector lacks read as 0.
func (e *Engine) Predict(vector models.FeatureVector, entityID int64) (*models.Prediction, error) {
    art := e.active.Load()
    if art == nil {
        return nil, ErrNoModel
    }

    raw := alignToSchema(vector, art.FeatureNames)
    scaled := art.Scaler.Transform(raw)

    out := art.Model.predict(scaled)
    if out < 0 {
        out = 0
    } else if out > 1 {
        out = 1
    }
    score := scoreFloor + out*scoreSpan

    attrs, degraded := attributions(art, raw, scaled)

    e.debug("score predicted",
        xlogger.Int64("entity_id", entityID),
        xlogger.Float64("score", score),
        xlogger.String("model_version", art.Version),
        xlogger.Bool("degraded", degraded))

    return &models.Prediction{
        Score:        score,
        Confidence:   confidenceFrom(scaled),
        ModelVersion: art.Version,
        Attributions: attrs,
        Degraded:     degraded,
    }, nil
}

// Retrain fits a replacement artifact on the training table and swaps it in.
// The feature schema is rebound to the sorted union of the example keys, the
// split and fit are seeded, and evaluation runs on the held-out fifth.
func (e *Engine) Retrain(examples []models.TrainingExample) (*models.EvaluationMetrics, error) {
    e.mu.Lock()
    defer e.mu.Unlock()

    if len(examples) < e.minRows {
        return nil, fmt.Errorf("%w: have %d rows, need %d", ErrInsufficientTrainingData, len(examples), e.minRows)
    }

    start := time.Now()
    names := boundFeatureNames(examples)

    x := make([][]float64, len(examples))
    y := make([]float64, len(examples))
    for i, ex := range examples {
        x[i] = alignToSchema(ex.Vector, names)
        y[i] = ex.Label
    }

    rng := rand.New(rand.NewSource(defaultSeed))
    perm := rng.Perm(len(examples))
    nVal := int(math.Ceil(validationFraction * float64(len(examples))))
    if nVal >= len(examples) {
        nVal = len(examples) - 1
    }
    valIdx := perm[:nVal]
    trainIdx := perm[nVal:]

    xTrain := pickRows(x, trainIdx)
    yTrain := pickLabels(y, trainIdx)

    scaler := fitScaler(xTrain)
    xTrainScaled := transformRows(scaler, xTrain)
    xValScaled := transformRows(scaler, pickRows(x, valIdx))
    yVal := pickLabels(y, valIdx)

    model := &gbtModel{
        NEstimators:  defaultEstimators,
        MaxDepth:     defaultMaxDepth,
        LearningRate: defaultLearningRate,
        Seed:         defaultSeed,
    }
    model.fit(xTrainScaled, yTrain)

    yPred := make([]float64, len(xValScaled))
    for i, row := range xValScaled {
        yPred[i] = model.predict(row)
    }
    ev := evaluate(yVal, yPred, e.tolerance)

    now := time.Now().UTC()
    version := nextVersion(e.ActiveVersion(), now)
    e.active.Store(&Artifact{
        Version:      version,
        CreatedAt:    now,
        FeatureNames: names,
        Scaler:       scaler,
        Model:        model,
    })

    e.info("model retrained",
        xlogger.String("version", version),
        xlogger.Int("n_train", len(trainIdx)),
        xlogger.Int("n_validation", len(valIdx)),
        xlogger.Float64("r2", ev.R2),
        xlogger.Float64("accuracy", ev.Accuracy),
        xlogger.Duration("took", time.Since(start)))

    return &models.EvaluationMetrics{
        ModelVersion: version,
        Timestamp:    now,
        Accuracy:     ev.Accuracy,
        Precision:    ev.Precision,
        Recall:       ev.Recall,
        F1:           ev.F1,
        MSE:          ev.MSE,
        R2:           ev.R2,
        NTrain:       len(trainIdx),
        NValidation:  len(valIdx),
    }, nil
}

// ExportActive serializes the active artifact for persistence.
func (e *Engine) ExportActive() (string, []byte, error) {
    art := e.active.Load()
    if art == nil {
        return "", nil, ErrNoModel
    }
    doc, err := art.Encode()
    if err != nil {
        return "", nil, err
    }
    return art.Version, doc, nil
}

// ActiveVersion reports the active artifact's version token.
func (e *Engine) ActiveVersion() string {
    art := e.active.Load()
    if art == nil {
        return ""
    }
    return art.Version
}

// attributions builds the per-feature explanation set for one prediction.
// With a trained ensemble the path explainer yields exact signed
// contributions; the untrained default artifact has no paths to walk, so
// the entries degrade to global importances with zero signed contribution.
func attributions(art *Artifact, raw, scaled []float64) ([]models.AttributionEntry, bool) {
    width := len(art.FeatureNames)
    entries := make([]models.AttributionEntry, width)

    if len(art.Model.Trees) == 0 {
        imp := art.Model.featureImportances(width)
        for i, name := range art.FeatureNames {
            entries[i] = models.AttributionEntry{
                FeatureName:  name,
                Importance:   imp[i],
                FeatureValue: raw[i],
            }
        }
        return entries, true
    }

    contribs := art.explainer().contributions(scaled, width)
    for i, name := range art.FeatureNames {
        entries[i] = models.AttributionEntry{
            FeatureName:        name,
            Importance:         math.Abs(contribs[i]),
            SignedContribution: contribs[i],
            FeatureValue:       raw[i],
        }
    }
    return entries, false
}

// confidenceFrom derives prediction confidence from the completeness of the
// scaled row: 75 plus up to 20 for the nonzero fraction, clamped to [50,95].
func confidenceFrom(scaled []float64) float64 {
    if len(scaled) == 0 {
        return 50
    }
    nonzero := 0
    for _, v := range scaled {
        if v != 0 {
            nonzero++
        }
    }
    c := 75 + 20*float64(nonzero)/float64(len(scaled))
    return math.Max(50, math.Min(95, c))
}

// boundFeatureNames returns the sorted union of feature keys across the
// training table. Sorting makes the bound schema deterministic regardless
// of map iteration or example order.
func boundFeatureNames(examples []models.TrainingExample) []string {
    set := make(map[string]struct{})
    for _, ex := range examples {
        for k := range ex.Vector {
            set[k] = struct{}{}
        }
    }
    names := make([]string, 0, len(set))
    for k := range set {
        names = append(names, k)
    }
    sort.Strings(names)
    return names
}

// alignToSchema projects a feature vector onto an ordered schema. Missing
// features read as 0, unknown features are dropped.
func alignToSchema(v models.FeatureVector, names []string) []float64 {
    row := make([]float64, len(names))
    for i, name := range names {
        row[i] = v[name]
    }
    return row
}

func pickRows(x [][]float64, idx []int) [][]float64 {
    out := make([][]float64, len(idx))
    for i, j := range idx {
        out[i] = x[j]
    }
    return out
}

func pickLabels(y []float64, idx []int) []float64 {
    out := make([]float64, len(idx))
    for i, j := range idx {
        out[i] = y[j]
    }
    return out
}

func transformRows(s *StandardScaler, rows [][]float64) [][]float64 {
    out := make([][]float64, len(rows))
    for i, row := range rows {
        out[i] = s.Transform(row)
    }
    return out
}

func (e *Engine) info(msg string, fields ...xlogger.Field) {
    if e.logger != nil {
        e.logger.Info(msg, fields...)
    }
}

func (e *Engine) warn(msg string, fields ...xlogger.Field) {
    if e.logger != nil {
        e.logger.Warn(msg, fields...)
    }
}

func (e *Engine) debug(msg string, fields ...xlogger.Field) {
    if e.logger != nil {
        e.logger.Debug(msg, fields...)
    }
}

var _ domsvc.Scorer = (*Engine)(nil)
