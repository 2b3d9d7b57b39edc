package scoring

import (
    "math"
    "math/rand"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func newTestModel() *gbtModel {
    return &gbtModel{
        NEstimators:  defaultEstimators,
        MaxDepth:     defaultMaxDepth,
        LearningRate: defaultLearningRate,
        Seed:         defaultSeed,
    }
}

func genRegression(n int, seed int64) ([][]float64, []float64) {
    rng := rand.New(rand.NewSource(seed))
    x := make([][]float64, n)
    y := make([]float64, n)
    for i := 0; i < n; i++ {
        a := rng.Float64()
        b := rng.Float64()
        x[i] = []float64{a, b, rng.Float64()}
        y[i] = 0.3 + 0.4*a - 0.2*b
    }
    return x, y
}

func TestGBTFitsSimpleSignal(t *testing.T) {
    x, y := genRegression(200, 7)
    m := newTestModel()
    m.fit(x, y)

    require.NotEmpty(t, m.Trees)
    assert.LessOrEqual(t, len(m.Trees), m.NEstimators)

    var sumAbsErr float64
    for i, row := range x {
        sumAbsErr += math.Abs(y[i] - m.predict(row))
    }
    assert.Less(t, sumAbsErr/float64(len(x)), 0.02, "mean training error")
}

func TestGBTConstantTargetStaysEmpty(t *testing.T) {
    x := [][]float64{{1, 2}, {3, 4}, {5, 6}, {7, 8}}
    y := []float64{0.5, 0.5, 0.5, 0.5}

    m := newTestModel()
    m.fit(x, y)

    assert.Empty(t, m.Trees)
    assert.InDelta(t, 0.5, m.Base, 1e-12)
    assert.InDelta(t, 0.5, m.predict([]float64{100, -100}), 1e-12)
}

func TestGBTDeterministic(t *testing.T) {
    x, y := genRegression(80, 11)

    a := newTestModel()
    a.fit(x, y)
    b := newTestModel()
    b.fit(x, y)

    require.Equal(t, len(a.Trees), len(b.Trees))
    probe := [][]float64{{0.1, 0.9, 0.5}, {0.7, 0.2, 0.3}, {0.5, 0.5, 0.5}}
    for _, row := range probe {
        assert.Equal(t, a.predict(row), b.predict(row))
    }
}

func TestGBTFeatureImportances(t *testing.T) {
    x, y := genRegression(150, 3)
    m := newTestModel()
    m.fit(x, y)

    imp := m.featureImportances(3)
    require.Len(t, imp, 3)

    var total float64
    for _, v := range imp {
        assert.GreaterOrEqual(t, v, 0.0)
        total += v
    }
    assert.InDelta(t, 1.0, total, 1e-9)

    // the label loads on features 0 and 1; feature 2 is pure noise
    assert.Greater(t, imp[0], imp[2])
    assert.Greater(t, imp[1], imp[2])
}

func TestGBTImportancesEmptyEnsemble(t *testing.T) {
    m := newTestModel()
    imp := m.featureImportances(4)
    assert.Equal(t, []float64{0, 0, 0, 0}, imp)
}
