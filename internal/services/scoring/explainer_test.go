package scoring

import (
    "math/rand"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestExplainerAdditivity(t *testing.T) {
    x, y := genRegression(120, 5)
    m := newTestModel()
    m.fit(x, y)
    require.NotEmpty(t, m.Trees)

    exp := newPathExplainer(m)
    rng := rand.New(rand.NewSource(9))
    for i := 0; i < 50; i++ {
        row := []float64{rng.Float64()*4 - 2, rng.Float64()*4 - 2, rng.Float64()*4 - 2}
        contribs := exp.contributions(row, 3)

        sum := exp.bias
        for _, c := range contribs {
            sum += c
        }
        assert.InDelta(t, m.predict(row), sum, 1e-9, "row %d", i)
    }
}

func TestExplainerUnusedFeatureContributesNothing(t *testing.T) {
    // label depends on feature 0 only; feature 1 is constant so no tree
    // can ever split on it
    x := [][]float64{
        {0.1, 7}, {0.2, 7}, {0.3, 7}, {0.4, 7},
        {0.6, 7}, {0.7, 7}, {0.8, 7}, {0.9, 7},
    }
    y := []float64{0.2, 0.2, 0.2, 0.2, 0.8, 0.8, 0.8, 0.8}

    m := newTestModel()
    m.fit(x, y)
    require.NotEmpty(t, m.Trees)

    exp := newPathExplainer(m)
    contribs := exp.contributions([]float64{0.15, 7}, 2)
    assert.Zero(t, contribs[1])
    assert.NotZero(t, contribs[0])
}

func TestExplainerBiasOfEmptyEnsemble(t *testing.T) {
    m := newTestModel()
    m.Base = 0.5

    exp := newPathExplainer(m)
    assert.InDelta(t, 0.5, exp.bias, 1e-12)
    assert.Equal(t, []float64{0, 0}, exp.contributions([]float64{1, 2}, 2))
}
