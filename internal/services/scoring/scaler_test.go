package scoring

import (
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestFitScalerCentersAndScales(t *testing.T) {
    rows := [][]float64{
        {2, 10},
        {4, 10},
        {6, 10},
    }
    s := fitScaler(rows)

    require.Len(t, s.Mean, 2)
    assert.InDelta(t, 4.0, s.Mean[0], 1e-12)
    assert.InDelta(t, 10.0, s.Mean[1], 1e-12)

    // population std of {2,4,6} is sqrt(8/3)
    assert.InDelta(t, 1.632993161855452, s.Scale[0], 1e-12)
    // zero-variance column keeps scale 1
    assert.InDelta(t, 1.0, s.Scale[1], 1e-12)

    got := s.Transform([]float64{4, 10})
    assert.InDelta(t, 0.0, got[0], 1e-12)
    assert.InDelta(t, 0.0, got[1], 1e-12)

    got = s.Transform([]float64{6, 11})
    assert.InDelta(t, 2.0/1.632993161855452, got[0], 1e-12)
    assert.InDelta(t, 1.0, got[1], 1e-12)
}

func TestIdentityScalerPassesThrough(t *testing.T) {
    s := identityScaler(3)
    row := []float64{-1.5, 0, 42}
    assert.Equal(t, row, s.Transform(row))
}

func TestScalerValidate(t *testing.T) {
    s := identityScaler(2)
    assert.NoError(t, s.validate(2))
    assert.Error(t, s.validate(3))

    s.Scale[1] = 0
    assert.Error(t, s.validate(2))
}
