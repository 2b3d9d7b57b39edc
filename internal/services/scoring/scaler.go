package scoring

import (
    "fmt"
    "math"

    "gonum.org/v1/gonum/stat"
)

// StandardScaler centers and scales each feature column to zero mean and
// unit variance. Columns with zero variance keep scale 1 so constant
// features transform to exactly 0 instead of NaN.
type StandardScaler struct {
    Mean  []float64 `json:"mean"`
    Scale []float64 `json:"scale"`
}

// identityScaler passes n-wide rows through unchanged. Used by the default
// artifact before the first retraining run.
func identityScaler(n int) *StandardScaler {
    s := &StandardScaler{
        Mean:  make([]float64, n),
        Scale: make([]float64, n),
    }
    for i := range s.Scale {
        s.Scale[i] = 1
    }
    return s
}

// fitScaler learns column means and population standard deviations from the
// training rows. All rows must have the same width.
func fitScaler(rows [][]float64) *StandardScaler {
    if len(rows) == 0 {
        return identityScaler(0)
    }
    width := len(rows[0])
    s := &StandardScaler{
        Mean:  make([]float64, width),
        Scale: make([]float64, width),
    }
    col := make([]float64, len(rows))
    for j := 0; j < width; j++ {
        for i, row := range rows {
            col[i] = row[j]
        }
        mean := stat.Mean(col, nil)
        std := math.Sqrt(stat.MomentAbout(2, col, mean, nil))
        if std == 0 || math.IsNaN(std) {
            std = 1
        }
        s.Mean[j] = mean
        s.Scale[j] = std
    }
    return s
}

// Transform returns the scaled copy of row.
func (s *StandardScaler) Transform(row []float64) []float64 {
    out := make([]float64, len(row))
    for i, v := range row {
        out[i] = (v - s.Mean[i]) / s.Scale[i]
    }
    return out
}

func (s *StandardScaler) validate(width int) error {
    if len(s.Mean) != width || len(s.Scale) != width {
        return fmt.Errorf("scaler width mismatch: mean %d scale %d want %d", len(s.Mean), len(s.Scale), width)
    }
    for i, sc := range s.Scale {
        if sc == 0 {
            return fmt.Errorf("scaler column %d has zero scale", i)
        }
    }
    return nil
}
