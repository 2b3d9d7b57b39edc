package scoring

import (
    "math"

    "gonum.org/v1/gonum/stat"
)

// gbtModel is a gradient-boosted regression tree ensemble trained with
// squared-error loss. Fitting is deterministic for fixed input order; the
// seed is recorded because it drives the train/validation shuffle upstream.
type gbtModel struct {
    NEstimators  int              `json:"n_estimators"`
    MaxDepth     int              `json:"max_depth"`
    LearningRate float64          `json:"learning_rate"`
    Seed         int64            `json:"seed"`
    Base         float64          `json:"base"`
    Trees        []regressionTree `json:"trees"`
}

const minLeafSize = 1

// fit trains the ensemble on scaled rows. Boosting stops early when a round
// produces a stump with no signal left to fit, so a constant target yields
// an empty ensemble that always predicts Base.
func (m *gbtModel) fit(x [][]float64, y []float64) {
    m.Trees = m.Trees[:0]
    m.Base = stat.Mean(y, nil)

    residual := make([]float64, len(y))
    current := make([]float64, len(y))
    for i := range y {
        current[i] = m.Base
        residual[i] = y[i] - m.Base
    }

    for round := 0; round < m.NEstimators; round++ {
        tree := buildTree(x, residual, m.MaxDepth, minLeafSize)
        if tree.isStump() && math.Abs(tree.Nodes[0].Value) < minSplitGain {
            return
        }
        m.Trees = append(m.Trees, tree)
        for i := range y {
            current[i] += m.LearningRate * tree.predict(x[i])
            residual[i] = y[i] - current[i]
        }
    }
}

// predict returns the raw ensemble output for one scaled row.
func (m *gbtModel) predict(row []float64) float64 {
    out := m.Base
    for i := range m.Trees {
        out += m.LearningRate * m.Trees[i].predict(row)
    }
    return out
}

// featureImportances returns per-feature split gains summed over the whole
// ensemble, normalized to sum to 1. All zeros when the ensemble is empty.
func (m *gbtModel) featureImportances(width int) []float64 {
    out := make([]float64, width)
    var total float64
    for i := range m.Trees {
        for _, node := range m.Trees[i].Nodes {
            if node.Left == -1 {
                continue
            }
            if node.Feature >= 0 && node.Feature < width {
                out[node.Feature] += node.Gain
                total += node.Gain
            }
        }
    }
    if total > 0 {
        for i := range out {
            out[i] /= total
        }
    }
    return out
}
