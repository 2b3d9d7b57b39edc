package scoring

// pathExplainer decomposes one ensemble prediction into additive per-feature
// contributions by walking each tree's decision path and attributing the
// node-value delta of every step to the feature that was split on.
//
// The decomposition is exact: bias + sum(contributions) equals the raw
// ensemble output for the same row.
type pathExplainer struct {
    model *gbtModel
    bias  float64
}

func newPathExplainer(m *gbtModel) *pathExplainer {
    bias := m.Base
    for i := range m.Trees {
        bias += m.LearningRate * m.Trees[i].Nodes[0].Value
    }
    return &pathExplainer{model: m, bias: bias}
}

// contributions returns the signed per-feature contribution for one scaled
// row, indexed like the row itself.
func (e *pathExplainer) contributions(row []float64, width int) []float64 {
    out := make([]float64, width)
    for ti := range e.model.Trees {
        tree := &e.model.Trees[ti]
        path := tree.path(row)
        for step := 0; step+1 < len(path); step++ {
            parent := tree.Nodes[path[step]]
            child := tree.Nodes[path[step+1]]
            if parent.Feature >= 0 && parent.Feature < width {
                out[parent.Feature] += e.model.LearningRate * (child.Value - parent.Value)
            }
        }
    }
    return out
}
