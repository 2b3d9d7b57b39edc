package scoring

import (
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestBuildTreeSplitsStepFunction(t *testing.T) {
    // y jumps at x0 = 0.5; the second feature is noise the tree should ignore
    x := [][]float64{
        {0.1, 9}, {0.2, 1}, {0.3, 5}, {0.4, 7},
        {0.6, 2}, {0.7, 8}, {0.8, 3}, {0.9, 6},
    }
    y := []float64{0, 0, 0, 0, 1, 1, 1, 1}

    tree := buildTree(x, y, 3, 1)
    require.False(t, tree.isStump())

    root := tree.Nodes[0]
    assert.Equal(t, 0, root.Feature)
    assert.InDelta(t, 0.5, root.Threshold, 1e-12)
    assert.InDelta(t, 0.5, root.Value, 1e-12)
    assert.Greater(t, root.Gain, 0.0)

    for i, row := range x {
        assert.InDelta(t, y[i], tree.predict(row), 1e-12, "row %d", i)
    }
}

func TestBuildTreeConstantTargetIsStump(t *testing.T) {
    x := [][]float64{{1}, {2}, {3}}
    y := []float64{0.4, 0.4, 0.4}

    tree := buildTree(x, y, 6, 1)
    require.True(t, tree.isStump())
    assert.InDelta(t, 0.4, tree.Nodes[0].Value, 1e-12)
}

func TestBuildTreeRespectsDepth(t *testing.T) {
    x := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}, {7}, {8}}
    y := []float64{1, 2, 3, 4, 5, 6, 7, 8}

    tree := buildTree(x, y, 1, 1)
    for _, row := range x {
        assert.LessOrEqual(t, len(tree.path(row)), 2)
    }
}

func TestTreePathEndsAtLeaf(t *testing.T) {
    x := [][]float64{{0.1}, {0.2}, {0.8}, {0.9}}
    y := []float64{0, 0, 1, 1}

    tree := buildTree(x, y, 6, 1)
    for _, row := range x {
        p := tree.path(row)
        require.NotEmpty(t, p)
        assert.Equal(t, 0, p[0])
        leaf := tree.Nodes[p[len(p)-1]]
        assert.Equal(t, -1, leaf.Left)
        assert.InDelta(t, tree.predict(row), leaf.Value, 1e-12)
    }
}

func TestBestSplitIdenticalValues(t *testing.T) {
    x := [][]float64{{5}, {5}, {5}}
    y := []float64{1, 2, 3}

    feature, _, gain := bestSplit(x, y, []int{0, 1, 2}, 1)
    assert.Equal(t, -1, feature)
    assert.Zero(t, gain)
}
