package scoring

import "sort"

// treeNode is one node of a regression tree stored in flat form so the
// whole tree serializes as a plain JSON array. Left == -1 marks a leaf.
// Value is kept on every node, not only leaves, because the path explainer
// attributes score movement to the value delta across each split.
type treeNode struct {
    Feature   int     `json:"feature"`
    Threshold float64 `json:"threshold"`
    Left      int     `json:"left"`
    Right     int     `json:"right"`
    Value     float64 `json:"value"`
    Gain      float64 `json:"gain,omitempty"`
}

type regressionTree struct {
    Nodes []treeNode `json:"nodes"`
}

const minSplitGain = 1e-12

// buildTree fits a depth-bounded CART regression tree to (x, y) by greedy
// variance reduction. Rows going left satisfy row[feature] <= threshold.
func buildTree(x [][]float64, y []float64, maxDepth, minLeaf int) regressionTree {
    t := regressionTree{}
    idx := make([]int, len(y))
    for i := range idx {
        idx[i] = i
    }
    t.grow(x, y, idx, maxDepth, minLeaf)
    return t
}

func (t *regressionTree) grow(x [][]float64, y []float64, idx []int, depth, minLeaf int) int {
    node := treeNode{Left: -1, Right: -1, Value: meanAt(y, idx)}
    self := len(t.Nodes)
    t.Nodes = append(t.Nodes, node)

    if depth <= 0 || len(idx) < 2*minLeaf {
        return self
    }
    feature, threshold, gain := bestSplit(x, y, idx, minLeaf)
    if gain <= minSplitGain {
        return self
    }

    left := make([]int, 0, len(idx))
    right := make([]int, 0, len(idx))
    for _, i := range idx {
        if x[i][feature] <= threshold {
            left = append(left, i)
        } else {
            right = append(right, i)
        }
    }

    t.Nodes[self].Feature = feature
    t.Nodes[self].Threshold = threshold
    t.Nodes[self].Gain = gain
    t.Nodes[self].Left = t.grow(x, y, left, depth-1, minLeaf)
    t.Nodes[self].Right = t.grow(x, y, right, depth-1, minLeaf)
    return self
}

// bestSplit scans every feature for the threshold with the largest sum of
// squared error reduction. Thresholds are midpoints between adjacent
// distinct sorted values.
func bestSplit(x [][]float64, y []float64, idx []int, minLeaf int) (feature int, threshold, gain float64) {
    feature = -1
    n := len(idx)
    if n < 2 {
        return feature, 0, 0
    }

    var total, totalSq float64
    for _, i := range idx {
        total += y[i]
        totalSq += y[i] * y[i]
    }
    parentSSE := totalSq - total*total/float64(n)

    order := make([]int, n)
    for j := range x[idx[0]] {
        copy(order, idx)
        sort.Slice(order, func(a, b int) bool { return x[order[a]][j] < x[order[b]][j] })

        var leftSum, leftSq float64
        for pos := 0; pos < n-1; pos++ {
            yi := y[order[pos]]
            leftSum += yi
            leftSq += yi * yi

            lo := x[order[pos]][j]
            hi := x[order[pos+1]][j]
            if lo == hi {
                continue
            }
            nl := pos + 1
            nr := n - nl
            if nl < minLeaf || nr < minLeaf {
                continue
            }
            rightSum := total - leftSum
            rightSq := totalSq - leftSq
            leftSSE := leftSq - leftSum*leftSum/float64(nl)
            rightSSE := rightSq - rightSum*rightSum/float64(nr)
            g := parentSSE - leftSSE - rightSSE
            if g > gain {
                feature = j
                threshold = (lo + hi) / 2
                gain = g
            }
        }
    }
    return feature, threshold, gain
}

// predict walks the tree for one row and returns the leaf value.
func (t *regressionTree) predict(row []float64) float64 {
    node := 0
    for t.Nodes[node].Left != -1 {
        if row[t.Nodes[node].Feature] <= t.Nodes[node].Threshold {
            node = t.Nodes[node].Left
        } else {
            node = t.Nodes[node].Right
        }
    }
    return t.Nodes[node].Value
}

// path returns the node indices visited for one row, root to leaf.
func (t *regressionTree) path(row []float64) []int {
    out := make([]int, 0, 8)
    node := 0
    for {
        out = append(out, node)
        if t.Nodes[node].Left == -1 {
            return out
        }
        if row[t.Nodes[node].Feature] <= t.Nodes[node].Threshold {
            node = t.Nodes[node].Left
        } else {
            node = t.Nodes[node].Right
        }
    }
}

// isStump reports whether the tree is a single leaf.
func (t *regressionTree) isStump() bool {
    return len(t.Nodes) == 1
}

func meanAt(y []float64, idx []int) float64 {
    if len(idx) == 0 {
        return 0
    }
    var sum float64
    for _, i := range idx {
        sum += y[i]
    }
    return sum / float64(len(idx))
}
