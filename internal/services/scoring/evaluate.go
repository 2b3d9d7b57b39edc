package scoring

import (
    "math"

    "gonum.org/v1/gonum/stat"
)

type evaluation struct {
    MSE       float64
    R2        float64
    Accuracy  float64
    Precision float64
    Recall    float64
    F1        float64
}

// evaluate compares validation labels against predictions on the [0,1]
// scale. Accuracy is the fraction of predictions within tolerance of the
// label; precision and recall reuse the same tolerance rule, so all three
// are equal. R2 degrades to 0 when the validation labels have no variance.
func evaluate(yTrue, yPred []float64, tolerance float64) evaluation {
    n := len(yTrue)
    if n == 0 {
        return evaluation{}
    }

    var sqErr float64
    var within int
    for i := range yTrue {
        diff := yTrue[i] - yPred[i]
        sqErr += diff * diff
        if math.Abs(diff) <= tolerance {
            within++
        }
    }

    out := evaluation{
        MSE:      sqErr / float64(n),
        Accuracy: float64(within) / float64(n),
    }
    out.Precision = out.Accuracy
    out.Recall = out.Accuracy
    if out.Precision+out.Recall > 0 {
        out.F1 = 2 * out.Precision * out.Recall / (out.Precision + out.Recall)
    }

    r2 := stat.RSquaredFrom(yPred, yTrue, nil)
    if !math.IsNaN(r2) && !math.IsInf(r2, 0) {
        out.R2 = r2
    }
    return out
}
