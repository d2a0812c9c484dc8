package contagiond

import (
	"math"
	"strconv"

	"github.com/GoSim-25-26J-441/contagion-core/pkg/models"
)

// The converters below build plain maps and []any slices so the same
// shape serves JSON responses and google.protobuf.Struct messages.

func convertSweepToJSON(rec SweepRecord) map[string]any {
	s := rec.Sweep
	out := map[string]any{
		"id":                 s.ID,
		"status":             string(s.Status),
		"created_at_unix_ms": unixMs(s.CreatedAt),
		"started_at_unix_ms": unixMs(s.StartedAt),
		"ended_at_unix_ms":   unixMs(s.EndedAt),
		"error":              s.Error,
		"progress": map[string]any{
			"points_done":  s.PointsDone,
			"points_total": s.PointsTotal,
		},
		"seed":    formatSeed(s.Seed),
		"request": convertRequestToJSON(rec.Request),
		"points":  convertPointsToJSON(rec.Points),
	}
	if rec.Result != nil {
		out["result"] = convertResultToJSON(rec.Result)
	}
	return out
}

func convertRequestToJSON(req SweepRequest) map[string]any {
	densities := make([]any, len(req.Densities))
	for i, d := range req.Densities {
		densities[i] = d
	}
	return map[string]any{
		"population": req.Population,
		"iterations": req.Iterations,
		"threshold":  req.Threshold,
		"densities":  densities,
		"seed":       formatSeed(int64(req.Seed)),
		"persist":    req.persist(),
	}
}

func convertResultToJSON(r *models.SweepResult) map[string]any {
	return map[string]any{
		"population":  r.Population,
		"iterations":  r.Iterations,
		"threshold":   r.Threshold,
		"seed":        formatSeed(r.Seed),
		"duration_ms": r.Duration.Milliseconds(),
		"curve":       convertCurveToJSON(r.Curve()),
	}
}

func convertPointsToJSON(points []models.SweepPoint) []any {
	out := make([]any, 0, len(points))
	for _, p := range points {
		out = append(out, map[string]any{
			"density":         p.Density,
			"probability":     p.Probability,
			"cascades":        p.Cascades,
			"iterations":      p.Iterations,
			"realized_degree": finite(p.RealizedDegree),
			"mean_fraction":   finite(p.MeanFraction),
			"stddev_fraction": finite(p.StdDevFraction),
			"p95_fraction":    finite(p.P95Fraction),
			"std_error":       finite(p.StdError),
		})
	}
	return out
}

func convertCurveToJSON(c models.Curve) map[string]any {
	out := make(map[string]any, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// finite maps NaN and infinities to nil; neither JSON nor Struct can carry them.
func finite(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// formatSeed renders seeds as decimal strings; a Struct number would round
// values above 2^53.
func formatSeed(seed int64) string {
	return strconv.FormatInt(seed, 10)
}
