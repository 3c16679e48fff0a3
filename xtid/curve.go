package xtid

import (
	"math"
	"strconv"
	"strings"
)

// cubicBezier evaluates the easing curve with control points
// (c[0], c[1]) and (c[2], c[3]) at progress t.
func cubicBezier(c []float64, t float64) float64 {
	if t <= 0 {
		var grad float64
		if c[0] > 0 {
			grad = c[1] / c[0]
		} else if c[1] == 0 && c[2] > 0 {
			grad = c[3] / c[2]
		}
		return grad * t
	}
	if t >= 1 {
		var grad float64
		if c[2] < 1 {
			grad = (c[3] - 1) / (c[2] - 1)
		} else if c[2] == 1 && c[0] < 1 {
			grad = (c[1] - 1) / (c[0] - 1)
		}
		return 1 + grad*(t-1)
	}

	lo, hi, mid := 0.0, 1.0, 0.0
	for lo < hi {
		mid = (lo + hi) / 2
		x := bezierAxis(c[0], c[2], mid)
		if math.Abs(t-x) < 0.00001 {
			break
		}
		if x < t {
			lo = mid
		} else {
			hi = mid
		}
	}
	return bezierAxis(c[1], c[3], mid)
}

func bezierAxis(a, b, m float64) float64 {
	return 3*a*(1-m)*(1-m)*m + 3*b*(1-m)*m*m + m*m*m
}

func lerp(from, to []float64, f float64) []float64 {
	out := make([]float64, len(from))
	for i := range from {
		out[i] = from[i]*(1-f) + to[i]*f
	}
	return out
}

func rotationMatrix(degrees float64) [4]float64 {
	rad := degrees * math.Pi / 180
	return [4]float64{math.Cos(rad), -math.Sin(rad), math.Sin(rad), math.Cos(rad)}
}

// jsRound rounds half away from zero for positives, like JavaScript Math.round.
func jsRound(num float64) float64 {
	x := math.Floor(num)
	if num-x >= 0.5 {
		x = math.Ceil(num)
	}
	return math.Copysign(x, num)
}

// floatToHex renders a non-negative float in base 16 with uppercase digits,
// the way Number.prototype.toString(16) does. Zero renders as "".
func floatToHex(x float64) string {
	var sb strings.Builder
	whole := int(x)
	frac := x - float64(whole)
	if whole > 0 {
		sb.WriteString(strings.ToUpper(strconv.FormatInt(int64(whole), 16)))
	}
	if frac == 0 {
		return sb.String()
	}
	sb.WriteByte('.')
	for frac > 0 {
		frac *= 16
		d := int(frac)
		frac -= float64(d)
		sb.WriteString(strings.ToUpper(strconv.FormatInt(int64(d), 16)))
	}
	return sb.String()
}
