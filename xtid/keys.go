package xtid

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

const (
	keyword       = "obfiowerehiring"
	extraByte     = 3
	epochOffsetMs = 1682924400000
	animTotalTime = 4096.0
)

// Keys is the signing material derived from one landing page.
type Keys struct {
	keyBytes     []byte
	animationKey string
}

// NewKeys derives signing keys from the landing page HTML and the ondemand
// script it references.
func NewKeys(page, script string) (*Keys, error) {
	key := verificationKey(page)
	if key == "" {
		return nil, fmt.Errorf("twitter-site-verification meta tag not found")
	}
	keyBytes, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("decode verification key: %w", err)
	}

	rowIdx, timeIdx := keyIndices(script)
	if len(timeIdx) == 0 {
		return nil, fmt.Errorf("no key byte indices in ondemand script")
	}

	anim, err := animationKey(keyBytes, rowIdx, timeIdx, animationFrames(page))
	if err != nil {
		return nil, err
	}
	return &Keys{keyBytes: keyBytes, animationKey: anim}, nil
}

// GenerateID computes the transaction id for method and path. Query strings
// are ignored.
func (k *Keys) GenerateID(method, path string) string {
	return k.generate(method, path, time.Now(), byte(rand.IntN(256)))
}

func (k *Keys) generate(method, path string, now time.Time, mask byte) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	ts := int(now.UnixMilli()-epochOffsetMs) / 1000
	tsBytes := []byte{byte(ts), byte(ts >> 8), byte(ts >> 16), byte(ts >> 24)}

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s!%s!%d%s%s", method, path, ts, keyword, k.animationKey)))

	payload := make([]byte, 0, len(k.keyBytes)+len(tsBytes)+16+1)
	payload = append(payload, k.keyBytes...)
	payload = append(payload, tsBytes...)
	payload = append(payload, sum[:16]...)
	payload = append(payload, extraByte)

	out := make([]byte, len(payload)+1)
	out[0] = mask
	for i, b := range payload {
		out[i+1] = b ^ mask
	}
	return strings.TrimRight(base64.StdEncoding.EncodeToString(out), "=")
}

// animationKey replays the loading animation at the frame time encoded in the
// key bytes and serializes its color and rotation state.
func animationKey(keyBytes []byte, rowIdx int, timeIdx []int, frames [4][][]int) (string, error) {
	row := 0
	if rowIdx < len(keyBytes) {
		row = int(keyBytes[rowIdx]) % 16
	}

	frameTime := 1.0
	for _, idx := range timeIdx {
		if idx < len(keyBytes) {
			frameTime *= float64(int(keyBytes[idx]) % 16)
		}
	}
	frameTime = jsRound(frameTime/10) * 10

	if len(keyBytes) < 6 {
		return "", fmt.Errorf("verification key too short")
	}
	rows := frames[int(keyBytes[5])%4]
	if row >= len(rows) {
		return "", fmt.Errorf("animation frame row %d not found", row)
	}
	return animate(rows[row], frameTime/animTotalTime), nil
}

func animate(frame []int, t float64) string {
	if len(frame) < 11 {
		return ""
	}
	fromColor := []float64{float64(frame[0]), float64(frame[1]), float64(frame[2]), 1}
	toColor := []float64{float64(frame[3]), float64(frame[4]), float64(frame[5]), 1}
	toRotation := scale(float64(frame[6]), 60, 360, true)

	controls := make([]float64, len(frame)-7)
	for i, v := range frame[7:] {
		lo := 0.0
		if i%2 != 0 {
			lo = -1
		}
		controls[i] = scale(float64(v), lo, 1, false)
	}
	progress := cubicBezier(controls, t)

	color := lerp(fromColor, toColor, progress)
	rotation := lerp([]float64{0}, []float64{toRotation}, progress)[0]

	var sb strings.Builder
	for _, c := range color[:3] {
		fmt.Fprintf(&sb, "%x", int(math.Round(math.Max(0, math.Min(255, c)))))
	}
	for _, v := range rotationMatrix(rotation) {
		h := floatToHex(math.Abs(math.Round(v*100) / 100))
		switch {
		case h == "":
			sb.WriteString("0")
		case strings.HasPrefix(h, "."):
			sb.WriteString("0" + strings.ToLower(h))
		default:
			sb.WriteString(h)
		}
	}
	sb.WriteString("00")

	return strings.NewReplacer(".", "", "-", "").Replace(sb.String())
}

// scale maps a byte value onto [lo, hi].
func scale(v, lo, hi float64, floor bool) float64 {
	r := v*(hi-lo)/255 + lo
	if floor {
		return math.Floor(r)
	}
	return math.Round(r*100) / 100
}
