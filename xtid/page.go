package xtid

import (
	"regexp"
	"strconv"
	"strings"
)

const ondemandBase = "https://abs.twimg.com/responsive-web/client-web/ondemand.s."

var (
	ondemandRe      = regexp.MustCompile(`['|"]{1}ondemand\.s['|"]{1}:\s*['|"]{1}([\w]*)['|"]{1}`)
	keyIndexRe      = regexp.MustCompile(`\(\w{1}\[(\d{1,2})\],\s*16\)`)
	verificationRe  = regexp.MustCompile(`<meta[^>]+name=["']twitter-site-verification["'][^>]+content=["']([^"']+)["']`)
	verificationRe2 = regexp.MustCompile(`<meta[^>]+content=["']([^"']+)["'][^>]+name=["']twitter-site-verification["']`)
	animPathRe      = regexp.MustCompile(`<path[^>]*d=["']([^"']+)["'][^>]*fill=["']#1d9bf008["']`)
	animPathRe2     = regexp.MustCompile(`<path[^>]*fill=["']#1d9bf008["'][^>]*d=["']([^"']+)["']`)
	intRe           = regexp.MustCompile(`-?\d+`)
	frameRes        [4]*regexp.Regexp
)

func init() {
	for i := range frameRes {
		frameRes[i] = regexp.MustCompile(`<svg[^>]*id=["']loading-x-anim-` + strconv.Itoa(i) + `["'][^>]*>[\s\S]*?</svg>`)
	}
}

// verificationKey returns the twitter-site-verification meta content.
func verificationKey(page string) string {
	for _, re := range []*regexp.Regexp{verificationRe, verificationRe2} {
		if m := re.FindStringSubmatch(page); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

// ondemandScriptURL locates the hashed ondemand.s bundle referenced by the page.
func ondemandScriptURL(page string) string {
	m := ondemandRe.FindStringSubmatch(page)
	if len(m) < 2 {
		return ""
	}
	return ondemandBase + m[1] + "a.js"
}

// keyIndices extracts the key byte indices from the ondemand script. The first
// selects the animation row, the rest feed the frame time.
func keyIndices(js string) (row int, rest []int) {
	var indices []int
	for _, m := range keyIndexRe.FindAllStringSubmatch(js, -1) {
		if idx, err := strconv.Atoi(m[1]); err == nil {
			indices = append(indices, idx)
		}
	}
	if len(indices) == 0 {
		return 0, nil
	}
	return indices[0], indices[1:]
}

// animationFrames returns the parsed path rows of the four loading animations.
// Missing frames are left nil.
func animationFrames(page string) [4][][]int {
	var frames [4][][]int
	for i, re := range frameRes {
		svg := re.FindString(page)
		if svg == "" {
			continue
		}
		m := animPathRe.FindStringSubmatch(svg)
		if len(m) < 2 {
			if m = animPathRe2.FindStringSubmatch(svg); len(m) < 2 {
				continue
			}
		}
		frames[i] = parsePath(m[1])
	}
	return frames
}

// parsePath splits an SVG path on its cubic segments and returns the integers
// of each segment. The leading move command is skipped.
func parsePath(d string) [][]int {
	segments := strings.Split(d, "C")
	rows := make([][]int, 0, len(segments))
	for _, seg := range segments[1:] {
		var row []int
		for _, n := range intRe.FindAllString(seg, -1) {
			if v, err := strconv.Atoi(n); err == nil {
				row = append(row, v)
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}
