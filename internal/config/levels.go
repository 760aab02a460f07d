package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseLevels expands a concurrency sweep specification into an ordered list
// of levels. The spec is a comma-separated list of tokens; each token is a
// literal integer or a range "start-end" with an optional ":step" suffix
// (default step 1). Ranges expand inclusively, stopping at or before end.
// Duplicates are preserved; no deduplication happens.
//
// "1,2,5,10-50:10" expands to [1 2 5 10 20 30 40 50].
func ParseLevels(spec string) ([]int, error) {
	var levels []int
	for _, tok := range strings.Split(spec, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if strings.Contains(tok, "-") {
			expanded, err := expandRange(tok)
			if err != nil {
				return nil, err
			}
			levels = append(levels, expanded...)
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("invalid level token %q", tok)
		}
		if n < 1 {
			return nil, fmt.Errorf("level must be >= 1 in token %q", tok)
		}
		levels = append(levels, n)
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("spec %q contains no levels", spec)
	}
	return levels, nil
}

func expandRange(tok string) ([]int, error) {
	rng, stepPart, hasStep := strings.Cut(tok, ":")
	startS, endS, ok := strings.Cut(rng, "-")
	if !ok {
		return nil, fmt.Errorf("invalid range token %q", tok)
	}
	start, err := strconv.Atoi(strings.TrimSpace(startS))
	if err != nil {
		return nil, fmt.Errorf("invalid range start in token %q", tok)
	}
	end, err := strconv.Atoi(strings.TrimSpace(endS))
	if err != nil {
		return nil, fmt.Errorf("invalid range end in token %q", tok)
	}
	step := 1
	if hasStep {
		step, err = strconv.Atoi(strings.TrimSpace(stepPart))
		if err != nil {
			return nil, fmt.Errorf("invalid step in token %q", tok)
		}
	}
	if step <= 0 {
		return nil, fmt.Errorf("step must be > 0 in token %q", tok)
	}
	if end < start {
		return nil, fmt.Errorf("end < start in token %q", tok)
	}
	if start < 1 {
		return nil, fmt.Errorf("level must be >= 1 in token %q", tok)
	}
	var levels []int
	for cur := start; cur <= end; cur += step {
		levels = append(levels, cur)
	}
	return levels, nil
}
