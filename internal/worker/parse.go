package worker

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/signalnine/bgjit/internal/result"
)

// ResultPrefix marks the single line a worker prints with its timings.
const ResultPrefix = "RESULT:"

// Echo is the cell identity a worker repeats in its result line.
type Echo struct {
	Primitive string
	Num       int
	Width     int
}

// Matches reports whether the echoed identity equals spec.
func (e Echo) Matches(spec result.TrialSpec) bool {
	return e.Primitive == spec.Primitive && e.Num == spec.Num && e.Width == spec.Width
}

// ParseResultLine parses RESULT:<primitive>,<num>,<width>,<time0>,<time1>,<avg_time>.
// Times must be finite and non-negative. Errors wrap ErrProtocol.
func ParseResultLine(line string) (Echo, *result.RawResult, error) {
	var echo Echo
	line = strings.TrimSpace(line)
	body, ok := strings.CutPrefix(line, ResultPrefix)
	if !ok {
		return echo, nil, fmt.Errorf("%w: missing %s prefix in %q", ErrProtocol, ResultPrefix, line)
	}
	parts := strings.Split(strings.TrimSpace(body), ",")
	if len(parts) != 6 {
		return echo, nil, fmt.Errorf("%w: want 6 fields, got %d in %q", ErrProtocol, len(parts), line)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	num, err := strconv.Atoi(parts[1])
	if err != nil {
		return echo, nil, fmt.Errorf("%w: num %q: %v", ErrProtocol, parts[1], err)
	}
	width, err := strconv.Atoi(parts[2])
	if err != nil {
		return echo, nil, fmt.Errorf("%w: width %q: %v", ErrProtocol, parts[2], err)
	}
	var times [3]float64
	for i := range times {
		v, err := strconv.ParseFloat(parts[3+i], 64)
		if err != nil {
			return echo, nil, fmt.Errorf("%w: time field %d %q: %v", ErrProtocol, i, parts[3+i], err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return echo, nil, fmt.Errorf("%w: time field %d %q is not a finite non-negative duration", ErrProtocol, i, parts[3+i])
		}
		times[i] = v
	}
	echo = Echo{Primitive: parts[0], Num: num, Width: width}
	return echo, &result.RawResult{Time0: times[0], Time1: times[1], AvgTime: times[2]}, nil
}
