package orbit

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoElements        = errors.New("no element sets found")
	ErrMalformedElements = errors.New("malformed element set")
)

// elementLineLen is the fixed width of both element-set lines.
const elementLineLen = 69

// ElementSet is one satellite's two-line element set.
type ElementSet struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// Validate checks the fixed-width layout go-satellite relies on: both lines
// 69 columns, numbered 1 and 2, for the same catalog number.
func (e ElementSet) Validate() error {
	for i, line := range []string{e.Line1, e.Line2} {
		n := i + 1
		if len(line) != elementLineLen {
			return fmt.Errorf("%w: line %d is %d columns, want %d", ErrMalformedElements, n, len(line), elementLineLen)
		}
		if line[0] != byte('0'+n) || line[1] != ' ' {
			return fmt.Errorf("%w: line %d starts with %q", ErrMalformedElements, n, line[:2])
		}
	}
	if c1, c2 := e.Line1[2:7], e.Line2[2:7]; c1 != c2 {
		return fmt.Errorf("%w: catalog numbers %q and %q differ", ErrMalformedElements, c1, c2)
	}
	return nil
}

// MeanMotion returns revolutions per day from line 2 (columns 53-63).
func (e ElementSet) MeanMotion() (float64, error) {
	if len(e.Line2) < 63 {
		return 0, fmt.Errorf("line2 too short for mean motion: %d chars", len(e.Line2))
	}
	s := strings.TrimSpace(e.Line2[52:63])
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid mean motion %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("non-positive mean motion %g", n)
	}
	return n, nil
}

// Period returns the orbital period in seconds derived from the mean motion.
func (e ElementSet) Period() (float64, error) {
	n, err := e.MeanMotion()
	if err != nil {
		return 0, err
	}
	return 86400 / n, nil
}

// ParseElements reads element sets from r. Both the 3-line (name first) and
// bare 2-line layouts are accepted. Malformed entries are skipped with a
// warning; ErrNoElements is returned if nothing usable was found.
func ParseElements(r io.Reader, logger *slog.Logger) ([]ElementSet, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading element sets: %w", err)
	}

	var sets []ElementSet
	for i := 0; i < len(lines); {
		var name string
		if !strings.HasPrefix(lines[i], "1 ") {
			name = strings.TrimSpace(strings.TrimPrefix(lines[i], "0 "))
			i++
		}
		if i+1 >= len(lines) {
			break
		}
		line1, line2 := lines[i], lines[i+1]
		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			logger.Warn("skipping malformed element set", "line_index", i, "name", name)
			i++
			continue
		}
		i += 2

		set, err := newElementSet(name, line1, line2)
		if err != nil {
			logger.Warn("skipping element set", "name", name, "error", err)
			continue
		}
		sets = append(sets, set)
	}

	if len(sets) == 0 {
		return nil, ErrNoElements
	}
	return sets, nil
}

func newElementSet(name, line1, line2 string) (ElementSet, error) {
	e := ElementSet{Line1: strings.TrimSpace(line1), Line2: strings.TrimSpace(line2)}
	if err := e.Validate(); err != nil {
		return ElementSet{}, err
	}
	noradStr := strings.TrimSpace(e.Line1[2:7])
	noradID, err := strconv.Atoi(noradStr)
	if err != nil {
		return ElementSet{}, fmt.Errorf("invalid NORAD ID %q: %w", noradStr, err)
	}
	epoch, err := parseEpoch(strings.TrimSpace(e.Line1[18:32]))
	if err != nil {
		return ElementSet{}, err
	}
	if name == "" {
		name = strconv.Itoa(noradID)
	}
	e.NORADID, e.Name, e.Epoch = noradID, name, epoch
	return e, nil
}

// parseEpoch converts a YYDDD.DDDDDDDD epoch to UTC. Years 57-99 are 19xx.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}
	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}
	day, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((day - 1) * float64(24*time.Hour))), nil
}
