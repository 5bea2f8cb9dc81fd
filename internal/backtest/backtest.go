package backtest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"fxarb/internal/graph"
)

// Snapshot is the finder's verdict on one saved rate matrix.
type Snapshot struct {
	Index int
	Size  int
	Found bool
	Path  graph.Path
}

type Report struct {
	Snapshots []Snapshot
	Cycles    int
}

func (r Report) Ratio() float64 {
	if len(r.Snapshots) == 0 {
		return 0
	}
	return float64(r.Cycles) / float64(len(r.Snapshots))
}

// ScanFile runs Scan over the file at path.
func ScanFile(path string, finder graph.PathFinder) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, err
	}
	defer f.Close()
	return Scan(f, finder)
}

// Scan reads rate matrices in the getAllRates layout, one row per line with whitespace
// separated rates, snapshots separated by blank lines, and runs the finder over each.
func Scan(r io.Reader, finder graph.PathFinder) (Report, error) {
	var (
		rep  Report
		rows [][]float64
		line int
	)
	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		m, err := graph.NewMatrix(rows)
		if err != nil {
			return fmt.Errorf("snapshot %d ending at line %d: %w", len(rep.Snapshots), line, err)
		}
		p, ok := finder.FindCycle(m)
		rep.Snapshots = append(rep.Snapshots, Snapshot{Index: len(rep.Snapshots), Size: m.Size(), Found: ok, Path: p})
		if ok {
			rep.Cycles++
		}
		rows = nil
		return nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			if err := flush(); err != nil {
				return rep, err
			}
			continue
		}
		if strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return rep, fmt.Errorf("line %d: %w", line, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return rep, err
	}
	return rep, flush()
}
