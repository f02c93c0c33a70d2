// Package merge combines per-day JSON records into one trip document.
package merge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wangshifu/cyclemap/internal/core/domain"
)

// Defaults for the merged document's meta block.
const (
	DefaultTitle       = "王师傅骑行 · 每日记录合并"
	DefaultAuthor      = "王师傅"
	DefaultDescription = "从每日 JSON 自动合并生成的数据文件，可直接用于应用或继续编辑"
)

// ClueHeading is the first line clue files start with. It is dropped together
// with one blank line after it.
const ClueHeading = "旅行骑行线索提取"

// Options control a merge run.
type Options struct {
	DayDir      string
	ClueDir     string // empty disables clues
	Title       string
	Author      string
	Description string
	Recompute   bool
	Concurrency int
}

// Result is the merged document plus what happened to each input file.
type Result struct {
	Trip    domain.TripData
	Files   []string         // day files merged, in document order
	Skipped map[string]error // day files that could not be parsed
	Clues   int              // days that received a clue
}

// Run reads every *.json file in opts.DayDir in filename order. Files are
// parsed concurrently; a file that fails to parse is logged and skipped.
func Run(ctx context.Context, opts Options) (*Result, error) {
	files, err := filepath.Glob(filepath.Join(opts.DayDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list day files: %w", err)
	}
	sort.Strings(files)

	limit := opts.Concurrency
	if limit <= 0 {
		limit = 4
	}

	type parsed struct {
		day  domain.DayRecord
		clue bool
		err  error
	}
	out := make([]parsed, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			day, err := readDay(path)
			if err != nil {
				out[i].err = err
				return nil
			}
			if opts.ClueDir != "" {
				clue, err := readClue(opts.ClueDir, path)
				if err != nil {
					slog.Warn("read clue failed", "file", filepath.Base(path), "error", err)
				} else if clue != "" {
					if err := day.Extras.Set("clue", clue); err != nil {
						out[i].err = err
						return nil
					}
					out[i].clue = true
				}
			}
			if opts.Recompute {
				day = domain.UpdateDayDistance(day)
			}
			out[i].day = day
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Trip: domain.TripData{
			Meta: domain.TripMeta{
				Title:       orDefault(opts.Title, DefaultTitle),
				Author:      orDefault(opts.Author, DefaultAuthor),
				Description: orDefault(opts.Description, DefaultDescription),
			},
			Days: make([]domain.DayRecord, 0, len(files)),
		},
		Skipped: map[string]error{},
	}
	for i, p := range out {
		name := filepath.Base(files[i])
		if p.err != nil {
			slog.Warn("skipping day file", "file", name, "error", p.err)
			res.Skipped[name] = p.err
			continue
		}
		res.Trip.Days = append(res.Trip.Days, p.day)
		res.Files = append(res.Files, name)
		if p.clue {
			res.Clues++
		}
	}
	return res, nil
}

// WriteFile writes the document as two-space indented JSON.
func WriteFile(path string, trip domain.TripData) error {
	data, err := domain.ExportTripData(trip)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// CleanClue trims a clue file. A leading ClueHeading line is removed along
// with a single blank line after it. Blank results mean "no clue".
func CleanClue(raw string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == ClueHeading {
		lines = lines[1:]
		if len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
			lines = lines[1:]
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func readDay(path string) (domain.DayRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.DayRecord{}, err
	}
	var day domain.DayRecord
	if err := day.UnmarshalJSON(data); err != nil {
		return domain.DayRecord{}, err
	}
	if day.Extras == nil {
		day.Extras = domain.Extras{}
	}
	return day, nil
}

// readClue returns "" when the day has no clue file.
func readClue(dir, dayPath string) (string, error) {
	name := strings.TrimSuffix(filepath.Base(dayPath), filepath.Ext(dayPath)) + ".txt"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return CleanClue(string(data)), nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
