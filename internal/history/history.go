// Package history turns the raw level log into the table and trend series shown on the dashboard.
package history

import (
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"smartbin-dashboard/config"
	"smartbin-dashboard/internal/level"
	"smartbin-dashboard/internal/model"
)

const (
	// MinTimestamp is the sanity floor for unix-seconds timestamps.
	MinTimestamp = 1_000_000_000
	// MaxTimestamp rejects values that are really milliseconds.
	MaxTimestamp = 10_000_000_000

	// TimeLayout is the es-PE day/month/year 24h format.
	TimeLayout = "02/01/2006, 15:04"
)

// Options controls the aggregation window and table size.
type Options struct {
	BucketCount int
	BucketWidth time.Duration
	TableLimit  int
	Location    *time.Location
}

// DefaultOptions returns 10 buckets of 60s, a 10 row table and UTC times.
func DefaultOptions() Options {
	return Options{
		BucketCount: 10,
		BucketWidth: 60 * time.Second,
		TableLimit:  10,
		Location:    time.UTC,
	}
}

// OptionsFromConfig builds Options, falling back to UTC if the timezone cannot be loaded.
func OptionsFromConfig(cfg config.HistoryConfig) Options {
	opts := DefaultOptions()
	if cfg.BucketCount > 0 {
		opts.BucketCount = cfg.BucketCount
	}
	if cfg.BucketWidthSeconds > 0 {
		opts.BucketWidth = time.Duration(cfg.BucketWidthSeconds) * time.Second
	}
	if cfg.TableLimit > 0 {
		opts.TableLimit = cfg.TableLimit
	}
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Printf("Warning: failed to load timezone %q: %v. Using UTC.", cfg.Timezone, err)
		} else {
			opts.Location = loc
		}
	}
	return opts
}

// Plausible reports whether ts looks like a unix timestamp in seconds.
func Plausible(ts float64) bool {
	return ts > MinTimestamp && ts < MaxTimestamp
}

// Valid filters out implausible records and returns the rest sorted ascending by timestamp.
func Valid(records []model.HistoryRecord) []model.HistoryRecord {
	valid := make([]model.HistoryRecord, 0, len(records))
	for _, r := range records {
		if Plausible(r.TimestampSeconds) {
			valid = append(valid, r)
		}
	}
	sort.Slice(valid, func(i, j int) bool {
		if valid[i].TimestampSeconds == valid[j].TimestampSeconds {
			return valid[i].ID < valid[j].ID
		}
		return valid[i].TimestampSeconds < valid[j].TimestampSeconds
	})
	return valid
}

// Aggregate builds the table rows and the bucketed series for the given instant.
// An empty or fully invalid input yields an empty table and zero-valued buckets.
func Aggregate(records []model.HistoryRecord, now time.Time, opts Options) model.HistoryView {
	if opts.BucketCount <= 0 || opts.BucketWidth <= 0 || opts.TableLimit <= 0 {
		d := DefaultOptions()
		if opts.Location != nil {
			d.Location = opts.Location
		}
		opts = d
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	valid := Valid(records)
	return model.HistoryView{
		Rows:    Table(valid, opts.TableLimit, opts.Location),
		Buckets: Buckets(valid, now, opts.BucketCount, opts.BucketWidth),
		Empty:   len(valid) == 0,
	}
}

// Table returns up to limit rows, newest first. sorted must be ascending.
func Table(sorted []model.HistoryRecord, limit int, loc *time.Location) []model.TableRow {
	rows := make([]model.TableRow, 0, min(limit, len(sorted)))
	for i := len(sorted) - 1; i >= 0 && len(rows) < limit; i-- {
		r := sorted[i]
		rows = append(rows, model.TableRow{
			ID:               r.ID,
			Time:             FormatTime(r.TimestampSeconds, loc),
			Level:            level.Round2(r.Level),
			DistanceMm:       r.DistanceMm,
			TimestampSeconds: r.TimestampSeconds,
		})
	}
	return rows
}

// Buckets averages levels over count windows of the given width ending at now.
// Window i covers [now-(i+1)*width, now-i*width); the most recent window is last.
// A window without records averages to 0.
func Buckets(records []model.HistoryRecord, now time.Time, count int, width time.Duration) []model.Bucket {
	end := now.Unix()
	w := int64(width / time.Second)

	buckets := make([]model.Bucket, 0, count)
	for i := int64(count - 1); i >= 0; i-- {
		from := float64(end - (i+1)*w)
		to := float64(end - i*w)

		var levels []float64
		for _, r := range records {
			if r.TimestampSeconds >= from && r.TimestampSeconds < to {
				levels = append(levels, r.Level)
			}
		}

		avg := 0.0
		if len(levels) > 0 {
			avg = stat.Mean(levels, nil)
		}
		buckets = append(buckets, model.Bucket{EndSeconds: end - i*w, AverageLevel: avg})
	}
	return buckets
}

// FormatTime renders unix seconds in the dashboard's day/month/year layout.
func FormatTime(ts float64, loc *time.Location) string {
	if ts <= 0 {
		return "–"
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).In(loc).Format(TimeLayout)
}
