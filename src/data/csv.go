package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	logger "github.com/sirupsen/logrus"

	"reboundtrader/src/model"
)

// Accepted timestamp layouts, most specific first.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// LoadBars reads a candle CSV with columns
// timestamp,open,high,low,close[,volume]. A header row is detected and
// skipped. Timestamps without an explicit offset are interpreted in loc.
func LoadBars(path string, loc *time.Location) ([]model.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var bars []model.Bar
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		line++

		if len(record) < 5 {
			return nil, fmt.Errorf("%s line %d: expected at least 5 columns, got %d", path, line, len(record))
		}

		ts, err := parseTime(record[0], loc)
		if err != nil {
			if line == 1 {
				continue // header row
			}
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}

		bar := model.Bar{Timestamp: ts}
		fields := []*float64{&bar.Open, &bar.High, &bar.Low, &bar.Close}
		for i, dst := range fields {
			v, err := strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d column %d: %w", path, line, i+2, err)
			}
			*dst = v
		}
		if len(record) > 5 {
			if v, err := strconv.ParseFloat(record[5], 64); err == nil {
				bar.Volume = v
			}
		}
		bars = append(bars, bar)
	}

	logger.WithFields(logger.Fields{"path": path, "bars": len(bars)}).Debug("loaded candle file")
	return bars, nil
}

// LoadTicks reads a quote CSV with columns timestamp,bid,ask. A header row
// is detected and skipped.
func LoadTicks(path string, loc *time.Location) ([]model.Tick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var ticks []model.Tick
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		line++

		if len(record) < 3 {
			return nil, fmt.Errorf("%s line %d: expected at least 3 columns, got %d", path, line, len(record))
		}

		ts, err := parseTime(record[0], loc)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}

		bid, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad bid: %w", path, line, err)
		}
		ask, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad ask: %w", path, line, err)
		}

		ticks = append(ticks, model.Tick{Timestamp: ts, Bid: bid, Ask: ask})
	}

	logger.WithFields(logger.Fields{"path": path, "ticks": len(ticks)}).Debug("loaded tick file")
	return ticks, nil
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	// Epoch seconds or milliseconds.
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).In(loc), nil
		}
		return time.Unix(n, 0).In(loc), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
