package candles

import (
	"time"

	logger "github.com/sirupsen/logrus"

	"reboundtrader/src/model"
)

// Builder aggregates a live tick stream into fixed-interval OHLC candles
// built from mid prices. The completion callback fires exactly once per
// interval, when the first tick of the next interval arrives, so a candle is
// only ever reported after it can no longer change.
type Builder struct {
	interval   time.Duration
	onComplete func(model.Bar)

	current *model.Bar
	bucket  time.Time
}

func NewBuilder(interval time.Duration, onComplete func(model.Bar)) *Builder {
	return &Builder{
		interval:   interval,
		onComplete: onComplete,
	}
}

// OnTick folds one tick into the current candle, emitting the previous one
// if the tick opens a new interval. Not safe for concurrent use; call from a
// single stream goroutine.
func (b *Builder) OnTick(tk model.Tick) {
	mid := tk.Mid()
	bucket := tk.Timestamp.Truncate(b.interval)

	if b.current == nil {
		b.start(bucket, mid)
		return
	}

	if !bucket.Equal(b.bucket) {
		b.emit()
		b.start(bucket, mid)
		return
	}

	if mid > b.current.High {
		b.current.High = mid
	}
	if mid < b.current.Low {
		b.current.Low = mid
	}
	b.current.Close = mid
	b.current.Volume++
}

// Current returns the in-progress candle, or nil before the first tick.
func (b *Builder) Current() *model.Bar {
	return b.current
}

// Flush emits the in-progress candle, if any. Used on shutdown; during
// normal operation candles complete via OnTick.
func (b *Builder) Flush() {
	if b.current != nil {
		b.emit()
		b.current = nil
	}
}

func (b *Builder) start(bucket time.Time, mid float64) {
	b.bucket = bucket
	b.current = &model.Bar{
		Timestamp: bucket,
		Open:      mid,
		High:      mid,
		Low:       mid,
		Close:     mid,
		Volume:    1,
	}
}

func (b *Builder) emit() {
	bar := *b.current
	logger.WithFields(logger.Fields{
		"timestamp": bar.Timestamp,
		"close":     bar.Close,
		"ticks":     bar.Volume,
	}).Debug("candle completed")

	if b.onComplete != nil {
		b.onComplete(bar)
	}
}
