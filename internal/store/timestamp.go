package store

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"time"
)

const microsPerSecond = int64(time.Second / time.Microsecond)

var errTimestampRange = errors.New("timestamp out of range")

// Timestamp is the store-native point in time. It is persisted as Unix
// microseconds, which covers every year time.Time can format.
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

// FromTime converts t, truncated to the microsecond.
func FromTime(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond() / 1000 * 1000)}
}

// Time returns the timestamp in UTC.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

func (ts Timestamp) Value() (driver.Value, error) {
	if ts.Seconds > math.MaxInt64/microsPerSecond-1 || ts.Seconds < math.MinInt64/microsPerSecond+1 {
		return nil, fmt.Errorf("store timestamp %d: %w", ts.Seconds, errTimestampRange)
	}
	return ts.Seconds*microsPerSecond + int64(ts.Nanos)/1000, nil
}

func (ts *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		sec, rem := v/microsPerSecond, v%microsPerSecond
		if rem < 0 {
			sec--
			rem += microsPerSecond
		}
		ts.Seconds = sec
		ts.Nanos = int32(rem * 1000)
		return nil
	case nil:
		*ts = Timestamp{}
		return nil
	default:
		return fmt.Errorf("scan timestamp: unsupported type %T", src)
	}
}
