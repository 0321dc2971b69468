package codec

import (
	"math"
	"time"

	"github.com/wippyai/ffibridge/errors"
)

// DurationCodec encodes a non-negative time.Duration as u64 seconds and u32
// nanoseconds.
type DurationCodec struct{}

// Duration is the duration codec.
var Duration DurationCodec

func (DurationCodec) Lift(data []byte) (time.Duration, error) {
	return Decode[time.Duration](Duration, data)
}

func (DurationCodec) Lower(d time.Duration) ([]byte, error) {
	return Encode[time.Duration](Duration, d)
}

func (DurationCodec) Size(time.Duration) int { return 12 }

func (DurationCodec) Read(data []byte, off int) (time.Duration, int, error) {
	secs, _, err := Uint64.Read(data, off)
	if err != nil {
		return 0, 0, err
	}
	nanos, _, err := Uint32.Read(data, off+8)
	if err != nil {
		return 0, 0, err
	}
	if nanos >= 1e9 || secs > uint64(math.MaxInt64/int64(time.Second))-1 {
		return 0, 0, errors.New(errors.PhaseLift, errors.KindInvalidInput).
			Detail("duration %ds %dns out of range", secs, nanos).
			Build()
	}
	return time.Duration(secs)*time.Second + time.Duration(nanos), 12, nil
}

func (DurationCodec) Write(d time.Duration, data []byte, off int) (int, error) {
	if d < 0 {
		return 0, errors.New(errors.PhaseLower, errors.KindInvalidInput).
			Detail("negative duration %s", d).
			Build()
	}
	if err := room(data, off, 12); err != nil {
		return 0, err
	}
	secs := d / time.Second
	if _, err := Uint64.Write(uint64(secs), data, off); err != nil {
		return 0, err
	}
	if _, err := Uint32.Write(uint32(d-secs*time.Second), data, off+8); err != nil {
		return 0, err
	}
	return 12, nil
}

// TimestampCodec encodes a time.Time as signed seconds from the Unix epoch and
// u32 nanoseconds within that second, the form time.Unix accepts. Instants
// before the epoch floor the seconds, so nanoseconds are never negative.
type TimestampCodec struct{}

// Timestamp is the timestamp codec.
var Timestamp TimestampCodec

func (TimestampCodec) Lift(data []byte) (time.Time, error) {
	return Decode[time.Time](Timestamp, data)
}

func (TimestampCodec) Lower(t time.Time) ([]byte, error) {
	return Encode[time.Time](Timestamp, t)
}

func (TimestampCodec) Size(time.Time) int { return 12 }

func (TimestampCodec) Read(data []byte, off int) (time.Time, int, error) {
	secs, _, err := Int64.Read(data, off)
	if err != nil {
		return time.Time{}, 0, err
	}
	nanos, _, err := Uint32.Read(data, off+8)
	if err != nil {
		return time.Time{}, 0, err
	}
	if nanos >= 1e9 {
		return time.Time{}, 0, errors.New(errors.PhaseLift, errors.KindInvalidInput).
			Detail("timestamp nanoseconds %d out of range", nanos).
			Build()
	}
	return time.Unix(secs, int64(nanos)), 12, nil
}

func (TimestampCodec) Write(t time.Time, data []byte, off int) (int, error) {
	if err := room(data, off, 12); err != nil {
		return 0, err
	}
	if _, err := Int64.Write(t.Unix(), data, off); err != nil {
		return 0, err
	}
	if _, err := Uint32.Write(uint32(t.Nanosecond()), data, off+8); err != nil {
		return 0, err
	}
	return 12, nil
}
