package types

import "time"

// Timestamp is the block time on the wire: whole seconds since the
// Unix epoch plus a nanosecond offset.
type Timestamp struct {
	Seconds int64 `cramberry:"1"`
	Nanos   int32 `cramberry:"2"`
}

// TimeToTimestamp converts t to a Timestamp.
func TimeToTimestamp(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// ToTime returns ts in UTC.
func (ts Timestamp) ToTime() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

// IsZero reports whether ts is unset.
func (ts Timestamp) IsZero() bool { return ts == Timestamp{} }

func (ts Timestamp) String() string {
	if ts.IsZero() {
		return "unset"
	}
	return ts.ToTime().Format(time.RFC3339Nano)
}
