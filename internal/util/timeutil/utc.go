package timeutil

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// UTCTime is stored and serialized in UTC regardless of the local timezone.
type UTCTime time.Time

func NowUTC() UTCTime {
	return UTCTime(time.Now().UTC())
}

func (t UTCTime) Value() (driver.Value, error) {
	return time.Time(t).UTC(), nil
}

func (t *UTCTime) Scan(value any) error {
	if value == nil {
		return nil
	}
	cvt, err := driver.DefaultParameterConverter.ConvertValue(value)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	cvtTime, ok := cvt.(time.Time)
	if !ok {
		return fmt.Errorf("expected type time.Time, got type %T", cvt)
	}
	*t = UTCTime(cvtTime.UTC())
	return nil
}

func (t UTCTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339))
}

func (t UTCTime) UTC() time.Time {
	return time.Time(t).UTC()
}

func (t UTCTime) Compare(u UTCTime) int {
	return time.Time(t).Compare(time.Time(u))
}

func (t UTCTime) Add(delta time.Duration) UTCTime {
	return UTCTime(time.Time(t).Add(delta))
}
