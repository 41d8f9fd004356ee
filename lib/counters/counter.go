package counters

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/statsinit/lib/store"
	"strconv"
)

// Counter keys used by the bot
const (
	KeyTotalUsers  = "stats:total_users"
	KeyActiveUsers = "stats:active_users"
	KeyTotalIncome = "stats:total_income"
)

// ErrCounterMissing is returned by Read when a counter does not exist in the store
var ErrCounterMissing = errors.New("counter does not exist")

// Counter is a named integer entry in a key-value store
type Counter struct {
	Key     string
	Initial int64
}

// DefaultCounters returns the counters of the bot, all starting at 0
func DefaultCounters() []Counter {
	return []Counter{
		{Key: KeyTotalUsers},
		{Key: KeyActiveUsers},
		{Key: KeyTotalIncome},
	}
}

// Encode returns the stored representation of the initial value.
// Values are decimal ASCII so that INCR/INCRBY work on them in redis.
func (c Counter) Encode() []byte {
	return EncodeValue(c.Initial)
}

// EncodeValue encodes v as a decimal ASCII integer
func EncodeValue(v int64) []byte {
	return strconv.AppendInt(nil, v, 10)
}

// DecodeValue parses a stored counter value
func DecodeValue(key string, raw []byte) (int64, error) {
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value of %s is not a valid integer: %w", key, err)
	}
	return v, nil
}

// Read returns the current value of every counter.
// A missing counter results in an error wrapping ErrCounterMissing.
func Read(ctx context.Context, s store.IStore, cs []Counter) (map[string]int64, error) {
	values := make(map[string]int64, len(cs))
	for _, c := range cs {
		raw, found, err := s.Get(ctx, c.Key)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", c.Key, err)
		}
		if !found {
			return nil, fmt.Errorf("read %s: %w", c.Key, ErrCounterMissing)
		}
		v, err := DecodeValue(c.Key, raw)
		if err != nil {
			return nil, err
		}
		values[c.Key] = v
	}
	return values, nil
}
