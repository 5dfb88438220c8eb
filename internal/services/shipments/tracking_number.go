package shipments

import (
	"math/rand/v2"
	"strconv"
	"time"
)

const (
	DefaultTrackingPrefix = "ENV"

	trackingTimestampDigits = 6
	trackingSuffixLen       = 8
	trackingAlphabet        = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// TrackingNumberGenerator builds prefix + last 6 digits of the unix-millis
// clock + a random base36 suffix. Numbers are unique with high probability
// only; storage enforces uniqueness and the service retries on collision.
type TrackingNumberGenerator struct {
	prefix string
	now    func() time.Time
	intn   func(n int) int
}

func NewTrackingNumberGenerator(prefix string) *TrackingNumberGenerator {
	if prefix == "" {
		prefix = DefaultTrackingPrefix
	}
	return &TrackingNumberGenerator{prefix: prefix, now: time.Now, intn: rand.IntN}
}

func (g *TrackingNumberGenerator) Next() string {
	ts := strconv.FormatInt(g.now().UnixMilli(), 10)
	if len(ts) > trackingTimestampDigits {
		ts = ts[len(ts)-trackingTimestampDigits:]
	}

	buf := make([]byte, 0, len(g.prefix)+len(ts)+trackingSuffixLen)
	buf = append(buf, g.prefix...)
	buf = append(buf, ts...)
	for i := 0; i < trackingSuffixLen; i++ {
		buf = append(buf, trackingAlphabet[g.intn(len(trackingAlphabet))])
	}
	return string(buf)
}
