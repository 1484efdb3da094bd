package alignment

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "compact timestamp", raw: "20240115103000", want: "2024-01-15T10:30:00Z"},
		{name: "compact with surrounding space", raw: "  20240115103000 ", want: "2024-01-15T10:30:00Z"},
		{name: "gdelt seendate", raw: "20240115T103000Z", want: "2024-01-15T10:30:00Z"},
		{name: "rfc3339 utc", raw: "2024-01-15T10:30:00Z", want: "2024-01-15T10:30:00Z"},
		{name: "rfc3339 offset", raw: "2024-01-15T10:30:00+02:00", want: "2024-01-15T08:30:00Z"},
		{name: "fractional seconds truncated", raw: "2024-01-15T10:30:00.123Z", want: "2024-01-15T10:30:00Z"},
		{name: "zone-less datetime is utc", raw: "2024-01-15 23:59:59", want: "2024-01-15T23:59:59Z"},
		{name: "date only", raw: "2024-01-15", want: "2024-01-15T00:00:00Z"},
		{name: "rfc1123", raw: "Mon, 15 Jan 2024 10:30:00 GMT", want: "2024-01-15T10:30:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDate(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDate_CompactIsPositional(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		raw := fmt.Sprintf("%014d", rng.Int63n(1e14))
		want := raw[0:4] + "-" + raw[4:6] + "-" + raw[6:8] + "T" + raw[8:10] + ":" + raw[10:12] + ":" + raw[12:14] + "Z"

		got, err := NormalizeDate(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
}

func TestNormalizeDate_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind FailureKind
	}{
		{name: "empty", raw: "", kind: KindMissingDate},
		{name: "blank", raw: "   ", kind: KindMissingDate},
		{name: "garbage", raw: "not a date", kind: KindUnparseableDate},
		{name: "punctuation only", raw: "???", kind: KindUnparseableDate},
		{name: "clock with seconds", raw: "10:30:00", kind: KindUnparseableDate},
		{name: "clock", raw: "12:30", kind: KindUnparseableDate},
		{name: "clock with meridiem", raw: "3:04PM", kind: KindUnparseableDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDate(tt.raw)
			require.Error(t, err)
			assert.Empty(t, got)
			assert.Equal(t, tt.kind, KindOf(err))

			var f *Failure
			require.ErrorAs(t, err, &f)
			assert.Equal(t, tt.raw, f.Context["raw_date"])
		})
	}
}

func TestNormalizeDate_Deterministic(t *testing.T) {
	first, err := NormalizeDate("2024-06-01T12:00:00-04:00")
	require.NoError(t, err)
	second, err := NormalizeDate("2024-06-01T12:00:00-04:00")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "2024-06-01T16:00:00Z", first)
}
