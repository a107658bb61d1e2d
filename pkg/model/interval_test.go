package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "09:30", want: 570},
		{in: " 23:59 ", want: 1439},
		{in: "24:00", want: MinutesPerDay},
		{in: "24:01", wantErr: true},
		{in: "9:30", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "0930", wantErr: true},
		{in: "+9:00", wantErr: true},
		{in: "-1:00", wantErr: true},
		{in: "09:+5", wantErr: true},
		{in: "٠٩:٠٠", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterval_Overlaps(t *testing.T) {
	base := NewInterval(540, 570)

	assert.True(t, base.Overlaps(NewInterval(555, 600)))
	assert.False(t, base.Overlaps(NewInterval(570, 600)), "touching intervals do not overlap")
	assert.False(t, base.Overlaps(NewInterval(555, 555)), "zero width never overlaps")
	assert.Equal(t, 30*time.Minute, base.Duration())
}

func TestInterval_JSON(t *testing.T) {
	raw, err := json.Marshal(NewInterval(1410, MinutesPerDay))
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"23:30","end":"24:00"}`, string(raw))

	var got Interval
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, NewInterval(1410, MinutesPerDay), got)

	assert.Error(t, json.Unmarshal([]byte(`{"start":"25:00","end":"26:00"}`), &got))
}

func TestBookingStatus(t *testing.T) {
	for _, s := range AllStatuses {
		assert.True(t, s.IsValid(), s)
		assert.NotEqual(t, s.IsTerminal(), s.Occupies(), "%s is either active or terminal", s)
	}
	assert.False(t, BookingStatus("noshow").IsValid())
}

func TestBooking_At(t *testing.T) {
	dhaka := time.FixedZone("BDT", 6*60*60)
	b := &Booking{Date: "2025-03-10"}

	got, err := b.At(570, dhaka)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 3, 30, 0, 0, time.UTC), got.UTC())

	_, err = (&Booking{Date: "10/03/2025"}).At(0, dhaka)
	assert.Error(t, err)
}
