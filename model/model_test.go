package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptionalIntAdd(t *testing.T) {
	assert.Equal(t, Int(5), Int(2).Add(Int(3)))
	assert.Equal(t, Missing, Missing.Add(Int(3)))
	assert.Equal(t, Missing, Int(2).Add(Missing))
}

func TestOptionalIntSub(t *testing.T) {
	assert.Equal(t, Int(1), Int(3).Sub(Int(2)))
	assert.Equal(t, Missing, Missing.Sub(Int(2)))
}

func TestStopTimeArrivalDeparture(t *testing.T) {
	st := &StopTime{Arrival: "08:05:30", Departure: "08:10:00"}
	assert.Equal(t, 8*time.Hour+5*time.Minute+30*time.Second, st.ArrivalTime())
	assert.Equal(t, 8*time.Hour+10*time.Minute, st.DepartureTime())
}

func TestStopTimeArrivalPastMidnight(t *testing.T) {
	st := &StopTime{Arrival: "25:30:00"}
	assert.Equal(t, 25*time.Hour+30*time.Minute, st.ArrivalTime())
}

func TestStopTimeArrivalEmptyIsZero(t *testing.T) {
	st := &StopTime{}
	assert.Equal(t, time.Duration(0), st.ArrivalTime())
}
