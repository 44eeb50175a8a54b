package model

import (
	"math/rand"
	"testing"
	"time"
)

func booking(user string, from, to time.Duration) ParkingSpotBooking {
	return ParkingSpotBooking{ID: user, BookedByUserID: user, From: testNow.Add(from), To: testNow.Add(to)}
}

func TestSplitNonOverlapping(t *testing.T) {
	m := time.Minute
	window := ParkingSpotAvailability{ID: "a", From: testNow.Add(h(1)), To: testNow.Add(h(10))}

	tests := []struct {
		name     string
		bookings []ParkingSpotBooking
		want     [][2]time.Duration
	}{
		{"no bookings", nil, [][2]time.Duration{{h(1), h(10)}}},
		{"booking on the tail", []ParkingSpotBooking{booking("b", h(8), h(12))}, [][2]time.Duration{{h(1), h(8) - m}}},
		{"booking on the head", []ParkingSpotBooking{booking("b", 0, h(3))}, [][2]time.Duration{{h(3) + m, h(10)}}},
		{"booking inside", []ParkingSpotBooking{booking("b", h(4), h(5))}, [][2]time.Duration{{h(1), h(4) - m}, {h(5) + m, h(10)}}},
		{
			"several bookings unordered",
			[]ParkingSpotBooking{booking("c", h(7), h(8)), booking("b", h(2), h(3)), booking("d", h(5), h(6))},
			[][2]time.Duration{{h(1), h(2) - m}, {h(3) + m, h(5) - m}, {h(6) + m, h(7) - m}, {h(8) + m, h(10)}},
		},
		{"booking outside ignored", []ParkingSpotBooking{booking("b", h(11), h(12))}, [][2]time.Duration{{h(1), h(10)}}},
		{"booking covers everything", []ParkingSpotBooking{booking("b", 0, h(11))}, nil},
		{"gap smaller than margins", []ParkingSpotBooking{booking("b", h(2), h(3)), booking("c", h(3)+m, h(4))}, [][2]time.Duration{{h(1), h(2) - m}, {h(4) + m, h(10)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := window.SplitNonOverlapping(tt.bookings, m)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d windows, got %d: %+v", len(tt.want), len(got), got)
			}
			for i, w := range tt.want {
				if !got[i].From.Equal(testNow.Add(w[0])) || !got[i].To.Equal(testNow.Add(w[1])) {
					t.Errorf("window %d = [%v, %v], want [%v, %v]", i, got[i].From, got[i].To, testNow.Add(w[0]), testNow.Add(w[1]))
				}
			}
		})
	}
}

func TestSplitNonOverlapping_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	margin := time.Minute
	step := 10 * time.Minute

	for round := 0; round < 300; round++ {
		window := ParkingSpotAvailability{From: testNow, To: testNow.Add(h(24))}

		// non overlapping bookings, as the engine guarantees across users
		var bookings []ParkingSpotBooking
		cursor := time.Duration(rng.Intn(12)) * step
		for cursor < h(24) && len(bookings) < 8 {
			length := time.Duration(rng.Intn(18)+1) * step
			bookings = append(bookings, booking("u", cursor, cursor+length))
			cursor += length + time.Duration(rng.Intn(18))*step
		}
		rng.Shuffle(len(bookings), func(i, j int) { bookings[i], bookings[j] = bookings[j], bookings[i] })

		free := window.SplitNonOverlapping(bookings, margin)

		for i := range free {
			if !free[i].From.Before(free[i].To) {
				t.Fatalf("round %d: empty window %+v", round, free[i])
			}
			if !window.Range().Contains(free[i]) {
				t.Fatalf("round %d: window %+v escapes the availability", round, free[i])
			}
			if i > 0 && free[i-1].To.After(free[i].From) {
				t.Fatalf("round %d: windows out of order or overlapping: %+v %+v", round, free[i-1], free[i])
			}
			for _, b := range bookings {
				padded := TimeRange{From: b.From.Add(-margin), To: b.To.Add(margin)}
				if padded.Overlaps(free[i]) {
					t.Fatalf("round %d: window %+v cuts into booking %+v", round, free[i], b)
				}
			}
		}

		// every minute of the availability is either free or within a padded booking
		for at := window.From; at.Before(window.To); at = at.Add(time.Minute) {
			slot := TimeRange{From: at, To: at.Add(time.Minute)}
			covered := false
			for _, f := range free {
				if f.Contains(slot) {
					covered = true
					break
				}
			}
			for _, b := range bookings {
				if covered {
					break
				}
				padded := TimeRange{From: b.From.Add(-margin), To: b.To.Add(margin)}
				covered = padded.Contains(slot)
			}
			if !covered {
				t.Fatalf("round %d: minute %v is lost by the split", round, at)
			}
		}
	}
}
