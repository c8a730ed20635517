package model

import "testing"

func TestAttendanceStatusFor(t *testing.T) {
	cases := []struct {
		present bool
		excused bool
		want    AttendanceStatus
	}{
		{present: true, excused: false, want: AttendancePresent},
		{present: true, excused: true, want: AttendancePresent},
		{present: false, excused: false, want: AttendanceAbsent},
		{present: false, excused: true, want: AttendanceExcused},
	}

	for _, tc := range cases {
		got := AttendanceStatusFor(tc.present, tc.excused)
		if got != tc.want {
			t.Fatalf("present=%v excused=%v: got %d want %d", tc.present, tc.excused, got, tc.want)
		}
		if got == AttendanceReserved {
			t.Fatalf("reserved status must never be produced")
		}
	}
}

func TestAttendanceStatusString(t *testing.T) {
	if AttendanceExcused.String() != "excused" || AttendanceStatus(9).String() != "unknown" {
		t.Fatalf("status string mismatch")
	}
}

func TestAttendanceStatusWritable(t *testing.T) {
	for status := 0; status <= 0xff; status++ {
		s := AttendanceStatus(status)
		want := s == AttendancePresent || s == AttendanceAbsent || s == AttendanceExcused
		if s.Writable() != want {
			t.Fatalf("status %d: writable=%v want %v", status, s.Writable(), want)
		}
	}
}
