package math

import "testing"

func TestDivRoundUp(t *testing.T) {
	for _, testCase := range []struct {
		a, b, wanted uint32
	}{
		{0, 4, 0},
		{1, 4, 1},
		{4, 4, 1},
		{5, 4, 2},
		{1440, 1600, 1},
		{3200, 1600, 2},
	} {
		if found := DivRoundUp(testCase.a, testCase.b); found != testCase.wanted {
			t.Fatalf(
				"DivRoundUp(%d, %d): wanted `%d`; found `%d`",
				testCase.a,
				testCase.b,
				testCase.wanted,
				found,
			)
		}
	}
}

func TestRoundUp(t *testing.T) {
	if found := RoundUp(13012, 256); found != 13056 {
		t.Fatalf("RoundUp(13012, 256): wanted `13056`; found `%d`", found)
	}
}
