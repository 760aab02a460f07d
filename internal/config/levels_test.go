package config_test

import (
	"reflect"
	"testing"

	"rtdrive/internal/config"
)

func TestParseLevelsExpandsRangesAndLiterals(t *testing.T) {
	tests := []struct {
		spec string
		want []int
	}{
		{"1,2,5,10-50:10", []int{1, 2, 5, 10, 20, 30, 40, 50}},
		{"3", []int{3}},
		{"1-5", []int{1, 2, 3, 4, 5}},
		{"2-10:4", []int{2, 6, 10}},
		{"5-5", []int{5}},
		{"1, 2 , 3", []int{1, 2, 3}},
		{"4,4,4", []int{4, 4, 4}}, // duplicates preserved
		{"1,,2", []int{1, 2}},     // empty tokens skipped
		{"3-8:10", []int{3}},      // step larger than span keeps the start
	}
	for _, tc := range tests {
		got, err := config.ParseLevels(tc.spec)
		if err != nil {
			t.Errorf("ParseLevels(%q): unexpected error %v", tc.spec, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ParseLevels(%q) = %v, want %v", tc.spec, got, tc.want)
		}
	}
}

func TestParseLevelsRangeInvariants(t *testing.T) {
	got, err := config.ParseLevels("10-50:10")
	if err != nil {
		t.Fatalf("ParseLevels: %v", err)
	}
	for _, v := range got {
		if v < 10 || v > 50 {
			t.Fatalf("value %d escapes range bounds", v)
		}
		if (v-10)%10 != 0 {
			t.Fatalf("value %d not congruent to start modulo step", v)
		}
	}
}

func TestParseLevelsRejectsMalformedTokens(t *testing.T) {
	for _, spec := range []string{
		"abc",
		"10-5",
		"1-10:0",
		"1-10:-2",
		"1:0",
		"0",
		"-3",
		"0-4",
		"x-9",
		"2-y",
		"",
		" , ",
	} {
		if _, err := config.ParseLevels(spec); err == nil {
			t.Errorf("ParseLevels(%q): expected error, got none", spec)
		}
	}
}
