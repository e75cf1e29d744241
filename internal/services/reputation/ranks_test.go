package reputation

import (
	"testing"
)

func TestRankForExperienceThresholds(t *testing.T) {
	cases := []struct {
		exp   int
		level int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{299, 2},
		{300, 3},
		{600, 4},
		{999, 4},
		{1000, 5},
		{1500, 6},
		{2500, 7},
		{4000, 8},
		{6000, 9},
		{9999, 9},
		{10000, 10},
		{1000000, 10},
	}

	for _, tc := range cases {
		if got := RankForExperience(tc.exp); got.Level != tc.level {
			t.Errorf("RankForExperience(%d) = level %d, want %d", tc.exp, got.Level, tc.level)
		}
	}
}

func TestRankForExperienceMonotonic(t *testing.T) {
	prev := 0
	for exp := 0; exp <= 12000; exp += 50 {
		level := RankForExperience(exp).Level
		if level < prev {
			t.Fatalf("rank level dropped from %d to %d at exp %d", prev, level, exp)
		}
		prev = level
	}
}

func TestRankByLevelClamps(t *testing.T) {
	if got := RankByLevel(0); got.Level != MinLevel {
		t.Errorf("RankByLevel(0) = level %d, want %d", got.Level, MinLevel)
	}
	if got := RankByLevel(42); got.Level != MaxLevel {
		t.Errorf("RankByLevel(42) = level %d, want %d", got.Level, MaxLevel)
	}
}

func TestPermissionsAreCumulative(t *testing.T) {
	for level := MinLevel + 1; level <= MaxLevel; level++ {
		lower := RankByLevel(level - 1)
		higher := RankByLevel(level)
		for _, p := range lower.Permissions {
			if !higher.Has(p) {
				t.Errorf("level %d lost permission %q held by level %d", level, p, level-1)
			}
		}
	}
}

func TestPermissionGates(t *testing.T) {
	cases := []struct {
		perm  string
		level int
	}{
		{PermModerate, 7},
		{PermWarn, 8},
		{PermMute, 9},
		{PermKick, 10},
		{PermBan, 10},
	}

	for _, tc := range cases {
		if RankByLevel(tc.level - 1).Has(tc.perm) {
			t.Errorf("level %d should not have %q", tc.level-1, tc.perm)
		}
		if !RankByLevel(tc.level).Has(tc.perm) {
			t.Errorf("level %d should have %q", tc.level, tc.perm)
		}
	}
}

func TestNextExperience(t *testing.T) {
	if got := RankByLevel(1).NextExperience(); got != 100 {
		t.Errorf("level 1 next threshold = %d, want 100", got)
	}
	if got := RankByLevel(MaxLevel).NextExperience(); got != 0 {
		t.Errorf("max level next threshold = %d, want 0", got)
	}
}
