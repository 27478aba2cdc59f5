package star

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"*1", "*1", 0},
		{"*1", "*2", -1},
		{"*2", "*17", -1},
		{"*17", "*4", 1},
		{"*1", "*1b", -1},
		{"*3A", "*3C", -1},
		{"*2A", "*13", -1},
		{"*1", "*HapB3", -1},
		{"*HapB3", "*2A", 1},
		{"1", "*1", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
			assert.Equal(t, -tt.want, Compare(tt.b, tt.a))
		})
	}
}

func TestPair_OrderIndependent(t *testing.T) {
	pairs := [][2]string{
		{"*4", "*1"},
		{"*17", "*2"},
		{"*3A", "*1"},
		{"*HapB3", "*2A"},
		{"*4", "*4"},
		{"*1b", "*5"},
	}

	for _, p := range pairs {
		assert.Equal(t, Pair(p[0], p[1]), Pair(p[1], p[0]), "pair %v", p)
	}

	assert.Equal(t, "*1/*4", Pair("*4", "*1"))
	assert.Equal(t, "*2/*17", Pair("*17", "*2"))
	assert.Equal(t, "*1/*HapB3", Pair("*HapB3", "*1"))
	assert.Equal(t, "*4/*4", Pair("4", "*4"))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"*4/*1", "*1/*4", true},
		{"*1/*4", "*1/*4", true},
		{" *3/*2 ", "*2/*3", true},
		{"*4", "", false},
		{"*1/*2/*3", "", false},
		{"/*1", "", false},
		{"Unknown", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Normalize(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, d := range []string{"*4/*1", "*17/*2", "*3C/*3A", "*HapB3/*1"} {
		once, ok := Normalize(d)
		assert.True(t, ok)
		twice, ok := Normalize(once)
		assert.True(t, ok)
		assert.Equal(t, once, twice)
	}
}
