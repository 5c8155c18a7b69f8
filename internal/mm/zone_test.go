package mm

import "testing"

func TestClassifyZone(t *testing.T) {
	cases := []struct {
		base uint64
		want Zone
	}{
		{0, ZoneDMA},
		{dmaLimit - 1, ZoneDMA},
		{dmaLimit, ZoneNormal},
		{normalLimit - 1, ZoneNormal},
		{normalLimit, ZoneHigh},
	}
	for _, c := range cases {
		if got := ClassifyZone(c.base); got != c.want {
			t.Errorf("ClassifyZone(%#x) = %s, want %s", c.base, got, c.want)
		}
	}
}

func TestRegionEnd(t *testing.T) {
	r := Region{Base: 0x8000_0000, Length: 0x1000}
	if r.End() != 0x8000_1000 {
		t.Errorf("End() = %#x, want %#x", r.End(), 0x8000_1000)
	}
}
