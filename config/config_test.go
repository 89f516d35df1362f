package config

import "testing"

func TestJointValidate(t *testing.T) {
	base := Joint{
		MinLimit: -10, MaxLimit: 10,
		MaxVelocity: 1, MaxAcceleration: 1, MaxJerk: 1,
	}

	cases := []struct {
		name    string
		mutate  func(j Joint) Joint
		wantErr bool
	}{
		{"valid", func(j Joint) Joint { return j }, false},
		{"zero jerk", func(j Joint) Joint { j.MaxJerk = 0; return j }, true},
		{"negative jerk", func(j Joint) Joint { j.MaxJerk = -1; return j }, true},
		{"zero acceleration", func(j Joint) Joint { j.MaxAcceleration = 0; return j }, true},
		{"zero velocity", func(j Joint) Joint { j.MaxVelocity = 0; return j }, true},
		{"inverted limits", func(j Joint) Joint { j.MinLimit, j.MaxLimit = 10, -10; return j }, true},
		{
			"index home with shared switch",
			func(j Joint) Joint { j.HomeUseIndex = true; j.HomeIsShared = true; return j },
			true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.mutate(base).Validate()
			if (err != nil) != c.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, c.wantErr)
			}
		})
	}
}

func TestAxisValidate(t *testing.T) {
	ok := Axis{MaxVelocity: 1, MaxAcceleration: 1}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	bad := Axis{MaxVelocity: 0, MaxAcceleration: 1}
	if err := bad.Validate(); err == nil {
		t.Errorf("Validate() = nil, want error")
	}
}

func TestCompTableLookup(t *testing.T) {
	table := CompTable{Points: []CompPoint{
		{Nominal: 0, Forward: 0, Reverse: 0},
		{Nominal: 10, Forward: 0.02, Reverse: 0.01},
		{Nominal: 20, Forward: 0.05, Reverse: 0.04},
	}}

	cases := []struct {
		name    string
		pos     float64
		forward bool
		want    float64
	}{
		{"exact point", 10, true, 0.02},
		{"below range clamps", -5, true, 0},
		{"above range clamps", 25, false, 0.04},
		{"interpolated midpoint", 15, true, 0.035},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := table.Lookup(c.pos, c.forward)
			if diff := got - c.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Lookup(%v, %v) = %v, want %v", c.pos, c.forward, got, c.want)
			}
		})
	}
}

func TestCompTableLookupEmpty(t *testing.T) {
	var table CompTable
	if got := table.Lookup(5, true); got != 0 {
		t.Errorf("Lookup on empty table = %v, want 0", got)
	}
}
