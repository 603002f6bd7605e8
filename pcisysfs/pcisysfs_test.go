package pcisysfs

import "testing"

func TestParseBDF(t *testing.T) {
	cases := []struct {
		addr    string
		want    bdf
		wantErr bool
	}{
		{"0000:03:00.0", bdf{0, 3, 0, 0}, false},
		{"0000:01:00.1", bdf{0, 1, 0, 1}, false},
		{"not-an-address", bdf{}, true},
		{"0000:03:00", bdf{}, true},
	}

	for _, c := range cases {
		got, err := parseBDF(c.addr)
		if c.wantErr {
			if err == nil {
				t.Errorf("parseBDF(%q): want error, got nil", c.addr)
			}

			continue
		}

		if err != nil {
			t.Errorf("parseBDF(%q): unexpected error %v", c.addr, err)

			continue
		}

		if got != c.want {
			t.Errorf("parseBDF(%q) = %+v, want %+v", c.addr, got, c.want)
		}
	}
}

func TestMapUnknownDevice(t *testing.T) {
	if _, err := Map("ffff:ff:1f.7"); err == nil {
		t.Fatalf("Map on a nonexistent device: want error, got nil")
	}
}
