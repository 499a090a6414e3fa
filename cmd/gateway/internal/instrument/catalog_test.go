package instrument_test

import (
	"testing"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/instrument"
)

var defaultRange = instrument.Range{Min: 100, Max: 500}

func TestCatalog_OrderAndNormalization(t *testing.T) {
	c, err := instrument.NewCatalog([]string{" goog", "TSLA ", "amzn"}, nil, defaultRange)
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}

	got := c.Symbols()
	want := []string{"GOOG", "TSLA", "AMZN"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Symbol %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	got[0] = "MUTATED"
	if c.Symbols()[0] != "GOOG" {
		t.Error("Symbols() must return a copy")
	}

	if !c.Supported("TSLA") || c.Supported("BOGUS") {
		t.Error("Supported() mismatch")
	}
}

func TestCatalog_Ranges(t *testing.T) {
	c, err := instrument.NewCatalog(
		[]string{"GOOG", "XYZ"},
		map[string]instrument.Range{"goog": {Min: 2500, Max: 2800}},
		defaultRange,
	)
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}

	if r := c.Range("GOOG"); r.Min != 2500 || r.Max != 2800 {
		t.Errorf("Expected GOOG range, got %+v", r)
	}
	if r := c.Range("XYZ"); r != defaultRange {
		t.Errorf("Expected default range for XYZ, got %+v", r)
	}
}

func TestCatalog_Rejects(t *testing.T) {
	cases := map[string]func() error{
		"empty": func() error {
			_, err := instrument.NewCatalog(nil, nil, defaultRange)
			return err
		},
		"duplicate": func() error {
			_, err := instrument.NewCatalog([]string{"GOOG", "goog"}, nil, defaultRange)
			return err
		},
		"blank symbol": func() error {
			_, err := instrument.NewCatalog([]string{"  "}, nil, defaultRange)
			return err
		},
		"non-positive range": func() error {
			_, err := instrument.NewCatalog([]string{"GOOG"}, map[string]instrument.Range{"GOOG": {Min: 0, Max: 10}}, defaultRange)
			return err
		},
		"inverted default": func() error {
			_, err := instrument.NewCatalog([]string{"GOOG"}, nil, instrument.Range{Min: 10, Max: 5})
			return err
		},
	}

	for name, fn := range cases {
		if fn() == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
