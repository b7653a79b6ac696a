package types_test

import (
	"encoding/json"
	"testing"

	"github.com/studyhost/studyhost/internal/types"
)

func TestFlexIntUnmarshal(t *testing.T) {
	cases := map[string]int{
		`{"days": 30}`:   30,
		`{"days": "30"}`: 30,
		`{"days": 0}`:    0,
		`{"days": null}`: 0,
	}

	for input, want := range cases {
		var v struct {
			Days types.FlexInt `json:"days"`
		}
		if err := json.Unmarshal([]byte(input), &v); err != nil {
			t.Errorf("Unmarshal(%s) failed: %v", input, err)
			continue
		}
		if v.Days.Int() != want {
			t.Errorf("Unmarshal(%s) = %d, want %d", input, v.Days.Int(), want)
		}
	}
}

func TestFlexIntRejectsGarbage(t *testing.T) {
	for _, input := range []string{`{"days": "abc"}`, `{"days": true}`} {
		var v struct {
			Days types.FlexInt `json:"days"`
		}
		if err := json.Unmarshal([]byte(input), &v); err == nil {
			t.Errorf("Unmarshal(%s) should have failed", input)
		}
	}
}
