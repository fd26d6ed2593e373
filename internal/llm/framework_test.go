package llm

import (
	"testing"

	"github.com/solsticehq/solstice/internal/model"
)

func TestFrameworkPromptsTotal(t *testing.T) {
	for _, f := range model.Frameworks {
		if f == model.FrameworkCustom {
			continue
		}
		prompt, err := frameworkPrompt(f)
		if err != nil {
			t.Errorf("%s: %v", f, err)
		}
		if prompt == "" {
			t.Errorf("%s: empty prompt", f)
		}
	}
}

func TestFrameworkDataTotal(t *testing.T) {
	form := testForm()
	for _, f := range model.Frameworks {
		data, err := frameworkData(f, form)
		if err != nil {
			t.Errorf("%s: %v", f, err)
			continue
		}
		if len(data) == 0 {
			t.Errorf("%s: empty data mapping", f)
		}
	}
}

func TestFrameworkDataUnknown(t *testing.T) {
	if _, err := frameworkData(model.Framework("astrology"), testForm()); err == nil {
		t.Error("expected error for unknown framework")
	}
	if _, err := frameworkPrompt(model.Framework("astrology")); err == nil {
		t.Error("expected error for unknown framework")
	}
}

func TestCustomFrameworkSeesWholeForm(t *testing.T) {
	data, err := frameworkData(model.FrameworkCustom, testForm())
	if err != nil {
		t.Fatalf("map custom: %v", err)
	}
	if _, ok := data["pastYear"]; !ok {
		t.Error("custom mapping missing pastYear")
	}
	if _, ok := data["yearAhead"]; !ok {
		t.Error("custom mapping missing yearAhead")
	}
}

func TestPatternMapping(t *testing.T) {
	data, err := frameworkData(model.FrameworkPattern, testForm())
	if err != nil {
		t.Fatalf("map pattern: %v", err)
	}
	past, ok := data["past"].(map[string]any)
	if !ok {
		t.Fatalf("past section missing: %#v", data)
	}
	if past["keyEvents"] != "a year of moves" {
		t.Errorf("keyEvents = %v", past["keyEvents"])
	}
}
