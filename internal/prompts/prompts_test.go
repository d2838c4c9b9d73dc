package prompts

import (
	"strings"
	"testing"

	"github.com/vaanilabs/vaani/internal/langid"
)

func TestRenderInterpolation(t *testing.T) {
	t.Parallel()

	text, used, err := Render(EMIPart1, langid.English, map[string]string{
		"loan_id":  "LOAN123",
		"amount":   "45000",
		"due_date": "2025-11-20",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if used != langid.English {
		t.Errorf("used = %v, want English", used)
	}
	for _, want := range []string{"LOAN123", "45000", "2025-11-20"} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered text missing %q: %s", want, text)
		}
	}
	if strings.Contains(text, "{") {
		t.Errorf("unreplaced placeholder in %q", text)
	}
}

func TestRenderHindi(t *testing.T) {
	t.Parallel()

	text, used, err := Render(Greeting, langid.Hindi, map[string]string{"name": "राजेश"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if used != langid.Hindi {
		t.Errorf("used = %v, want Hindi", used)
	}
	if !strings.Contains(text, "राजेश") {
		t.Errorf("name not interpolated: %s", text)
	}
}

func TestRenderEnglishFallback(t *testing.T) {
	t.Parallel()

	// Odia has no translations; expect the English template and English as
	// the reported language so TTS can pick the right voice.
	text, used, err := Render(AgentConnect, langid.Odia, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if used != langid.English {
		t.Errorf("used = %v, want English fallback", used)
	}
	if !strings.Contains(text, "agent") {
		t.Errorf("fallback text unexpected: %s", text)
	}
}

func TestRenderMissingParamEmpty(t *testing.T) {
	t.Parallel()

	text, _, err := Render(Greeting, langid.English, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(text, "{name}") {
		t.Errorf("placeholder left in place: %s", text)
	}
}

func TestRenderUnknownID(t *testing.T) {
	t.Parallel()

	if _, _, err := Render(ID("weather_report"), langid.English, nil); err == nil {
		t.Error("Render(unknown) = nil error")
	}
}

func TestEveryTemplateHasEnglish(t *testing.T) {
	t.Parallel()

	for _, id := range []ID{Greeting, EMIPart1, EMIPart2, AgentConnect, GoodbyeDecline, TransferNotice} {
		if _, ok := catalog[id][langid.English]; !ok {
			t.Errorf("template %q has no English entry", id)
		}
	}
}
