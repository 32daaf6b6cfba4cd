package tool

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry(WordCount{}, Sentiment{})

	if got := r.Names(); len(got) != 2 || got[0] != "sentiment" || got[1] != "word_count" {
		t.Errorf("Names() = %v", got)
	}
	if err := r.Register(WordCount{}); !errors.Is(err, ErrDuplicateTool) {
		t.Errorf("expected ErrDuplicateTool, got %v", err)
	}

	out, err := r.Call(context.Background(), "word_count", map[string]interface{}{"text": "a b c"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if Result(out) != "word count: 3" {
		t.Errorf("unexpected result %q", Result(out))
	}

	if _, err := r.Call(context.Background(), "nope", nil); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
}

func TestNewRegistry_PanicsOnDuplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewRegistry(Weather{}, Weather{City: "Novosibirsk"})
}

func TestBuiltins(t *testing.T) {
	tools := Builtins(nil, "", "", 0)
	r := NewRegistry(tools...)
	want := []string{"current_time", "sentence_count", "sentiment", "summary", "translate", "weather", "word_count"}
	got := r.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestInputValidation(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		tool  Tool
		input map[string]interface{}
	}{
		{"word_count missing text", WordCount{}, nil},
		{"sentence_count wrong type", SentenceCount{}, map[string]interface{}{"text": 42}},
		{"sentiment missing text", Sentiment{}, map[string]interface{}{}},
		{"summary bad max_words", Summary{}, map[string]interface{}{"text": "x", "max_words": "ten"}},
		{"summary zero max_words", Summary{}, map[string]interface{}{"text": "x", "max_words": 0}},
		{"weather wrong city type", Weather{}, map[string]interface{}{"city": 7}},
		{"translate missing text", Translate{}, map[string]interface{}{"target": "fr"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.tool.Call(ctx, tt.input); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, tl := range Builtins(nil, "", "", 0) {
		if _, err := tl.Call(ctx, map[string]interface{}{"text": "x"}); !errors.Is(err, context.Canceled) {
			t.Errorf("%s: expected context.Canceled, got %v", tl.Name(), err)
		}
	}
}

func TestWordCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"one  two\tthree\nfour", 4},
	}
	for _, tt := range tests {
		out, err := WordCount{}.Call(context.Background(), map[string]interface{}{"text": tt.text})
		if err != nil {
			t.Fatal(err)
		}
		if out["count"] != tt.want {
			t.Errorf("WordCount(%q) = %v, want %d", tt.text, out["count"], tt.want)
		}
	}
}

func TestSentenceCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"Just one sentence.", 1},
		{"First sentence. Second one! A third?", 3},
		{"No terminal punctuation", 1},
	}
	for _, tt := range tests {
		out, err := SentenceCount{}.Call(context.Background(), map[string]interface{}{"text": tt.text})
		if err != nil {
			t.Fatal(err)
		}
		if out["count"] != tt.want {
			t.Errorf("SentenceCount(%q) = %v, want %d", tt.text, out["count"], tt.want)
		}
	}
}

func TestSentiment(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"A great and successful launch.", SentimentPositive},
		{"A terrible problem, a bad error.", SentimentNegative},
		{"Good news and bad news.", SentimentNeutral},
		{"Nothing to see here.", SentimentNeutral},
		{"GOOD GOOD GOOD but one problem and one error", SentimentNegative},
	}
	for _, tt := range tests {
		out, err := Sentiment{}.Call(context.Background(), map[string]interface{}{"text": tt.text})
		if err != nil {
			t.Fatal(err)
		}
		if out["label"] != tt.want {
			t.Errorf("Sentiment(%q) = %v, want %s", tt.text, out["label"], tt.want)
		}
		if Result(out) != "sentiment: "+tt.want {
			t.Errorf("unexpected result line %q", Result(out))
		}
	}
}

func TestSummary(t *testing.T) {
	long := strings.Repeat("word ", 60)

	out, err := Summary{}.Call(context.Background(), map[string]interface{}{"text": long})
	if err != nil {
		t.Fatal(err)
	}
	summary := Result(out)
	if !strings.HasSuffix(summary, "...") || out["truncated"] != true {
		t.Errorf("expected truncated summary, got %q", summary)
	}
	if n := len(strings.Fields(strings.TrimSuffix(summary, "..."))); n != DefaultSummaryWords {
		t.Errorf("expected %d words, got %d", DefaultSummaryWords, n)
	}

	out, _ = Summary{Words: 5}.Call(context.Background(), map[string]interface{}{"text": "one two three"})
	if Result(out) != "one two three" || out["truncated"] != false {
		t.Errorf("short text should be returned whole, got %q", Result(out))
	}

	out, _ = Summary{Words: 100}.Call(context.Background(), map[string]interface{}{"text": "a b c d", "max_words": 2})
	if Result(out) != "a b..." {
		t.Errorf("max_words input should override default, got %q", Result(out))
	}
}

func TestCurrentTime(t *testing.T) {
	fixed := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	out, err := CurrentTime{Now: func() time.Time { return fixed }}.Call(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if Result(out) != "current time: 2026-10-19 09:30:00" {
		t.Errorf("unexpected result %q", Result(out))
	}
	if out["time"] != fixed {
		t.Errorf("expected raw time %v, got %v", fixed, out["time"])
	}
}

func TestWeather(t *testing.T) {
	tests := []struct {
		name   string
		tool   Weather
		input  map[string]interface{}
		result string
		known  bool
	}{
		{"default city", Weather{}, nil, "weather in Moscow: 15°C, cloudy, humidity 65%", true},
		{"configured city", Weather{City: "Novosibirsk"}, nil, "weather in Novosibirsk: 8°C, sunny, humidity 45%", true},
		{"input overrides", Weather{City: "Novosibirsk"}, map[string]interface{}{"city": "Saint Petersburg"},
			"weather in Saint Petersburg: 12°C, rain, humidity 80%", true},
		{"unknown city", Weather{}, map[string]interface{}{"city": "Kazan"}, "weather in Kazan: 20°C, sunny, humidity 50%", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.tool.Call(context.Background(), tt.input)
			if err != nil {
				t.Fatal(err)
			}
			if Result(out) != tt.result {
				t.Errorf("result = %q, want %q", Result(out), tt.result)
			}
			if out["known"] != tt.known {
				t.Errorf("known = %v, want %v", out["known"], tt.known)
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	out, err := Translate{}.Call(context.Background(), map[string]interface{}{"text": "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if Result(out) != "[EN] hello..." {
		t.Errorf("unexpected translation %q", Result(out))
	}

	long := strings.Repeat("ж", 150)
	out, _ = Translate{Target: "de"}.Call(context.Background(), map[string]interface{}{"text": long})
	want := "[DE] " + strings.Repeat("ж", 100) + "..."
	if Result(out) != want {
		t.Errorf("expected 100-rune prefix, got %q", Result(out))
	}

	out, _ = Translate{}.Call(context.Background(), map[string]interface{}{"text": "x", "target": "fr"})
	if Result(out) != "[FR] x..." {
		t.Errorf("unexpected translation %q", Result(out))
	}
}

func TestMockTool(t *testing.T) {
	mock := &MockTool{
		ToolName:  "weather",
		Responses: []map[string]interface{}{{ResultKey: "first"}, {ResultKey: "second"}},
	}
	for _, want := range []string{"first", "second", "second"} {
		out, err := mock.Call(context.Background(), map[string]interface{}{"city": "x"})
		if err != nil {
			t.Fatal(err)
		}
		if Result(out) != want {
			t.Errorf("got %q, want %q", Result(out), want)
		}
	}
	if mock.CallCount() != 3 || mock.Calls[0]["city"] != "x" {
		t.Errorf("unexpected call history %v", mock.Calls)
	}

	failing := &MockTool{ToolName: "weather", Err: errors.New("lookup failed")}
	if _, err := failing.Call(context.Background(), nil); err == nil {
		t.Error("expected error")
	}
	if failing.CallCount() != 1 {
		t.Error("failed call should be recorded")
	}
}
