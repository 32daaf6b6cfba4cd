package tool

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Defaults for the lookup tools.
const (
	DefaultLocation       = "Moscow"
	DefaultTargetLanguage = "en"
	TimeLayout            = "2006-01-02 15:04:05"

	translatePrefixRunes = 100
)

// Conditions is one weather table entry.
type Conditions struct {
	Temp      string
	Condition string
	Humidity  string
}

var weatherTable = map[string]Conditions{
	"Moscow":           {Temp: "15°C", Condition: "cloudy", Humidity: "65%"},
	"Saint Petersburg": {Temp: "12°C", Condition: "rain", Humidity: "80%"},
	"Novosibirsk":      {Temp: "8°C", Condition: "sunny", Humidity: "45%"},
	"Yekaterinburg":    {Temp: "10°C", Condition: "partly cloudy", Humidity: "60%"},
}

var genericWeather = Conditions{Temp: "20°C", Condition: "sunny", Humidity: "50%"}

// CurrentTime reports the time of its clock.
type CurrentTime struct {
	// Now is the clock. Nil means time.Now.
	Now func() time.Time
}

func (CurrentTime) Name() string { return "current_time" }

func (c CurrentTime) Call(ctx context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	t := now()
	return map[string]interface{}{
		"time":    t,
		ResultKey: "current time: " + t.Format(TimeLayout),
	}, nil
}

// Weather looks "city" up in a fixed table. Unknown cities get a generic
// entry rather than an error.
type Weather struct {
	// City is used when the input does not name one. Empty means
	// DefaultLocation.
	City string
}

func (Weather) Name() string { return "weather" }

func (w Weather) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def := w.City
	if def == "" {
		def = DefaultLocation
	}
	city, err := optionalString(input, "city", def)
	if err != nil {
		return nil, err
	}

	c, known := weatherTable[city]
	if !known {
		c = genericWeather
	}
	return map[string]interface{}{
		"city":      city,
		"temp":      c.Temp,
		"condition": c.Condition,
		"humidity":  c.Humidity,
		"known":     known,
		ResultKey:   fmt.Sprintf("weather in %s: %s, %s, humidity %s", city, c.Temp, c.Condition, c.Humidity),
	}, nil
}

// Translate is a stand-in translator: it tags the first 100 characters of
// "text" with the upper-cased target language.
type Translate struct {
	// Target is used when the input does not set "target". Empty means
	// DefaultTargetLanguage.
	Target string
}

func (Translate) Name() string { return "translate" }

func (tr Translate) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := stringParam(input, "text")
	if err != nil {
		return nil, err
	}
	def := tr.Target
	if def == "" {
		def = DefaultTargetLanguage
	}
	target, err := optionalString(input, "target", def)
	if err != nil {
		return nil, err
	}

	runes := []rune(text)
	if len(runes) > translatePrefixRunes {
		runes = runes[:translatePrefixRunes]
	}
	translated := fmt.Sprintf("[%s] %s...", strings.ToUpper(target), string(runes))
	return map[string]interface{}{
		"target":      target,
		"translation": translated,
		ResultKey:     translated,
	}, nil
}

// Builtins returns every built-in tool configured with the given defaults.
func Builtins(now func() time.Time, city, target string, summaryWords int) []Tool {
	return []Tool{
		CurrentTime{Now: now},
		WordCount{},
		SentenceCount{},
		Sentiment{},
		Summary{Words: summaryWords},
		Weather{City: city},
		Translate{Target: target},
	}
}
