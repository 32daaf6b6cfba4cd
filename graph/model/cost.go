package model

import (
	"fmt"
	"sync"
	"time"
)

// ModelPricing defines input and output token costs for LLM models.
// Prices are in USD per 1M tokens.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// defaultModelPricing covers the default models of the bundled adapters.
// Prices subject to change; override with SetCustomPricing.
var defaultModelPricing = map[string]ModelPricing{
	"gpt-4o":                     {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":                {InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4-turbo":                {InputPer1M: 10.00, OutputPer1M: 30.00},
	"claude-3-5-sonnet-20241022": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-5-haiku-20241022":  {InputPer1M: 0.80, OutputPer1M: 4.00},
	"claude-3-opus-20240229":     {InputPer1M: 15.00, OutputPer1M: 75.00},
	"claude-3-haiku-20240307":    {InputPer1M: 0.25, OutputPer1M: 1.25},
	"gemini-1.5-pro":             {InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini-1.5-flash":           {InputPer1M: 0.075, OutputPer1M: 0.30},
	"gemini-2.5-flash":           {InputPer1M: 0.30, OutputPer1M: 2.50},
}

// LLMCall represents a single provider invocation with token usage and cost.
type LLMCall struct {
	RunID        string
	Stage        string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Timestamp    time.Time
}

// RunUsage aggregates the calls made on behalf of one run.
type RunUsage struct {
	Calls        int
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
}

// CostTracker accumulates token usage and cost across runs. Calls to models
// missing from the pricing table are recorded at zero cost.
//
// Usage:
//
//	tracker := model.NewCostTracker("USD")
//	tracker.RecordLLMCall("run-1", "draft", "gpt-4o", 1000, 500)
//	fmt.Printf("$%.4f\n", tracker.RunUsage("run-1").CostUSD)
//
// Thread-safe: All methods use mutex protection for concurrent access.
type CostTracker struct {
	Currency string

	mu         sync.RWMutex
	pricing    map[string]ModelPricing
	calls      []LLMCall
	totalCost  float64
	modelCosts map[string]float64
	runs       map[string]*RunUsage
	enabled    bool
	now        func() time.Time
}

// NewCostTracker creates a tracker with the default pricing table.
func NewCostTracker(currency string) *CostTracker {
	pricing := make(map[string]ModelPricing, len(defaultModelPricing))
	for k, v := range defaultModelPricing {
		pricing[k] = v
	}
	return &CostTracker{
		Currency:   currency,
		pricing:    pricing,
		modelCosts: make(map[string]float64),
		runs:       make(map[string]*RunUsage),
		enabled:    true,
		now:        time.Now,
	}
}

// RecordLLMCall records one call and returns its computed cost.
func (ct *CostTracker) RecordLLMCall(runID, stage, model string, inputTokens, outputTokens int) float64 {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	if !ct.enabled {
		return 0
	}

	pricing := ct.pricing[model]
	cost := (float64(inputTokens)/1_000_000.0)*pricing.InputPer1M +
		(float64(outputTokens)/1_000_000.0)*pricing.OutputPer1M

	ct.calls = append(ct.calls, LLMCall{
		RunID:        runID,
		Stage:        stage,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      cost,
		Timestamp:    ct.now(),
	})
	ct.totalCost += cost
	ct.modelCosts[model] += cost

	ru, ok := ct.runs[runID]
	if !ok {
		ru = &RunUsage{}
		ct.runs[runID] = ru
	}
	ru.Calls++
	ru.InputTokens += int64(inputTokens)
	ru.OutputTokens += int64(outputTokens)
	ru.CostUSD += cost

	return cost
}

// GetTotalCost returns the cumulative cost across all recorded calls.
func (ct *CostTracker) GetTotalCost() float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.totalCost
}

// GetCostByModel returns a copy of the per-model cost breakdown.
func (ct *CostTracker) GetCostByModel() map[string]float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	costs := make(map[string]float64, len(ct.modelCosts))
	for model, cost := range ct.modelCosts {
		costs[model] = cost
	}
	return costs
}

// RunUsage returns the aggregate for runID. Unknown runs yield a zero value.
func (ct *CostTracker) RunUsage(runID string) RunUsage {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	if ru, ok := ct.runs[runID]; ok {
		return *ru
	}
	return RunUsage{}
}

// GetCallHistory returns a copy of all recorded calls in order.
func (ct *CostTracker) GetCallHistory() []LLMCall {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	calls := make([]LLMCall, len(ct.calls))
	copy(calls, ct.calls)
	return calls
}

// SetCustomPricing overrides the pricing of one model.
func (ct *CostTracker) SetCustomPricing(model string, inputPer1M, outputPer1M float64) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.pricing[model] = ModelPricing{InputPer1M: inputPer1M, OutputPer1M: outputPer1M}
}

// Disable temporarily disables cost tracking (useful for testing).
func (ct *CostTracker) Disable() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.enabled = false
}

// Enable re-enables cost tracking after Disable().
func (ct *CostTracker) Enable() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.enabled = true
}

// String returns a human-readable summary of cost tracking.
func (ct *CostTracker) String() string {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	var in, out int
	for _, c := range ct.calls {
		in += c.InputTokens
		out += c.OutputTokens
	}
	return fmt.Sprintf("CostTracker{Runs: %d, Calls: %d, TotalCost: $%.4f %s, InputTokens: %d, OutputTokens: %d}",
		len(ct.runs), len(ct.calls), ct.totalCost, ct.Currency, in, out)
}
