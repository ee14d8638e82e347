// Package alert evaluates user price alerts against fresh quotes. Alerts are
// single-fire: a triggered alert disarms itself and stays visible until the
// user re-arms or removes it.
package alert

import (
	"context"
	"fmt"
	"math"
	"sync"

	"ai-market-dashboard/internal/logger"
	"ai-market-dashboard/internal/types"
)

// Evaluate reports whether the alert condition holds for the quote, along
// with a human-readable trigger message. proximityPct is the band, in
// percent, within which the price counts as touching the 200-day moving
// average for ma_cross alerts. Inactive alerts never trigger.
func Evaluate(a types.PriceAlert, q types.ExtendedQuote, proximityPct float64) (bool, string) {
	if !a.Active {
		return false, ""
	}

	switch a.Type {
	case types.AlertAbove:
		if q.Price >= a.TargetValue {
			return true, fmt.Sprintf("Price reached $%.2f (target: above $%.2f)", q.Price, a.TargetValue)
		}
	case types.AlertBelow:
		if q.Price <= a.TargetValue {
			return true, fmt.Sprintf("Price dropped to $%.2f (target: below $%.2f)", q.Price, a.TargetValue)
		}
	case types.AlertChangePct:
		if math.Abs(q.ChangePercent) >= a.TargetValue {
			return true, fmt.Sprintf("Daily move of %+.2f%% exceeded the %.2f%% threshold", q.ChangePercent, a.TargetValue)
		}
	case types.AlertMACross:
		if q.MA200 > 0 {
			distance := math.Abs(q.Price-q.MA200) / q.MA200 * 100
			if distance < proximityPct {
				return true, fmt.Sprintf("Price $%.2f is within %.1f%% of the 200-day MA ($%.2f)", q.Price, proximityPct, q.MA200)
			}
		}
	}
	return false, ""
}

// Trigger describes a fired alert.
type Trigger struct {
	Symbol  string
	Type    types.AlertType
	Message string
}

// Manager holds at most one alert per symbol and applies the single-fire
// rule. Safe for concurrent use.
type Manager struct {
	mu           sync.Mutex
	alerts       map[string]types.PriceAlert
	proximityPct float64
}

// NewManager creates an empty manager with the given ma_cross proximity band.
func NewManager(proximityPct float64) *Manager {
	return &Manager{
		alerts:       make(map[string]types.PriceAlert),
		proximityPct: proximityPct,
	}
}

// Set installs or replaces the alert for a symbol. Setting a new alert re-arms
// the slot regardless of a previous fire.
func (m *Manager) Set(symbol string, a types.PriceAlert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[symbol] = a
}

// Get returns the alert for a symbol, if any.
func (m *Manager) Get(symbol string) (types.PriceAlert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[symbol]
	return a, ok
}

// Clear removes the alert for a symbol.
func (m *Manager) Clear(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.alerts, symbol)
}

// Check evaluates the symbol's alert against a fresh quote. On a trigger it
// disarms the alert in place and returns the trigger; subsequent quotes do
// not fire again until the alert is re-armed via Set.
func (m *Manager) Check(ctx context.Context, symbol string, q types.ExtendedQuote) (Trigger, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[symbol]
	if !ok {
		return Trigger{}, false
	}

	fired, msg := Evaluate(a, q, m.proximityPct)
	if !fired {
		return Trigger{}, false
	}

	a.Active = false
	m.alerts[symbol] = a

	logger.AlertTriggered(ctx, symbol, string(a.Type), a.TargetValue, q.Price)
	return Trigger{Symbol: symbol, Type: a.Type, Message: msg}, true
}
