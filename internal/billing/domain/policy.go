package domain

import (
	"context"
	"strconv"
	"strings"

	settingsdomain "github.com/MamadouKernel/CantineObeli-sub002/internal/settings/domain"
)

// LoadPolicy reads the billing settings. Every value falls back to its
// default when missing or unparseable; a broken setting must never crash a
// billing run.
func LoadPolicy(ctx context.Context, store settingsdomain.Store) Policy {
	policy := DefaultPolicy()
	policy.Active = loadBool(ctx, store, settingsdomain.KeyBillingActive, policy.Active)
	policy.Percentage = loadInt(ctx, store, settingsdomain.KeyBillingPercentage, policy.Percentage, 0, 100)
	policy.GraceAbsences = loadInt(ctx, store, settingsdomain.KeyGraceAbsences, policy.GraceAbsences, 0, 365)
	policy.FreeCancelHours = loadInt(ctx, store, settingsdomain.KeyFreeCancelHours, policy.FreeCancelHours, 0, 24*31)
	policy.BillWeekends = loadBool(ctx, store, settingsdomain.KeyBillWeekends, policy.BillWeekends)
	policy.BillHolidays = loadBool(ctx, store, settingsdomain.KeyBillHolidays, policy.BillHolidays)
	return policy
}

func loadBool(ctx context.Context, store settingsdomain.Store, key string, def bool) bool {
	raw, err := store.Get(ctx, key)
	if err != nil {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "oui", "on":
		return true
	case "0", "false", "no", "non", "off":
		return false
	default:
		return def
	}
}

func loadInt(ctx context.Context, store settingsdomain.Store, key string, def, min, max int) int {
	raw, err := store.Get(ctx, key)
	if err != nil {
		return def
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || parsed < min || parsed > max {
		return def
	}
	return parsed
}
