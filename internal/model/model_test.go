package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stablemint/recovery-engine/internal/model"
)

func validLiquidationConfig() model.LiquidationConfig {
	return model.LiquidationConfig{
		MinRatioBps:             15000,
		LiquidationThresholdBps: 12000,
		BonusBps:                1000,
	}
}

func TestLiquidationConfigValidate(t *testing.T) {
	if err := validLiquidationConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*model.LiquidationConfig)
	}{
		{"min ratio too low", func(c *model.LiquidationConfig) { c.MinRatioBps = 10000 }},
		{"threshold above min ratio", func(c *model.LiquidationConfig) { c.LiquidationThresholdBps = 16000 }},
		{"threshold equals min ratio", func(c *model.LiquidationConfig) { c.LiquidationThresholdBps = 15000 }},
		{"zero threshold", func(c *model.LiquidationConfig) { c.LiquidationThresholdBps = 0 }},
		{"bonus too large", func(c *model.LiquidationConfig) { c.BonusBps = 2001 }},
		{"negative bonus", func(c *model.LiquidationConfig) { c.BonusBps = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validLiquidationConfig()
			tc.mutate(&c)
			if err := c.Validate(); !errors.Is(err, model.ErrInvalidLiquidationConfig) {
				t.Errorf("expected ErrInvalidLiquidationConfig, got %v", err)
			}
		})
	}
}

func TestAuctionConfigValidate(t *testing.T) {
	if err := model.DefaultAuctionConfig().Validate(); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*model.AuctionConfig)
	}{
		{"zero duration", func(c *model.AuctionConfig) { c.Duration = 0 }},
		{"zero price factor", func(c *model.AuctionConfig) { c.MinPriceFactorBps = 0 }},
		{"price factor above 100%", func(c *model.AuctionConfig) { c.MinPriceFactorBps = 10001 }},
		{"zero bonus", func(c *model.AuctionConfig) { c.LiquidationBonusBps = 0 }},
		{"zero commit window", func(c *model.AuctionConfig) { c.CommitWindow = 0 }},
		{"reveal before commit window", func(c *model.AuctionConfig) { c.RevealDeadline = 30 * time.Second }},
		{"negative incentive", func(c *model.AuctionConfig) { c.CleanupIncentive = decimal.NewFromInt(-1) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := model.DefaultAuctionConfig()
			tc.mutate(&c)
			if err := c.Validate(); !errors.Is(err, model.ErrInvalidAuctionConfig) {
				t.Errorf("expected ErrInvalidAuctionConfig, got %v", err)
			}
		})
	}
}

func TestAuctionExpired(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &model.DutchAuction{StartTime: start, Duration: time.Hour}

	if a.Expired(start.Add(time.Hour)) {
		t.Error("auction at exactly duration is not yet expired")
	}
	if !a.Expired(start.Add(time.Hour + time.Nanosecond)) {
		t.Error("auction past duration is expired")
	}
}
