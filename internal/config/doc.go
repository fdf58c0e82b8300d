// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for docchat.
//
// Configuration is TOML with sensible defaults, an optional .env file,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - APIConfig: Service URLs, token, timeout and rate limit
//   - DeliveryConfig: Retry loop bounds and delays
//   - Duration: time.Duration written as a TOML string
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (DOCCHAT_*), including those set by .env
//   - ~/.docchat/config.toml
//   - Built-in defaults
//
// # Usage
//
//	_ = config.LoadDotEnv()
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	retries := cfg.Delivery.MaxRetries
package config
