// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package instructions provides the catalog of hidden instructions keyed by
// (category, type).
//
// A Catalog is immutable: overrides produce a new Catalog, so one value can be
// shared by every component that needs it without synchronisation. Two
// categories ship by default:
//
//   - documentTemplates: how to read an attached document (pdf, technicalAnalysis, ...)
//   - conversionInstructions: the format directives (toPdf, toDocx, toExcel)
//
// # Usage
//
//	cat := instructions.Default().WithOverrides(cfg.Instructions)
//	directive := cat.FormatDirective("pdf")
package instructions
