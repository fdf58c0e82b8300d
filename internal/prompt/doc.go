// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt composes the single outbound prompt sent to the assistant.
//
// Composition is pure and the ordering is fixed:
//
//	<template instructions joined by ". ">. <user text or fallback>
//
//	<format directive>
//
// The format directive always comes last, after a blank line, so it carries
// the most weight with the downstream model. The same inputs always give the
// same prompt, which is what lets a retry resend it unchanged.
package prompt
