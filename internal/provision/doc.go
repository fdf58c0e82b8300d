// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provision makes sure a conversation exists before a message is
// tied to a transcript.
//
// The service has no separate "create conversation" call that the client
// uses: the first message sent without a conversation id creates one. The
// conversation list endpoint is eventually consistent, so after that send
// the provisioner waits a short settle delay and looks the new id up in the
// list, refreshing a bounded number of times.
//
// # Usage
//
//	p := provision.New(client, provision.Options{})
//	res, err := p.Ensure(ctx, activeID, cloud.SendRequest{Prompt: prompt})
//	if res.Created {
//	    // res.Immediate is the reply to the first message
//	}
package provision
