// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package role

import (
	"strings"

	"github.com/jllopis/kairos-roles/pkg/llm"
)

// SystemMessage returns the role prompt as a system message.
func (r Role) SystemMessage() llm.Message {
	return llm.Message{Role: llm.RoleSystem, Content: r.Prompt}
}

// Apply steers a conversation with the role: a leading system message is
// replaced by the role prompt, otherwise one is prepended. A role without a
// prompt leaves messages untouched.
func Apply(r Role, messages []llm.Message) []llm.Message {
	if strings.TrimSpace(r.Prompt) == "" {
		return messages
	}
	if len(messages) > 0 && messages[0].Role == llm.RoleSystem {
		messages = messages[1:]
	}
	out := make([]llm.Message, 0, len(messages)+1)
	out = append(out, r.SystemMessage())
	return append(out, messages...)
}
