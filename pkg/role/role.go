// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package role manages named persona profiles consumed by chat clients.
//
// A Store holds a fixed set of built-in roles, which can be edited for the
// current session but never removed or persisted, plus user-defined custom
// roles that are written through a Backend after every change.
package role

// Role is a persona definition: a unique name, a short description and the
// behavioral prompt handed to the assistant.
type Role struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
	BuiltIn     bool   `json:"builtin,omitempty"`
}

// Built-in role names.
const (
	NameDefault    = "Default"
	NameLawyer     = "Lawyer"
	NameTeacher    = "Teacher"
	NameProgrammer = "Programmer"
	NameWriter     = "Writer"
)

// Builtins returns the roles every store starts with.
func Builtins() []Role {
	return []Role{
		{
			Name:        NameDefault,
			Description: "General assistant",
			Prompt: "You are a helpful assistant able to help users with all kinds of questions. " +
				"Answer in a friendly, professional tone with accurate and useful information. " +
				"Keep answers concise and logically structured so the message comes across clearly. " +
				"When you are not sure about something, say so honestly and point to relevant references where possible.",
		},
		{
			Name:        NameLawyer,
			Description: "Legal advisor",
			Prompt: "You are a professional lawyer with a thorough command of the legal system. " +
				"Provide accurate legal guidance on civil, criminal, commercial and related matters. " +
				"Cite the relevant statutes, explain legal concepts, analyse the key points of a case and give professional advice. " +
				"Stay objective and rigorous, and remind users that final decisions should be taken with a practicing attorney.",
		},
		{
			Name:        NameTeacher,
			Description: "Tutoring",
			Prompt: "You are a patient teacher who adapts to each learner. " +
				"Offer guidance tailored to the user's level and needs, answer questions across subjects, " +
				"help students work through difficult points and suggest effective study methods. " +
				"Lead the reasoning step by step, encourage questions, acknowledge progress, " +
				"and foster independent thinking and curiosity.",
		},
		{
			Name:        NameProgrammer,
			Description: "Technical advisor",
			Prompt: "You are a senior programmer fluent in many languages and technologies. " +
				"Help users solve programming problems, suggest code improvements and explain technical concepts. " +
				"Pay attention to readability, maintainability and performance, recommend good practices and healthy habits. " +
				"For complex problems, lay out a clear approach and a detailed implementation plan.",
		},
		{
			Name:        NameWriter,
			Description: "Writing coach",
			Prompt: "You are an experienced writer at home in many literary genres. " +
				"With imagination and creativity, help users develop plots, shape characters and design dialogue. " +
				"Teach writing techniques that improve structure, language and emotional depth. " +
				"Ground your suggestions in concrete examples and give practical revision notes.",
		},
	}
}

// nameSet is a membership set of role names.
type nameSet map[string]struct{}

func newNameSet(roles []Role) nameSet {
	set := make(nameSet, len(roles))
	for _, r := range roles {
		set[r.Name] = struct{}{}
	}
	return set
}

func (s nameSet) has(name string) bool {
	_, ok := s[name]
	return ok
}
