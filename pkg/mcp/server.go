// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp exposes a role store as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/kairos-roles/pkg/errors"
	"github.com/jllopis/kairos-roles/pkg/role"
)

// Tool names served by Server.
const (
	ToolListRoles  = "list_roles"
	ToolGetRole    = "get_role"
	ToolAddRole    = "add_role"
	ToolEditRole   = "edit_role"
	ToolRemoveRole = "remove_role"
)

// Server wraps the mcp-go server and serializes access to a role store.
// The store is single-threaded while tool calls may arrive concurrently.
type Server struct {
	mu        sync.Mutex
	store     *role.Store
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// RoleSummary is one entry of the list_roles result.
type RoleSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	BuiltIn     bool   `json:"builtin"`
}

type roleInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

// NewServer creates an MCP server backed by store.
func NewServer(store *role.Store, name, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:     store,
		logger:    logger,
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
	}

	s.mcpServer.AddTool(mcp.NewTool(ToolListRoles,
		mcp.WithDescription("List every role with its description"),
	), s.listRoles)
	s.mcpServer.AddTool(mcp.NewTool(ToolGetRole,
		mcp.WithDescription("Get a role including its prompt"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Exact role name")),
	), s.getRole)
	s.mcpServer.AddTool(mcp.NewTool(ToolAddRole,
		mcp.WithDescription("Create a custom role"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Unique role name")),
		mcp.WithString("description", mcp.Description("Short summary shown in listings")),
		mcp.WithString("prompt", mcp.Description("Behavioral instructions for the assistant")),
	), s.addRole)
	s.mcpServer.AddTool(mcp.NewTool(ToolEditRole,
		mcp.WithDescription("Replace the description and prompt of a role"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Exact role name")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("prompt", mcp.Description("New prompt")),
	), s.editRole)
	s.mcpServer.AddTool(mcp.NewTool(ToolRemoveRole,
		mcp.WithDescription("Delete a custom role; built-in roles are protected"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Exact role name")),
	), s.removeRole)

	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdio.
func (s *Server) ServeStdio() error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

func (s *Server) listRoles(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	roles := s.store.Roles()
	s.mu.Unlock()

	out := make([]RoleSummary, 0, len(roles))
	for _, r := range roles {
		out = append(out, RoleSummary{Name: r.Name, Description: r.Description, BuiltIn: r.BuiltIn})
	}
	return jsonResult(out)
}

func (s *Server) getRole(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	r, ok := s.store.Get(name)
	s.mu.Unlock()
	if !ok {
		return errorResult(errors.New(errors.CodeNotFound, "role not found", nil).WithContext("role", name)), nil
	}
	return jsonResult(r)
}

func (s *Server) addRole(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in roleInput
	if err := request.BindArguments(&in); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid add_role arguments", err), nil
	}

	s.mu.Lock()
	err := s.store.Add(ctx, in.Name, in.Description, in.Prompt)
	s.mu.Unlock()
	if err != nil {
		return errorResult(err), nil
	}
	s.logger.InfoContext(ctx, "role added over MCP", "role", in.Name)
	return mcp.NewToolResultText(fmt.Sprintf("role %q added", in.Name)), nil
}

func (s *Server) editRole(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in roleInput
	if err := request.BindArguments(&in); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid edit_role arguments", err), nil
	}

	s.mu.Lock()
	err := s.store.Edit(ctx, in.Name, in.Description, in.Prompt)
	s.mu.Unlock()
	if err != nil {
		return errorResult(err), nil
	}
	s.logger.InfoContext(ctx, "role edited over MCP", "role", in.Name)
	return mcp.NewToolResultText(fmt.Sprintf("role %q updated", in.Name)), nil
}

func (s *Server) removeRole(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	err = s.store.Remove(ctx, name)
	s.mu.Unlock()
	if err != nil {
		return errorResult(err), nil
	}
	s.logger.InfoContext(ctx, "role removed over MCP", "role", name)
	return mcp.NewToolResultText(fmt.Sprintf("role %q removed", name)), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult renders a store error as "[CODE] message" so clients can branch on the code.
func errorResult(err error) *mcp.CallToolResult {
	re := errors.AsRoleError(err)
	return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", re.Code, re.Message))
}
