// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli renders hopla in a terminal.
//
// It holds the shared lipgloss styles, terminal detection, chat list and
// transcript rendering, stream printing for one-shot commands and the
// interactive chat REPL. The REPL is a thin view over session.Controller:
// every state change goes through the controller and the REPL only prints.
//
// Slash commands available in the REPL:
//
//	/new              start a new chat
//	/list             list chats, newest first
//	/open N           select chat N
//	/delete N         delete chat N
//	/show             print the current transcript
//	/notes [text]     show or replace the notes of the current chat
//	/request FILE     load the HTTP request used for @request@
//	/response FILE    load the HTTP response used for @response@
//	/provider [NAME]  show providers or pin chat to NAME ("default" unpins)
//	/help             show help
//	/quit             exit
package cli
