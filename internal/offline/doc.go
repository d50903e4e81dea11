// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline restricts provider endpoints to the local machine.
//
// With local_only set in the configuration (or HOPLA_LOCAL_ONLY=true), the
// router refuses any provider whose endpoints resolve to a non-loopback host,
// so request and response bodies never leave the machine.
//
//	if err := offline.ValidateEndpoint(endpoint, cfg.LocalOnly); err != nil {
//		return err
//	}
package offline
