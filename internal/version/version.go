/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version holds the build version reported by the CLI, /healthz
// and trace resources.
package version

// Version is set at build time via ldflags:
//
//	-X github.com/friendsincode/wayfarer/internal/version.Version=X.Y.Z
var Version = "0.4.0"
