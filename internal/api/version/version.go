// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package version implements date-based versioning of the clauderelay REST
// API. Clients pin a version with the Clauderelay-Version header; requests
// without one get LatestVersion.
//
// Only one version exists so far. The negotiated version is echoed in the
// response header.
package version

import "context"

// Version constants.
const (
	// Version20261001 is the initial API version.
	Version20261001 = "2026-10-01"
)

// LatestVersion is the current default API version.
var LatestVersion = Version20261001

// Header is the HTTP header used to specify the API version.
const Header = "Clauderelay-Version"

type contextKey string

const versionKey contextKey = "api-version"

// FromContext returns the API version stored in ctx, or LatestVersion.
func FromContext(ctx context.Context) string {
	v, ok := ctx.Value(versionKey).(string)
	if !ok || v == "" {
		return LatestVersion
	}
	return v
}

// WithContext returns a copy of ctx carrying version.
func WithContext(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, versionKey, version)
}
