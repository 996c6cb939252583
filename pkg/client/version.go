// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

// API version constants.
//
// The relay uses date-based API versioning. Each version represents the API
// as it existed on that date. Clients can pin to a specific version to keep
// response shapes stable as the server evolves.
//
// When making a request, the client sends the version via the
// Clauderelay-Version header. If no version is specified, the latest version
// is used.
const (
	// LatestVersion is the current API version.
	LatestVersion = "2026-10-01"

	// Version20261001 is the initial API version.
	Version20261001 = "2026-10-01"
)

// VersionHeader is the HTTP header used to specify the API version.
const VersionHeader = "Clauderelay-Version"
