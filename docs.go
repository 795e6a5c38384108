// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// ssofact provides a relying party for the ssoFACT single sign-on server. The
// oidc package implements the authorization code flow against ssoFACT's fixed
// REST endpoints and its registration API, the session package stores pending
// authorizations and logged in accounts, and the handler package provides the
// http handlers and middleware of a site: the RF_OAUTH_SERVER cookie gate,
// login, logout, forms and registration.
//
// cmd/ssofactd serves all of them.
package ssofact
