// Package handler integrates the ssoFACT client with a site's HTTP stack: the
// RF_OAUTH_SERVER cookie gate, the logout rewrite, the login, password reset
// and registration routes, and the callback responses.
package handler
