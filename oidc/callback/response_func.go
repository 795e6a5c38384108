// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"net/http"

	"github.com/newsfactory/ssofact/oidc"
)

// Result is the outcome of a successful callback.
type Result struct {
	// AccountID is the id returned by the Provisioner.
	AccountID string

	// UserInfo holds the user's canonical claims.
	UserInfo *oidc.UserInfo

	// Target is the local path the user should be sent to. It's always a
	// path on this site.
	Target string
}

// SuccessResponseFunc is used by AuthCode to create a http response when the
// callback is successful. It should log the user in and redirect to the
// Result's Target.
type SuccessResponseFunc func(r *Result, w http.ResponseWriter, req *http.Request)

// ErrorResponseFunc is used by AuthCode to create a http response when the
// callback fails.
//
// The function receives the oauth error response sent by ssoFACT, if any, and
// the error raised while processing the request. Errors matching
// oidc.ErrAccessDenied were raised before any upstream call was made.
type ErrorResponseFunc func(respErr *AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request)

// AuthenErrorResponse represents Oauth2 error responses.  See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthError
type AuthenErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Uri         string `json:"error_uri,omitempty"`
}
