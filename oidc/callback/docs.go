/*
Package callback implements the ssoFACT authorization code callback handler.

The handler consumes the State stored in the user's session, exchanges the
code, fetches the user's claims, and hands them to a Provisioner which maps
them onto a local account. The result is passed to a SuccessResponseFunc, and
every failure to an ErrorResponseFunc.

Example:

	h, err := callback.AuthCode(provider, sessions, accounts, successFn, errorFn)
	if err != nil {
		// handle error
	}
	r.Get("/ssofact/callback", h)
*/
package callback
