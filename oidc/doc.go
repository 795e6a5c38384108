/*
Package oidc is a relying party client for the ssoFACT identity provider. It
supports the OpenID Connect Authorization Code Flow with ssoFACT's fixed REST
endpoints and its vendor specific user fields, and it calls the ssoFACT
registration API.

ssoFACT doesn't publish a discovery document, so every endpoint is derived from
the configured server domain (see ResolveEndpoints). The id_token returned by
the token endpoint is never decoded; the user's identity comes from the user
endpoint and is remapped onto the standard claims (see MapUserInfo).

Example:

	c, err := oidc.NewConfig(
		"login.example.com",
		clientID,
		clientSecret,
		"https://www.example.com/ssofact/callback",
		oidc.WithRegistrationCredentials(rfbeKey, rfbeSecret),
		oidc.WithSiteURL("https://www.example.com/"),
	)
	if err != nil {
		// handle error
	}
	p, err := oidc.NewProvider(c)
	if err != nil {
		// handle error
	}
	authURL, state, err := p.BuildAuthorizationRedirect(ctx, "/account")
	if err != nil {
		// handle error
	}
	// store state in the user's session and redirect to authURL
*/
package oidc
