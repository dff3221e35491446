// Package oauth bridges third-party logins (Google, Naver, Kakao) into
// tripAuth sessions.
//
// A [Provider] wraps golang.org/x/oauth2 with PKCE and knows how to read its
// identity provider's profile document. The [Bridge] runs the HTTP side:
// Start issues state and verifier cookies and redirects to the provider;
// Callback checks state, exchanges the code, provisions the member as
// "{provider}_{id}" through Engine.FederatedLogin, sets the token cookies
// and redirects to an allow-listed redirect_uri with the tokens appended.
//
// # What this package must NOT do
//
//   - Mint or parse tripAuth tokens itself.
//   - Redirect to a host that is not on the allow-list.
package oauth
