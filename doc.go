// Package auth is the identity core of the storefront: it issues and rotates
// JWT credentials, revokes them before they expire, unifies password and
// social identities into one user record, and merges the anonymous cart into
// the user cart at login.
//
// Credentials:
//   - Access tokens are short lived HS256 JWTs carrying sub, uid and role.
//     Refresh tokens carry a rolling exp clamped to an absolute ceiling
//     (absExp) fixed at first issuance, so rotation never extends a login
//     past the ceiling.
//   - Service.Refresh rotates the pair. With WithRevokeOnRotate the presented
//     refresh token is claimed in the RevocationStore first, so a replayed
//     token fails with ErrBlacklisted.
//   - Service.Signout denylists both tokens for their remaining lifetime.
//
// Identities:
//   - Provider profiles are turned into a CanonicalIdentity by a
//     ProfileNormalizer (see social/providers). The IdentityResolver links the
//     provider to an existing account with the same email, falls back to the
//     provider subject, and creates the user only when neither matches.
//
// Carts:
//   - Every login calls CartReconciler.MergeCartsOnLogin in the background
//     with its own timeout. Failures are logged and never fail the login.
//     Call Service.Drain on shutdown.
//
// Vendors:
//   - ApplyForVendor stores a PENDING application. VendorReview moves it to
//     APPROVED or REJECTED and promotes or demotes the applicant role in the
//     same transaction.
//
// Activity sinks:
//   - ActivitySink receives register, login, refresh, logout, password reset
//     and vendor application events. Sinks run best-effort so they can
//     forward to a database or queue without blocking authentication.
//
// HTTP:
//   - RegisterAuthRoutes mounts the JSON endpoints on a fiber router and
//     RouteAuthenticator owns the credential cookies and the protect
//     middleware. Mount social.HTTPController after them.
package auth
