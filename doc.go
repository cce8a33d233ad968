// Package accounts implements the authorization and account lifecycle engine
// for the TerraGrade platform. It derives an authorization role from raw
// account state, decides whether that role may reach a request path, manages
// the pending/approved/suspended/denied lifecycle of privileged account
// profiles, guards logins with a lockout counter, and issues short-lived
// one-time codes for email verification.
//
// Credential storage and verification belong to the external identity store;
// this package only consumes its answers.
package accounts
