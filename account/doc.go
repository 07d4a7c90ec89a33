// Package account provides AccountStore implementations for the engine.
//
// [MemoryStore] keeps everything in process and is meant for tests, demos and
// load generation. [PostgresStore] persists accounts and devices through a
// pgx pool; [Migrate] applies the embedded schema with goose before first use.
//
// Emails are matched case-insensitively in both stores. A guest account is
// keyed by its device id and carries no email or password hash until it is
// promoted by CreateAccount.
package account
