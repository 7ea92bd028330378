// Package stores opens the Postgres database behind the account and
// contact repositories and applies the embedded goose migrations.
//
// # Sub-packages
//
//   - users: goContacts.UserStore over the users table
//   - contacts: goContacts.ContactStore over the contact table
//   - migrations: embedded SQL migrations
//
// # What this package must NOT do
//
//   - Cache rows; the principal cache lives in session.
//   - Make authentication decisions.
package stores
