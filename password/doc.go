// Package password hashes and verifies account passwords.
//
// # Output format
//
// New hashes are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Bcrypt hashes ($2a$, $2b$, $2y$) are still verified so that accounts
// created by older deployments keep working. A [Chain] routes each stored
// hash to the hasher that understands it and reports through
// [Chain.NeedsUpgrade] when the caller should re-hash after a successful
// login.
//
// # Architecture boundaries
//
// This package owns hashing, verification and the byte-length bounds
// ([MinLength], [MaxLength]). It does not know where hashes are stored.
//
// # What this package must NOT do
//
//   - Import any other goContacts package.
//   - Log plaintext passwords.
package password
