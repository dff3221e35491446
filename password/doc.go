// Package password hashes and verifies member passwords with argon2id.
//
// Hashes use the PHC string format with unpadded base64 segments:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
//
// # What this package must NOT do
//
//   - Store or look up passwords. Callers pass plaintext and stored hashes.
//   - Log plaintext passwords.
package password
