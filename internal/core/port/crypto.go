package port

// PasswordHasher hashes and verifies secrets using an adaptive-cost algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}
