package accounts

// Repo is the read/write surface this core needs from the external durable
// account store. SetSessionMarker must be a single atomic overwrite: login
// never needs to observe the prior marker, and last-write-wins between
// near-simultaneous logins is the intended semantic.
type Repo interface {
	Upsert(account *Account) error
	GetByEmail(email string) (*Account, error)
	GetByID(id string) (*Account, error)
	List(offset, limit int) ([]*Account, error)
	SetSessionMarker(id, marker string) error
	SetPassword(id, passwordHash string) error
}
