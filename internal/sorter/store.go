package sorter

import "github.com/meko-christian/mail-sorter/internal/mailstore"

// Store is the IMAP surface the sorter drives. *mailstore.Session
// implements it; tests use an in-memory fake.
type Store interface {
	ListFolders() ([]mailstore.Folder, error)
	Select(name string) (uint32, error)
	Examine(name string) (uint32, error)
	Selected() (name string, readOnly bool)
	Create(name string) error

	Search(withoutFlags []string) ([]uint32, error)
	Flags(uids []uint32) (map[uint32][]string, error)
	Size(uid uint32) (uint32, error)
	Fetch(uid uint32) ([]byte, error)

	SupportsMove() bool
	Move(uid uint32, dest string) error
	Copy(uid uint32, dest string) error
	AddFlags(uid uint32, flags ...string) error
	Expunge(uid uint32) error

	Logout() error
}

var _ Store = (*mailstore.Session)(nil)

// ensureSelected selects folder read-write unless it already is.
func ensureSelected(s Store, folder string) error {
	if name, readOnly := s.Selected(); name == folder && !readOnly {
		return nil
	}

	_, err := s.Select(folder)
	return err
}
