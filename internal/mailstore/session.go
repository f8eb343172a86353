package mailstore

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	uidplus "github.com/emersion/go-imap-uidplus"
	"github.com/emersion/go-imap/client"
)

var (
	// ErrConnection wraps every dial and login failure.
	ErrConnection = errors.New("imap connection failed")
	// ErrNotFound is returned when a UID yields no message data.
	ErrNotFound = errors.New("message not found")
)

// Options describes how to reach and authenticate against the IMAP server.
type Options struct {
	Server   string
	Port     int
	TLS      bool
	Username string
	Password string
	Timeout  time.Duration
	Logger   *slog.Logger
}

func (o Options) address() string {
	return fmt.Sprintf("%s:%d", o.Server, o.Port)
}

// Session is a single authenticated IMAP connection. It is not safe for
// concurrent use: IMAP commands on one connection are strictly sequential.
type Session struct {
	c        *client.Client
	uidPlus  *uidplus.Client
	log      *slog.Logger
	selected string
	readOnly bool
	caps     map[string]bool
}

// Dial connects and logs in. When the preferred transport fails the opposite
// one is tried, since bridges often listen plaintext+STARTTLS on a port users
// configure as TLS and vice versa.
func Dial(opts Options) (*Session, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	c, err := connect(opts, opts.TLS)
	if err != nil {
		log.Debug("First connection attempt failed, retrying with other transport",
			"address", opts.address(), "tls", opts.TLS, "error", err)

		var retryErr error
		c, retryErr = connect(opts, !opts.TLS)
		if retryErr != nil {
			return nil, fmt.Errorf("%w: %s: %v (retry: %v)", ErrConnection, opts.address(), err, retryErr)
		}
	}

	if opts.Timeout > 0 {
		c.Timeout = opts.Timeout
	}

	if err := c.Login(opts.Username, opts.Password); err != nil {
		_ = c.Logout() // clean up if login fails
		return nil, fmt.Errorf("%w: failed to login as %s: %v", ErrConnection, opts.Username, err)
	}

	log.Info("Connected to IMAP server", "address", opts.address())

	return &Session{c: c, uidPlus: uidplus.NewClient(c), log: log, caps: map[string]bool{}}, nil
}

func connect(opts Options, useTLS bool) (*client.Client, error) {
	dialer := &net.Dialer{Timeout: opts.Timeout}

	tlsConfig := &tls.Config{
		ServerName: opts.Server, // ensures correct certificate validation
	}

	if useTLS {
		return client.DialWithDialerTLS(dialer, opts.address(), tlsConfig)
	}

	c, err := client.DialWithDialer(dialer, opts.address())
	if err != nil {
		return nil, err
	}

	if ok, _ := c.SupportStartTLS(); ok {
		if err := c.StartTLS(tlsConfig); err != nil {
			_ = c.Logout()
			return nil, fmt.Errorf("starttls: %w", err)
		}
	}

	return c, nil
}

// Logout ends the session.
func (s *Session) Logout() error {
	if err := s.c.Logout(); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	s.log.Info("Logged out from IMAP server")
	return nil
}

// ListFolders returns every mailbox visible to the user.
func (s *Session) ListFolders() ([]Folder, error) {
	ch := make(chan *imap.MailboxInfo, 16)
	done := make(chan error, 1)

	go func() {
		done <- s.c.List("", "*", ch)
	}()

	var folders []Folder
	for info := range ch {
		f := Folder{Name: info.Name, Delimiter: info.Delimiter, Attributes: info.Attributes}
		s.log.Debug("Raw folder entry", "entry", f.Raw())
		folders = append(folders, f)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}

	return folders, nil
}

// Select opens name read-write and returns its message count.
func (s *Session) Select(name string) (uint32, error) {
	return s.open(name, false)
}

// Examine opens name read-only. It is used as an existence probe.
func (s *Session) Examine(name string) (uint32, error) {
	return s.open(name, true)
}

func (s *Session) open(name string, readOnly bool) (uint32, error) {
	mbox, err := s.c.Select(name, readOnly)
	if err != nil {
		// A failed SELECT leaves the connection in the authenticated state.
		s.selected = ""
		return 0, fmt.Errorf("select %q: %w", name, err)
	}

	s.selected = name
	s.readOnly = readOnly

	return mbox.Messages, nil
}

// Selected returns the currently selected folder and whether it is read-only.
func (s *Session) Selected() (string, bool) {
	return s.selected, s.readOnly
}

// Create creates a mailbox.
func (s *Session) Create(name string) error {
	if err := s.c.Create(name); err != nil {
		return fmt.Errorf("create %q: %w", name, err)
	}

	return nil
}

// Search returns the UIDs in the selected folder that carry none of
// withoutFlags. An empty list searches ALL.
func (s *Session) Search(withoutFlags []string) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = withoutFlags

	uids, err := s.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	return uids, nil
}

// Flags returns the flags of each requested UID.
func (s *Session) Flags(uids []uint32) (map[uint32][]string, error) {
	out := make(map[uint32][]string, len(uids))
	if len(uids) == 0 {
		return out, nil
	}

	msgs, err := s.fetch(uids, []imap.FetchItem{imap.FetchFlags, imap.FetchUid})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch flags: %w", err)
	}

	for _, msg := range msgs {
		out[msg.Uid] = msg.Flags
	}

	return out, nil
}

// Size returns RFC822.SIZE of a message without downloading it.
func (s *Session) Size(uid uint32) (uint32, error) {
	msgs, err := s.fetch([]uint32{uid}, []imap.FetchItem{imap.FetchRFC822Size, imap.FetchUid})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch size of %d: %w", uid, err)
	}

	if len(msgs) == 0 {
		return 0, fmt.Errorf("%w: uid %d", ErrNotFound, uid)
	}

	return msgs[0].Size, nil
}

// Fetch downloads the raw RFC 5322 message without setting \Seen.
func (s *Session) Fetch(uid uint32) ([]byte, error) {
	section := &imap.BodySectionName{Peek: true}

	msgs, err := s.fetch([]uint32{uid}, []imap.FetchItem{section.FetchItem(), imap.FetchUid})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message %d: %w", uid, err)
	}

	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: uid %d", ErrNotFound, uid)
	}

	body := msgs[0].GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("%w: uid %d has no body", ErrNotFound, uid)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %d: %w", uid, err)
	}

	return raw, nil
}

func (s *Session) fetch(uids []uint32, items []imap.FetchItem) ([]*imap.Message, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)

	go func() {
		done <- s.c.UidFetch(seqset, items, messages)
	}()

	out := make([]*imap.Message, 0, len(uids))
	for msg := range messages {
		out = append(out, msg)
	}

	if err := <-done; err != nil {
		return nil, err
	}

	return out, nil
}

// SupportsMove reports whether the server advertises the MOVE extension.
func (s *Session) SupportsMove() bool {
	return s.supports("MOVE")
}

// supports caches capability answers for the session.
func (s *Session) supports(capability string) bool {
	ok, cached := s.caps[capability]
	if cached {
		return ok
	}

	ok, err := s.c.Support(capability)
	if err != nil {
		s.log.Debug("Capability query failed", "capability", capability, "error", err)
	}

	s.caps[capability] = ok
	return ok
}

// Move issues UID MOVE.
func (s *Session) Move(uid uint32, dest string) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	if err := s.c.UidMove(seqset, dest); err != nil {
		return fmt.Errorf("move %d to %q: %w", uid, dest, err)
	}

	return nil
}

// Copy issues UID COPY.
func (s *Session) Copy(uid uint32, dest string) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	if err := s.c.UidCopy(seqset, dest); err != nil {
		return fmt.Errorf("copy %d to %q: %w", uid, dest, err)
	}

	return nil
}

// AddFlags adds flags to a message in the selected folder.
func (s *Session) AddFlags(uid uint32, flags ...string) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true) // true = silent update
	values := make([]any, 0, len(flags))
	for _, f := range flags {
		values = append(values, f)
	}

	if err := s.c.UidStore(seqset, item, values, nil); err != nil {
		return fmt.Errorf("failed to add %s to %d: %w", strings.Join(flags, " "), uid, err)
	}

	return nil
}

// Expunge permanently removes uid once it carries \Deleted. Servers with
// UIDPLUS expunge only that message; others expunge every \Deleted message
// in the selected folder.
func (s *Session) Expunge(uid uint32) error {
	if s.supports("UIDPLUS") {
		seqset := new(imap.SeqSet)
		seqset.AddNum(uid)

		if err := s.uidPlus.UidExpunge(seqset, nil); err != nil {
			return fmt.Errorf("uid expunge %d: %w", uid, err)
		}

		return nil
	}

	if err := s.c.Expunge(nil); err != nil {
		return fmt.Errorf("expunge: %w", err)
	}

	return nil
}
