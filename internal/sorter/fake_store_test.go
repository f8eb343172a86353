package sorter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/emersion/go-imap"

	"github.com/meko-christian/mail-sorter/internal/mailstore"
)

var errNoSuchFolder = errors.New("no such folder")

type fakeMessage struct {
	raw   []byte
	flags []string
}

type fakeFolder struct {
	delimiter  string
	attributes []string
	messages   map[uint32]*fakeMessage
}

// fakeStore is an in-memory mailbox. Message operations act on the selected
// folder and fail unless it was selected read-write.
type fakeStore struct {
	folders map[string]*fakeFolder
	order   []string
	nextUID uint32

	selected string
	readOnly bool

	move bool

	examineReject    map[string]bool
	copyReject       map[string]bool
	moveErr          error
	deleteFlagErr    error
	expungeErr       error
	markErr          error
	keywordSearchErr error
	listErr          error

	examineCalls int
	listCalls    int
	copyCalls    int
	moveCalls    int
	created      []string
	loggedOut    bool
}

func newFakeStore(folders ...string) *fakeStore {
	f := &fakeStore{folders: map[string]*fakeFolder{}, nextUID: 1}
	for _, name := range folders {
		f.addFolder(name, "/")
	}

	return f
}

func (f *fakeStore) addFolder(name, delim string, attrs ...string) {
	f.folders[name] = &fakeFolder{delimiter: delim, attributes: attrs, messages: map[uint32]*fakeMessage{}}
	f.order = append(f.order, name)
}

func (f *fakeStore) deliver(folder, raw string) uint32 {
	uid := f.nextUID
	f.nextUID++
	f.folders[folder].messages[uid] = &fakeMessage{raw: []byte(raw)}

	return uid
}

func (f *fakeStore) uids(folder string) []uint32 {
	var out []uint32
	for uid := range f.folders[folder].messages {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

func (f *fakeStore) flagsOf(folder string, uid uint32) []string {
	return f.folders[folder].messages[uid].flags
}

func (f *fakeStore) ListFolders() ([]mailstore.Folder, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}

	out := make([]mailstore.Folder, 0, len(f.order))
	for _, name := range f.order {
		folder := f.folders[name]
		out = append(out, mailstore.Folder{Name: name, Delimiter: folder.delimiter, Attributes: folder.attributes})
	}

	return out, nil
}

func (f *fakeStore) open(name string, readOnly bool) (uint32, error) {
	folder, ok := f.folders[name]
	if !ok || f.examineReject[name] || !(mailstore.Folder{Attributes: folder.attributes}).Selectable() {
		return 0, fmt.Errorf("%s: %w", name, errNoSuchFolder)
	}

	f.selected, f.readOnly = name, readOnly
	return uint32(len(folder.messages)), nil
}

func (f *fakeStore) Select(name string) (uint32, error) { return f.open(name, false) }

func (f *fakeStore) Examine(name string) (uint32, error) {
	f.examineCalls++
	return f.open(name, true)
}

func (f *fakeStore) Selected() (string, bool) { return f.selected, f.readOnly }

func (f *fakeStore) Create(name string) error {
	if _, ok := f.folders[name]; ok {
		return fmt.Errorf("%s already exists", name)
	}
	if f.copyReject[name] {
		return fmt.Errorf("%s: invalid name", name)
	}

	f.addFolder(name, "/")
	f.created = append(f.created, name)

	return nil
}

func (f *fakeStore) current() (*fakeFolder, error) {
	if f.selected == "" || f.readOnly {
		return nil, errors.New("no folder selected read-write")
	}

	return f.folders[f.selected], nil
}

func (f *fakeStore) Search(withoutFlags []string) ([]uint32, error) {
	if len(withoutFlags) > 0 && f.keywordSearchErr != nil {
		return nil, f.keywordSearchErr
	}
	if _, err := f.current(); err != nil {
		return nil, err
	}

	var out []uint32
	for _, uid := range f.uids(f.selected) {
		msg := f.folders[f.selected].messages[uid]

		skip := false
		for _, flag := range withoutFlags {
			if hasFlag(msg.flags, flag) {
				skip = true
			}
		}

		if !skip {
			out = append(out, uid)
		}
	}

	return out, nil
}

func (f *fakeStore) Flags(uids []uint32) (map[uint32][]string, error) {
	folder, err := f.current()
	if err != nil {
		return nil, err
	}

	out := make(map[uint32][]string, len(uids))
	for _, uid := range uids {
		if msg, ok := folder.messages[uid]; ok {
			out[uid] = msg.flags
		}
	}

	return out, nil
}

func (f *fakeStore) message(uid uint32) (*fakeMessage, error) {
	folder, err := f.current()
	if err != nil {
		return nil, err
	}

	msg, ok := folder.messages[uid]
	if !ok {
		return nil, fmt.Errorf("uid %d: %w", uid, mailstore.ErrNotFound)
	}

	return msg, nil
}

func (f *fakeStore) Size(uid uint32) (uint32, error) {
	msg, err := f.message(uid)
	if err != nil {
		return 0, err
	}

	return uint32(len(msg.raw)), nil
}

func (f *fakeStore) Fetch(uid uint32) ([]byte, error) {
	msg, err := f.message(uid)
	if err != nil {
		return nil, err
	}

	return msg.raw, nil
}

func (f *fakeStore) SupportsMove() bool { return f.move }

func (f *fakeStore) Move(uid uint32, dest string) error {
	f.moveCalls++
	if f.moveErr != nil {
		return f.moveErr
	}

	msg, err := f.message(uid)
	if err != nil {
		return err
	}

	target, ok := f.folders[dest]
	if !ok {
		return fmt.Errorf("%s: %w", dest, errNoSuchFolder)
	}

	target.messages[f.nextUID] = &fakeMessage{raw: msg.raw}
	f.nextUID++
	delete(f.folders[f.selected].messages, uid)

	return nil
}

func (f *fakeStore) Copy(uid uint32, dest string) error {
	f.copyCalls++

	msg, err := f.message(uid)
	if err != nil {
		return err
	}

	target, ok := f.folders[dest]
	if !ok || f.copyReject[dest] {
		return fmt.Errorf("%s: %w", dest, errNoSuchFolder)
	}

	target.messages[f.nextUID] = &fakeMessage{raw: msg.raw}
	f.nextUID++

	return nil
}

func (f *fakeStore) AddFlags(uid uint32, flags ...string) error {
	msg, err := f.message(uid)
	if err != nil {
		return err
	}

	for _, flag := range flags {
		if flag == imap.DeletedFlag && f.deleteFlagErr != nil {
			return f.deleteFlagErr
		}
		if flag != imap.DeletedFlag && f.markErr != nil {
			return f.markErr
		}
		if !hasFlag(msg.flags, flag) {
			msg.flags = append(msg.flags, flag)
		}
	}

	return nil
}

func (f *fakeStore) Expunge(uid uint32) error {
	if f.expungeErr != nil {
		return f.expungeErr
	}

	folder, err := f.current()
	if err != nil {
		return err
	}

	if msg, ok := folder.messages[uid]; ok && hasFlag(msg.flags, imap.DeletedFlag) {
		delete(folder.messages, uid)
	}

	return nil
}

func (f *fakeStore) Logout() error {
	f.loggedOut = true
	return nil
}

var _ Store = (*fakeStore)(nil)

type noLimiter struct{}

func (noLimiter) Wait(_ context.Context) error { return nil }

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rawMessage(subject, body string) string {
	return "From: Alice <alice@example.com>\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: " + subject + "\r\n" +
		"Date: Mon, 02 Jan 2006 15:04:05 +0000\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		body + "\r\n"
}
