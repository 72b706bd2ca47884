package mailbox

import (
	"sync"

	"github.com/cuemby/platsvc/pkg/errs"
)

// Handle is a non-owning reference to a registered mailbox: usable for
// Post, never for Activate/Deactivate.
type Handle struct {
	mailbox Mailbox
}

// Post forwards to the underlying mailbox; a non-owning caller can post
// but never activate or deactivate.
func (h Handle) Post(msg Message) error {
	return h.mailbox.Post(msg, 0)
}

// LookupService is the process-wide map from mailbox name to mailbox.
// Register is a call separate from Activate: neither invokes the other,
// and Register does not check that the mailbox is active, so Find can
// return a mailbox that has not been activated (a Post to it then fails
// with errs.ErrNotActive).
type LookupService struct {
	mu    sync.Mutex
	table map[string]Mailbox
}

func NewLookupService() *LookupService {
	return &LookupService{table: make(map[string]Mailbox)}
}

// Register inserts mailbox under its own address name. The caller must
// hold owner to prove it is the mailbox's creator, mirroring the
// register(owner_handle, mailbox) contract; the owner token itself is not
// stored, since Handle callers never need it.
func (l *LookupService) Register(owner OwnerHandle, mb Mailbox) {
	if owner.mailbox != mb {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.table[mb.Address().Name] = mb
}

// Deregister removes the mailbox owner previously registered.
func (l *LookupService) Deregister(owner OwnerHandle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, mb := range l.table {
		if mb == owner.mailbox {
			delete(l.table, name)
			return
		}
	}
}

// Find returns a non-owning Handle for name, or errs.ErrNotFound.
func (l *LookupService) Find(name string) (Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	mb, ok := l.table[name]
	if !ok {
		return Handle{}, errs.ErrNotFound
	}
	return Handle{mailbox: mb}, nil
}
