// Package mailbox implements the Mailbox framework: addresses, the
// local/same-node-shared-memory/distributed mailbox variants behind one
// posting contract, the Lookup Service, the Message Factory registry, the
// per-mailbox timer reactor, and the MailboxProcessor dispatch loop.
package mailbox

import "fmt"

// Location distinguishes the three mailbox transports an Address can name.
type Location uint8

const (
	LocationLocal Location = iota
	LocationLocalSM
	LocationDistributed
)

func (l Location) String() string {
	switch l {
	case LocationLocal:
		return "local"
	case LocationLocalSM:
		return "local-sm"
	case LocationDistributed:
		return "distributed"
	default:
		return "unknown"
	}
}

// Address names a mailbox. Shelf/Slot/NEID/INETAddr/RedundantRole only
// carry meaning for LocationDistributed addresses; they are the zero value
// for local and same-node-SM addresses.
type Address struct {
	Location      Location
	Name          string
	Shelf         int
	Slot          int
	NEID          string
	INETAddr      string
	RedundantRole string
}

// NewLocalAddress builds a LocationLocal address, enforcing the invariant
// that a local address never carries node-identifying fields (those only
// make sense once a mailbox is reachable from another node).
func NewLocalAddress(name string) Address {
	return Address{Location: LocationLocal, Name: name}
}

// NewLocalSMAddress builds a LocationLocalSM address for name; the
// shared-memory object names derived from it (queue, mutex, semaphore) are
// computed by smMailbox, not stored here.
func NewLocalSMAddress(name string) Address {
	return Address{Location: LocationLocalSM, Name: name}
}

// NewDistributedAddress builds a LocationDistributed address reachable at
// inetAddr.
func NewDistributedAddress(name, neid, inetAddr string) Address {
	return Address{Location: LocationDistributed, Name: name, NEID: neid, INETAddr: inetAddr}
}

func (a Address) String() string {
	if a.Location == LocationDistributed {
		return fmt.Sprintf("%s@%s(neid=%s)", a.Name, a.INETAddr, a.NEID)
	}
	return fmt.Sprintf("%s(%s)", a.Name, a.Location)
}
