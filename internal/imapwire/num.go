package imapwire

import (
	"github.com/sandmail/goimap"
	"github.com/sandmail/goimap/internal/imapnum"
)

type NumKind int

const (
	NumKindSeq NumKind = iota + 1
	NumKindUID
)

func NumSetKind(numSet imap.NumSet) NumKind {
	switch numSet.(type) {
	case imap.SeqSet:
		return NumKindSeq
	case imap.UIDSet:
		return NumKindUID
	default:
		panic("imap: invalid NumSet type")
	}
}

// ParseSeqSet parses a sequence-set of message sequence numbers.
func ParseSeqSet(s string) (imap.SeqSet, error) {
	set, err := imapnum.ParseSet[uint32](s)
	return imap.SeqSet(set), err
}

// ParseUIDSet parses a sequence-set of UIDs.
func ParseUIDSet(s string) (imap.UIDSet, error) {
	set, err := imapnum.ParseSet[imap.UID](s)
	return imap.UIDSet(set), err
}

// ParseNumSet parses a sequence-set, returning a SeqSet unless uid is true.
func ParseNumSet(s string, uid bool) (imap.NumSet, error) {
	if uid {
		set, err := ParseUIDSet(s)
		return set, err
	}
	set, err := ParseSeqSet(s)
	return set, err
}
