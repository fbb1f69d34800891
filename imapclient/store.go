package imapclient

import (
	"fmt"

	"github.com/sandmail/goimap"
	"github.com/sandmail/goimap/internal/imapnum"
	"github.com/sandmail/goimap/internal/imapwire"
)

// seqSetFromNumSet reduces a NumSet down to the raw numeric ranges shared by
// FetchCommand's pending-message matching, which only cares about the
// underlying uint32 values and not whether they are sequence numbers or UIDs.
func seqSetFromNumSet(numSet imap.NumSet) imap.SeqSet {
	switch s := numSet.(type) {
	case imap.SeqSet:
		return s
	case imap.UIDSet:
		var out imap.SeqSet
		for _, r := range imapnum.Set[imap.UID](s) {
			out.AddRange(uint32(r.Start), uint32(r.Stop))
		}
		return out
	default:
		panic("imapclient: invalid NumSet type")
	}
}

// Store sends a STORE command.
//
// Unless StoreFlags.Silent is set, the server will return the updated values.
//
// A nil options pointer is equivalent to a zero options value.
func (c *Client) Store(numSet imap.NumSet, store *imap.StoreFlags, options *imap.StoreOptions) *FetchCommand {
	uid := imapwire.NumSetKind(numSet) == imapwire.NumKindUID
	cmd := &FetchCommand{
		uid:    uid,
		seqSet: seqSetFromNumSet(numSet),
		msgs:   make(chan *FetchMessageData, 128),
	}
	enc := c.beginCommand(uidCmdName("STORE", uid), cmd)
	enc.SP().NumSet(numSet).SP()
	if options != nil && options.UnchangedSince != 0 {
		enc.Special('(').Atom("UNCHANGEDSINCE").SP().ModSeq(options.UnchangedSince).Special(')').SP()
	}
	switch store.Op {
	case imap.StoreFlagsSet:
		// nothing to do
	case imap.StoreFlagsAdd:
		enc.Special('+')
	case imap.StoreFlagsDel:
		enc.Special('-')
	default:
		panic(fmt.Errorf("imapclient: unknown store flags op: %v", store.Op))
	}
	enc.Atom("FLAGS")
	if store.Silent {
		enc.Atom(".SILENT")
	}
	enc.SP().List(len(store.Flags), func(i int) {
		enc.Flag(store.Flags[i])
	})
	enc.end()
	return cmd
}

// StoreLabels sends a STORE command altering the X-GM-LABELS Gmail
// extension.
//
// Requires the X-GM-EXT-1 extension.
//
// A nil options pointer is equivalent to a zero options value.
func (c *Client) StoreLabels(numSet imap.NumSet, store *imap.StoreGMailLabels, options *imap.StoreOptions) *FetchCommand {
	uid := imapwire.NumSetKind(numSet) == imapwire.NumKindUID
	cmd := &FetchCommand{
		uid:    uid,
		seqSet: seqSetFromNumSet(numSet),
		msgs:   make(chan *FetchMessageData, 128),
	}
	enc := c.beginCommand(uidCmdName("STORE", uid), cmd)
	enc.SP().NumSet(numSet).SP()
	if options != nil && options.UnchangedSince != 0 {
		enc.Special('(').Atom("UNCHANGEDSINCE").SP().ModSeq(options.UnchangedSince).Special(')').SP()
	}
	switch store.Op {
	case imap.StoreFlagsSet:
		// nothing to do
	case imap.StoreFlagsAdd:
		enc.Special('+')
	case imap.StoreFlagsDel:
		enc.Special('-')
	default:
		panic(fmt.Errorf("imapclient: unknown store flags op: %v", store.Op))
	}
	enc.Atom("X-GM-LABELS")
	if store.Silent {
		enc.Atom(".SILENT")
	}
	enc.SP().List(len(store.Labels), func(i int) {
		enc.Mailbox(store.Labels[i])
	})
	enc.end()
	return cmd
}
