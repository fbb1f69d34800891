package imap

import "strconv"

// UID is a message unique identifier, as defined in RFC 3501 section 2.3.1.1.
//
// UIDs are assigned in ascending order as messages are delivered into a
// mailbox. A UID of zero is never valid.
type UID uint32

func (uid UID) String() string {
	return strconv.FormatUint(uint64(uid), 10)
}

// searchResUID is the special UID used to represent the SEARCHRES marker
// ("$") in a UIDSet.
const searchResUID UID = 0xFFFFFFFF

// SearchRes returns a UIDSet referring to the result of the last SEARCH
// command, as defined by the SEARCHRES extension (RFC 5182).
func SearchRes() UIDSet {
	return UIDSet{{Start: searchResUID, Stop: searchResUID}}
}

// IsSearchRes returns true if the UIDSet is the SEARCHRES marker returned by
// SearchRes.
func IsSearchRes(s UIDSet) bool {
	return len(s) == 1 && s[0].Start == searchResUID && s[0].Stop == searchResUID
}
