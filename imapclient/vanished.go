package imapclient

import (
	"fmt"

	"github.com/sandmail/goimap"
	"github.com/sandmail/goimap/internal/imapwire"
)

// VanishedData is the data carried by a VANISHED response, as defined by the
// QRESYNC extension (RFC 7162 section 3.2.10).
//
// VANISHED reports UIDs of messages that have been expunged since the client
// last synchronized the mailbox. Unlike EXPUNGE, it doesn't require the
// server to renumber every following sequence number, which is what makes
// QRESYNC resynchronization cheap.
type VanishedData struct {
	// Earlier indicates this VANISHED response was requested via QRESYNC
	// resynchronization rather than reported unilaterally.
	Earlier bool
	UIDs    imap.UIDSet
}

func (*VanishedData) unilateralData() {}

func (c *Client) handleVanished() error {
	data, err := readVanished(c.dec)
	if err != nil {
		return fmt.Errorf("in vanished-response: %v", err)
	}

	if handler := c.options.unilateralDataHandler().Vanished; handler != nil {
		handler(data)
	} else {
		c.enqueueUnilateral(data)
	}

	return nil
}

func readVanished(dec *imapwire.Decoder) (*VanishedData, error) {
	var data VanishedData

	if !dec.ExpectSP() {
		return nil, dec.Err()
	}

	if dec.Special('(') {
		var tag string
		if !dec.ExpectAtom(&tag) || !dec.ExpectSpecial(')') || !dec.ExpectSP() {
			return nil, dec.Err()
		}
		if tag != "EARLIER" {
			return nil, fmt.Errorf("unknown vanished tag %q", tag)
		}
		data.Earlier = true
	}

	if !dec.ExpectUIDSet(&data.UIDs) {
		return nil, dec.Err()
	}

	return &data, nil
}
