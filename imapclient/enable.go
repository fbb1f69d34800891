package imapclient

import (
	"fmt"

	"github.com/sandmail/goimap"
)

// Enable sends an ENABLE command.
//
// This command requires support for IMAP4rev2 or the ENABLE extension.
func (c *Client) Enable(caps ...imap.Cap) *EnableCommand {
	cmd := &EnableCommand{}
	enc := c.beginCommand("ENABLE", cmd)
	for _, c := range caps {
		enc.SP().Atom(string(c))
	}
	enc.end()
	return cmd
}

func (c *Client) handleEnable() error {
	var caps []string
	for c.dec.SP() {
		var name string
		if !c.dec.ExpectAtom(&name) {
			return fmt.Errorf("in enable-data: %v", c.dec.Err())
		}
		caps = append(caps, name)
	}

	capSet := make(imap.CapSet, len(caps))
	for _, name := range caps {
		capSet[imap.Cap(name)] = struct{}{}
	}

	if cmd := findPendingCmdByType[*EnableCommand](c); cmd != nil {
		cmd.data.Caps = capSet
	}

	return nil
}

// EnableCommand is an ENABLE command.
type EnableCommand struct {
	cmd
	data EnableData
}

func (cmd *EnableCommand) Wait() (*EnableData, error) {
	return &cmd.data, cmd.cmd.Wait()
}

// EnableData is the data returned by the ENABLE command.
type EnableData struct {
	// Capabilities that were successfully enabled
	Caps imap.CapSet
}
