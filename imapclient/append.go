package imapclient

import (
	"io"

	"github.com/sandmail/goimap"
	"github.com/sandmail/goimap/internal/imapwire"
)

// Append sends an APPEND command.
//
// The caller must call AppendCommand.Close.
//
// A nil options pointer is equivalent to a zero options value.
func (c *Client) Append(mailbox string, size int64, options *imap.AppendOptions) *AppendCommand {
	cmd := &AppendCommand{}
	cmd.enc = c.beginCommand("APPEND", cmd)
	cmd.enc.SP().Mailbox(mailbox).SP()
	if options != nil && len(options.Flags) > 0 {
		cmd.enc.List(len(options.Flags), func(i int) {
			cmd.enc.Flag(options.Flags[i])
		}).SP()
	}
	if options != nil && !options.Time.IsZero() {
		cmd.enc.String(options.Time.Format(imap.DateTimeLayout)).SP()
	}
	cmd.wc = cmd.enc.Literal(size)
	return cmd
}

// AppendCommand is an APPEND command.
//
// Callers must write the message contents, then call Close.
type AppendCommand struct {
	cmd
	enc  *commandEncoder
	wc   io.WriteCloser
	data imap.AppendData
}

func (cmd *AppendCommand) Write(b []byte) (int, error) {
	return cmd.wc.Write(b)
}

func (cmd *AppendCommand) Close() error {
	err := cmd.wc.Close()
	if cmd.enc != nil {
		cmd.enc.end()
		cmd.enc = nil
	}
	return err
}

func (cmd *AppendCommand) Wait() (*imap.AppendData, error) {
	err := cmd.cmd.Wait()
	return &cmd.data, err
}

// readRespCodeAppendUID parses the APPENDUID response code data, as defined
// by the UIDPLUS extension (RFC 4315 section 3).
func readRespCodeAppendUID(dec *imapwire.Decoder) (uidValidity uint32, uid imap.UID, err error) {
	if !dec.ExpectNumber(&uidValidity) || !dec.ExpectSP() || !dec.ExpectUID(&uid) {
		return 0, 0, dec.Err()
	}
	return uidValidity, uid, nil
}
