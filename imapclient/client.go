package imapclient

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sandmail/goimap"
	"github.com/sandmail/goimap/internal/imapwire"
)

const (
	// respReadTimeout bounds how long the client waits for an ordinary
	// tagged or untagged response line.
	respReadTimeout = 30 * time.Second
	// literalReadTimeout bounds reading a single FETCH literal, which can be
	// arbitrarily large (e.g. BODY[]).
	literalReadTimeout = 5 * time.Minute
)

// Options contains options for Client.
type Options struct {
	// Raw ingress and egress data will be written to this writer, if any
	DebugWriter io.Writer
	// Handler for unilateral data, i.e. data not requested by a command in
	// flight. If nil, UnilateralDataPolicy governs what happens to it.
	UnilateralDataHandler *UnilateralDataHandler
	// Policy applied to unilateral data for which UnilateralDataHandler has
	// no matching callback installed. The default, UnilateralDataPolicyEnqueue,
	// buffers the data for retrieval via Client.UnsolicitedData.
	UnilateralDataPolicy UnilateralDataPolicy
	// Timeout for writing the final DONE line of an IDLE command. If zero,
	// no deadline is set.
	CmdWriteTimeout time.Duration
	// IdleTimeout bounds how long an IDLE command is kept running before the
	// client automatically reissues it (DONE followed by a fresh IDLE),
	// refreshing the server-side inactivity timer without the caller having
	// to intervene. If zero, idleKeepaliveInterval is used.
	IdleTimeout time.Duration
	// WordDecoder decodes RFC 2047 encoded words found in ENVELOPE and
	// BODYSTRUCTURE text fields. If nil, a decoder resolving charsets via
	// golang.org/x/text/encoding/htmlindex is used.
	WordDecoder *mime.WordDecoder
	// Logger receives structured diagnostics about connection lifecycle
	// events (state transitions, read-loop termination). If nil,
	// logging is disabled.
	Logger *zerolog.Logger
}

func (options *Options) logger() *zerolog.Logger {
	if options.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return options.Logger
}

func (options *Options) wrapReadWriter(rw io.ReadWriter) io.ReadWriter {
	if options.DebugWriter == nil {
		return rw
	}
	return struct {
		io.Reader
		io.Writer
	}{
		Reader: io.TeeReader(rw, options.DebugWriter),
		Writer: io.MultiWriter(rw, options.DebugWriter),
	}
}

func (options *Options) unilateralDataHandler() *UnilateralDataHandler {
	if options.UnilateralDataHandler == nil {
		return &UnilateralDataHandler{}
	}
	return options.UnilateralDataHandler
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("imapclient: unknown charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

func (options *Options) decodeText(s string) (string, error) {
	wd := options.WordDecoder
	if wd == nil {
		wd = &mime.WordDecoder{CharsetReader: charsetReader}
	}
	out, err := wd.DecodeHeader(s)
	if err != nil {
		return s, err
	}
	return out, nil
}

// UnilateralDataHandler handles unilateral data.
//
// The Expunge, Mailbox and Vanished handlers block the client while running.
// If the caller wants to run long operations, a separate goroutine should be
// started. The Fetch handler is always run in its own goroutine.
type UnilateralDataHandler struct {
	Expunge  func(seqNum uint32)
	Mailbox  func(data *UnilateralDataMailbox)
	Fetch    func(msg *FetchMessageData)
	Vanished func(data *VanishedData)
}

// UnilateralDataPolicy controls delivery of unilateral data for which
// UnilateralDataHandler has no matching callback.
type UnilateralDataPolicy int

const (
	// UnilateralDataPolicyEnqueue buffers unilateral data in a bounded
	// queue, drained via Client.UnsolicitedData. This is the default.
	UnilateralDataPolicyEnqueue UnilateralDataPolicy = iota
	// UnilateralDataPolicyDiscard drops unilateral data immediately.
	UnilateralDataPolicyDiscard
)

// unsolicitedQueueCap bounds the queue backing Client.UnsolicitedData.
const unsolicitedQueueCap = 64

// UnilateralData is data the server sent without being requested by a
// pending command. See Client.UnsolicitedData.
type UnilateralData interface {
	unilateralData()
}

// UnilateralDataExpunge reports a message sequence number removed by an
// unsolicited EXPUNGE response.
type UnilateralDataExpunge struct {
	SeqNum uint32
}

func (UnilateralDataExpunge) unilateralData() {}

// UnilateralDataMailbox describes a mailbox status update.
type UnilateralDataMailbox struct {
	NumMessages *uint32
	Flags       []imap.Flag
}

func (*UnilateralDataMailbox) unilateralData() {}

// enqueueUnilateral delivers data with no registered callback according to
// the configured UnilateralDataPolicy. When enqueuing, it blocks until the
// bounded queue has room: unilateral data is never silently dropped unless
// UnilateralDataPolicyDiscard is set.
func (c *Client) enqueueUnilateral(data UnilateralData) {
	if c.options.UnilateralDataPolicy == UnilateralDataPolicyDiscard {
		return
	}
	c.unsolicited <- data
}

// UnsolicitedData returns the channel on which unilateral server data is
// delivered when UnilateralDataPolicy is UnilateralDataPolicyEnqueue (the
// default) and no matching UnilateralDataHandler callback is installed.
//
// The channel has bounded capacity; the read loop blocks once it's full, so
// callers using the default policy must drain it.
func (c *Client) UnsolicitedData() <-chan UnilateralData {
	return c.unsolicited
}

// Client is an IMAP client.
//
// IMAP commands are exposed as methods. These methods will block until the
// command has been sent to the server, but won't block until the server sends
// a response. They return a command struct which can be used to wait for the
// server response, see e.g. Command.
type Client struct {
	conn     net.Conn
	options  Options
	br       *bufio.Reader
	bw       *bufio.Writer
	dec      *imapwire.Decoder
	encMutex sync.Mutex

	mutex       sync.Mutex
	state       imap.ConnState
	caps        imap.CapSet
	mailbox     *imap.SelectData
	cmdTag      uint64
	pendingCmds []command
	contReqs    []continuationRequest

	greeting    chan error
	unsolicited chan UnilateralData
}

// New creates a new IMAP client.
//
// This function doesn't perform I/O.
//
// A nil options pointer is equivalent to a zero options value.
func New(conn net.Conn, options *Options) *Client {
	if options == nil {
		options = &Options{}
	}

	rw := options.wrapReadWriter(conn)
	br := bufio.NewReader(rw)
	bw := bufio.NewWriter(rw)

	client := &Client{
		conn:        conn,
		options:     *options,
		br:          br,
		bw:          bw,
		dec:         imapwire.NewDecoder(br),
		state:       imap.ConnStateNotAuthenticated,
		greeting:    make(chan error, 1),
		unsolicited: make(chan UnilateralData, unsolicitedQueueCap),
	}
	go client.read()
	return client
}

// DialTLS connects to an IMAP server with implicit TLS.
func DialTLS(address string, options *Options) (*Client, error) {
	conn, err := tls.Dial("tcp", address, nil)
	if err != nil {
		return nil, err
	}
	return New(conn, options), nil
}

// Close immediately closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// State returns the current connection state.
func (c *Client) State() imap.ConnState {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state
}

// Mailbox returns the state of the currently selected mailbox.
//
// Returns nil if the client isn't in the selected state.
func (c *Client) Mailbox() *imap.SelectData {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.mailbox
}

// Caps returns the capabilities advertised by the server.
//
// If the capabilities haven't been fetched yet, a CAPABILITY command is sent.
func (c *Client) Caps() imap.CapSet {
	c.mutex.Lock()
	caps := c.caps
	c.mutex.Unlock()

	if caps != nil {
		return caps
	}

	caps, _ = c.Capability().Wait()
	return caps
}

func (c *Client) setCaps(caps imap.CapSet) {
	c.mutex.Lock()
	c.caps = caps
	c.mutex.Unlock()
}

func (c *Client) setReadTimeout(d time.Duration) {
	if d <= 0 {
		c.conn.SetReadDeadline(time.Time{})
		return
	}
	c.conn.SetReadDeadline(time.Now().Add(d))
}

func (c *Client) setWriteTimeout(d time.Duration) {
	if d <= 0 {
		c.conn.SetWriteDeadline(time.Time{})
		return
	}
	c.conn.SetWriteDeadline(time.Now().Add(d))
}

// ErrConnectionClosed is returned by command methods once the client is in
// the logout state, i.e. after a successful LOGOUT or an untagged BYE. No
// further commands are written to the wire.
var ErrConnectionClosed = errors.New("imapclient: connection closed")

// beginCommand starts sending a command to the server.
//
// The tag, a space and the command name are written.
//
// The caller must call commandEncoder.end.
func (c *Client) beginCommand(name string, cmd command) *commandEncoder {
	c.mutex.Lock()
	loggedOut := c.state == imap.ConnStateLogout
	c.mutex.Unlock()

	if loggedOut {
		baseCmd := cmd.base()
		*baseCmd = Command{
			done: make(chan error, 1),
			err:  ErrConnectionClosed,
		}
		return &commandEncoder{
			Encoder:  imapwire.NewEncoder(bufio.NewWriter(io.Discard), imapwire.ConnSideClient),
			client:   c,
			cmd:      baseCmd,
			poisoned: true,
		}
	}

	c.encMutex.Lock() // unlocked by commandEncoder.end

	c.mutex.Lock()
	c.cmdTag++
	tag := fmt.Sprintf("T%v", c.cmdTag)
	c.pendingCmds = append(c.pendingCmds, cmd)
	c.mutex.Unlock()

	baseCmd := cmd.base()
	*baseCmd = Command{
		tag:  tag,
		done: make(chan error, 1),
	}

	wireEnc := imapwire.NewEncoder(c.bw, imapwire.ConnSideClient)
	c.mutex.Lock()
	caps := c.caps
	c.mutex.Unlock()
	wireEnc.LiteralMinus = caps.Has(imap.CapLiteralMinus)
	wireEnc.QuotedUTF8 = caps.Has(imap.CapIMAP4rev2)

	enc := &commandEncoder{
		Encoder: wireEnc,
		client:  c,
		cmd:     baseCmd,
	}
	wireEnc.NewContinuationRequest = func() *imapwire.ContinuationRequest {
		return c.registerContReq(cmd)
	}
	enc.Atom(tag).SP().Atom(name)
	return enc
}

func (c *Client) deletePendingCmdByTag(tag string) command {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for i, cmd := range c.pendingCmds {
		if cmd.base().tag == tag {
			c.pendingCmds = append(c.pendingCmds[:i], c.pendingCmds[i+1:]...)
			return cmd
		}
	}
	return nil
}

func (c *Client) findPendingCmdByTag(tag string) command {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, cmd := range c.pendingCmds {
		if cmd.base().tag == tag {
			return cmd
		}
	}
	return nil
}

func findPendingCmdByType[T interface{}](c *Client) T {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, cmd := range c.pendingCmds {
		if cmd, ok := cmd.(T); ok {
			return cmd
		}
	}

	var cmd T
	return cmd
}

// findPendingCmdFunc returns the first pending command matching match.
func (c *Client) findPendingCmdFunc(match func(command) bool) command {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, cmd := range c.pendingCmds {
		if match(cmd) {
			return cmd
		}
	}
	return nil
}

func (c *Client) registerContReq(cmd command) *imapwire.ContinuationRequest {
	contReq := imapwire.NewContinuationRequest()

	c.mutex.Lock()
	c.contReqs = append(c.contReqs, continuationRequest{
		ContinuationRequest: contReq,
		cmd:                 cmd.base(),
	})
	c.mutex.Unlock()

	return contReq
}

// read continuously reads data coming from the server.
//
// All the data is decoded in the read goroutine, then dispatched via channels
// to pending commands.
func (c *Client) read() {
	defer func() {
		c.mutex.Lock()
		pendingCmds := c.pendingCmds
		c.pendingCmds = nil
		c.mutex.Unlock()

		for _, cmd := range pendingCmds {
			cmd.base().done <- io.ErrUnexpectedEOF
			closeStreams(cmd)
		}
	}()

	logger := c.options.logger()
	greetingSent := false
	sendGreeting := func(err error) {
		if !greetingSent {
			greetingSent = true
			c.greeting <- err
		}
	}

	for {
		c.setReadTimeout(respReadTimeout)
		if c.dec.EOF() {
			logger.Debug().Msg("imapclient: connection closed by peer")
			sendGreeting(io.ErrUnexpectedEOF)
			break
		}
		if err := c.readResponse(); err != nil {
			logger.Warn().Err(err).Msg("imapclient: read loop terminating")
			sendGreeting(err)
			break
		}
		sendGreeting(nil)
	}
}

// WaitGreeting waits for the server greeting to be received.
func (c *Client) WaitGreeting() error {
	return <-c.greeting
}

func (c *Client) readResponse() error {
	if c.dec.Special('+') {
		if err := c.readContinueReq(); err != nil {
			return fmt.Errorf("in continue-req: %v", err)
		}
		return nil
	}

	var tag, typ string
	if !c.dec.Expect(c.dec.Special('*') || c.dec.Atom(&tag), "'*' or atom") {
		return fmt.Errorf("in response: cannot read tag: %v", c.dec.Err())
	}
	if !c.dec.ExpectSP() {
		return fmt.Errorf("in response: %v", c.dec.Err())
	}
	if !c.dec.ExpectAtom(&typ) {
		return fmt.Errorf("in response: cannot read type: %v", c.dec.Err())
	}

	var (
		token    string
		err      error
		startTLS *startTLSCommand
	)
	if tag != "" {
		token = "response-tagged"
		startTLS, err = c.readResponseTagged(tag, typ)
	} else if typ == "BYE" {
		token = "resp-cond-bye"
		var text string
		if !c.dec.ExpectText(&text) {
			return fmt.Errorf("in resp-text: %v", c.dec.Err())
		}
		c.mutex.Lock()
		c.state = imap.ConnStateLogout
		c.mutex.Unlock()
	} else {
		token = "response-data"
		err = c.readResponseData(typ)
	}
	if err != nil {
		return fmt.Errorf("in %v: %v", token, err)
	}

	if !c.dec.ExpectCRLF() {
		return fmt.Errorf("in response: %v", c.dec.Err())
	}

	if startTLS != nil {
		c.upgradeStartTLS(startTLS.tlsConfig)
		close(startTLS.upgradeDone)
	}

	return nil
}

func (c *Client) readContinueReq() error {
	var text string
	if !c.dec.ExpectSP() || !c.dec.ExpectText(&text) || !c.dec.ExpectCRLF() {
		return c.dec.Err()
	}

	c.mutex.Lock()
	var contReq *imapwire.ContinuationRequest
	if len(c.contReqs) > 0 {
		contReq = c.contReqs[0].ContinuationRequest
		c.contReqs = c.contReqs[1:]
	}
	c.mutex.Unlock()

	if contReq == nil {
		return fmt.Errorf("received unmatched continuation request")
	}

	contReq.Done(text)
	return nil
}

// readRespTextCode reads a resp-text-code, applying its data either to caps
// (for CAPABILITY) or to pending, the command the tagged response belongs to.
func (c *Client) readRespTextCode(pending command) error {
	if !c.dec.Special('[') {
		return nil
	}

	var code string
	if !c.dec.ExpectAtom(&code) {
		return fmt.Errorf("in resp-text-code: %v", c.dec.Err())
	}

	switch code {
	case "CAPABILITY":
		caps, err := readCapabilities(c.dec)
		if err != nil {
			return err
		}
		c.setCaps(caps)
	case "PERMANENTFLAGS":
		if !c.dec.ExpectSP() {
			return c.dec.Err()
		}
		flags, err := readFlagList(c.dec)
		if err != nil {
			return err
		}
		if cmd, ok := pending.(*SelectCommand); ok {
			cmd.data.PermanentFlags = flags
		}
	case "UIDNEXT":
		var num uint32
		if !c.dec.ExpectSP() || !c.dec.ExpectNumber(&num) {
			return c.dec.Err()
		}
		if cmd, ok := pending.(*SelectCommand); ok {
			cmd.data.UIDNext = num
		}
	case "UIDVALIDITY":
		var num uint32
		if !c.dec.ExpectSP() || !c.dec.ExpectNumber(&num) {
			return c.dec.Err()
		}
		if cmd, ok := pending.(*SelectCommand); ok {
			cmd.data.UIDValidity = num
		}
	case "HIGHESTMODSEQ":
		var modSeq uint64
		if !c.dec.ExpectSP() || !c.dec.ExpectModSeq(&modSeq) {
			return c.dec.Err()
		}
		if cmd, ok := pending.(*SelectCommand); ok {
			cmd.data.HighestModSeq = modSeq
		}
	case "COPYUID":
		if !c.dec.ExpectSP() {
			return c.dec.Err()
		}
		uidValidity, srcUIDs, dstUIDs, err := readRespCodeCopy(c.dec)
		if err != nil {
			return fmt.Errorf("in resp-code-copy: %v", err)
		}
		if cmd, ok := pending.(*CopyCommand); ok {
			cmd.data = imap.CopyData{
				UIDValidity: uidValidity,
				SourceUIDs:  srcUIDs,
				DestUIDs:    dstUIDs,
			}
		}
	case "APPENDUID":
		if !c.dec.ExpectSP() {
			return c.dec.Err()
		}
		uidValidity, uid, err := readRespCodeAppendUID(c.dec)
		if err != nil {
			return fmt.Errorf("in resp-code-apnd: %v", err)
		}
		if cmd, ok := pending.(*AppendCommand); ok {
			cmd.data = imap.AppendData{UIDValidity: uidValidity, UID: uid}
		}
	default: // [SP 1*<any TEXT-CHAR except "]">]
		if c.dec.SP() {
			c.dec.Skip(']')
		}
	}

	if !c.dec.ExpectSpecial(']') || !c.dec.ExpectSP() {
		return fmt.Errorf("in resp-text: %v", c.dec.Err())
	}
	return nil
}

func (c *Client) readResponseTagged(tag, typ string) (*startTLSCommand, error) {
	if !c.dec.ExpectSP() {
		return nil, c.dec.Err()
	}

	pending := c.findPendingCmdByTag(tag)
	// A successful LOGIN or AUTHENTICATE invalidates the cached capabilities,
	// unless the tagged OK carries fresh ones in a CAPABILITY code
	switch pending.(type) {
	case *loginCommand, *authenticateCommand:
		if typ == "OK" {
			c.setCaps(nil)
		}
	}
	if err := c.readRespTextCode(pending); err != nil {
		return nil, err
	}

	var text string
	if !c.dec.ExpectText(&text) {
		return nil, fmt.Errorf("in resp-text: %v", c.dec.Err())
	}

	var cmdErr error
	switch typ {
	case "OK":
		// nothing to do
	case "NO", "BAD":
		// TODO: define a type for IMAP errors
		cmdErr = fmt.Errorf("%v %v", typ, text)
	default:
		return nil, fmt.Errorf("in resp-cond-state: expected OK, NO or BAD status condition, but got %v", typ)
	}

	cmd := c.deletePendingCmdByTag(tag)
	if cmd == nil {
		return nil, fmt.Errorf("received tagged response with unknown tag %q", tag)
	}

	c.updateStateForCommand(cmd, cmdErr)

	done := cmd.base().done
	done <- cmdErr
	close(done)
	closeStreams(cmd)

	// Ensure the command is not blocked waiting on continuation requests
	c.mutex.Lock()
	var filtered []continuationRequest
	for _, contReq := range c.contReqs {
		if contReq.cmd != cmd.base() {
			filtered = append(filtered, contReq)
		} else if cmdErr != nil {
			contReq.Cancel(cmdErr)
		} else {
			contReq.Done("")
		}
	}
	c.contReqs = filtered
	c.mutex.Unlock()

	var startTLS *startTLSCommand
	if cmd, ok := cmd.(*startTLSCommand); ok && cmdErr == nil {
		startTLS = cmd
	}

	return startTLS, nil
}

// closeStreams closes the channel a streaming command delivers its data on,
// so that its Next returns nil (or 0) once the delivered data is drained.
func closeStreams(cmd command) {
	switch cmd := cmd.(type) {
	case *FetchCommand:
		close(cmd.msgs)
	case *ExpungeCommand:
		close(cmd.seqNums)
	case *ListCommand:
		if cmd.pendingData != nil {
			cmd.mailboxes <- cmd.pendingData
		}
		close(cmd.mailboxes)
	}
}

// updateStateForCommand applies connection-state transitions implied by the
// successful (or failed) completion of cmd.
func (c *Client) updateStateForCommand(cmd command, cmdErr error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	prevState := c.state
	defer func() {
		if c.state != prevState {
			c.options.logger().Debug().
				Stringer("from", prevState).
				Stringer("to", c.state).
				Msg("imapclient: connection state transition")
		}
	}()

	switch cmd := cmd.(type) {
	case *loginCommand:
		if cmdErr == nil && c.state == imap.ConnStateNotAuthenticated {
			c.state = imap.ConnStateAuthenticated
		}
	case *authenticateCommand:
		if cmdErr == nil && c.state == imap.ConnStateNotAuthenticated {
			c.state = imap.ConnStateAuthenticated
		}
	case *SelectCommand:
		if cmdErr == nil {
			c.state = imap.ConnStateSelected
			c.mailbox = cmd.data.Copy()
		}
	case *unselectCommand:
		if cmdErr == nil {
			c.state = imap.ConnStateAuthenticated
			c.mailbox = nil
		}
	case *LogoutCommand:
		if cmdErr == nil {
			c.state = imap.ConnStateLogout
		}
	}
}

func (c *Client) readResponseData(typ string) error {
	// number SP "EXISTS" / number SP "RECENT" / ...
	var num uint32
	if typ[0] >= '0' && typ[0] <= '9' {
		v, err := strconv.ParseUint(typ, 10, 32)
		if err != nil {
			return err
		}

		num = uint32(v)
		if !c.dec.ExpectSP() || !c.dec.ExpectAtom(&typ) {
			return c.dec.Err()
		}
	}

	switch typ {
	case "PREAUTH":
		c.mutex.Lock()
		c.state = imap.ConnStateAuthenticated
		c.mutex.Unlock()
		fallthrough
	case "OK", "NO", "BAD": // resp-cond-state
		// Untagged response codes update the snapshot of a pending SELECT
		var pending command
		if cmd := findPendingCmdByType[*SelectCommand](c); cmd != nil {
			pending = cmd
		}
		if err := c.readRespTextCode(pending); err != nil {
			return err
		}
		var text string
		if !c.dec.ExpectText(&text) {
			return fmt.Errorf("in resp-text: %v", c.dec.Err())
		}
	case "CAPABILITY": // capability-data
		return c.handleCapability()
	case "ENABLED":
		return c.handleEnable()
	case "FLAGS":
		return c.handleFlags()
	case "EXISTS":
		return c.handleExists(num)
	case "RECENT":
		// ignore, obsolete
	case "EXPUNGE":
		return c.handleExpunge(num)
	case "VANISHED":
		return c.handleVanished()
	case "FETCH":
		if !c.dec.ExpectSP() {
			return c.dec.Err()
		}
		if err := readMsgAtt(c, num); err != nil {
			return fmt.Errorf("in msg-att: %v", err)
		}
	case "SEARCH":
		return c.handleSearch()
	case "ESEARCH":
		return c.handleESearch()
	case "SORT":
		return c.handleSort()
	case "THREAD":
		return c.handleThread()
	case "STATUS":
		return c.handleStatus()
	case "LIST", "LSUB":
		return c.handleList()
	case "NAMESPACE":
		return c.handleNamespace()
	case "MYRIGHTS":
		return c.handleMyRights()
	case "ACL":
		return c.handleGetACL()
	case "QUOTA":
		return c.handleQuota()
	case "QUOTAROOT":
		return c.handleQuotaRoot()
	case "METADATA":
		return c.handleMetadata()
	case "ID":
		return c.handleId()
	default:
		return fmt.Errorf("unsupported response type %q", typ)
	}
	return nil
}

// uidCmdName returns the command name to use for commands that have both a
// sequence-number and a UID variant (e.g. "FETCH" vs "UID FETCH").
func uidCmdName(name string, uid bool) string {
	if uid {
		return "UID " + name
	}
	return name
}

// Noop sends a NOOP command.
func (c *Client) Noop() *Command {
	cmd := &Command{}
	c.beginCommand("NOOP", cmd).end()
	return cmd
}

// Logout sends a LOGOUT command.
//
// This command informs the server that the client is done with the connection.
func (c *Client) Logout() *LogoutCommand {
	cmd := &LogoutCommand{closer: c}
	c.beginCommand("LOGOUT", cmd).end()
	return cmd
}

type loginCommand struct {
	cmd
}

// Login sends a LOGIN command.
func (c *Client) Login(username, password string) *Command {
	cmd := &loginCommand{}
	enc := c.beginCommand("LOGIN", cmd)
	enc.SP().String(username).SP().String(password)
	enc.end()
	return &cmd.cmd
}

// StartTLS sends a STARTTLS command.
//
// Unlike other commands, this method blocks until the command completes and
// the TLS handshake finishes.
func (c *Client) StartTLS(config *tls.Config) error {
	return c.startTLS(config)
}

type commandEncoder struct {
	*imapwire.Encoder
	client   *Client
	cmd      *Command
	ended    bool
	poisoned bool // true if the client was already logged out; no bytes sent
}

// flush sends the outgoing command line without releasing encMutex.
//
// It's used by commands that need to wait for a continuation request or a
// tagged response before the caller is allowed to write more data (IDLE,
// AUTHENTICATE, STARTTLS).
func (ce *commandEncoder) flush() {
	if ce.ended {
		return
	}
	if err := ce.Encoder.CRLF(); err != nil {
		ce.cmd.err = err
	}
	ce.ended = true
}

// end ends an outgoing command.
//
// A CRLF is written (unless flush has already been called) and encMutex is
// released.
func (ce *commandEncoder) end() {
	if ce.poisoned {
		ce.Encoder = nil
		return
	}
	ce.flush()
	ce.client.encMutex.Unlock()
	ce.Encoder = nil
}

// Literal encodes a literal.
func (ce *commandEncoder) Literal(size int64) io.WriteCloser {
	contReq := ce.client.registerContReq(ce.cmd)
	return ce.Encoder.Literal(size, contReq)
}

// continuationRequest is a pending continuation request.
type continuationRequest struct {
	*imapwire.ContinuationRequest
	cmd *Command
}

// command is an interface for IMAP commands.
//
// Commands are represented by the Command type, but can be extended by other
// types (e.g. CapabilityCommand).
type command interface {
	base() *Command
}

// Command is a basic IMAP command.
type Command struct {
	tag  string
	done chan error
	err  error
}

func (cmd *Command) base() *Command {
	return cmd
}

// Wait blocks until the command has completed.
func (cmd *Command) Wait() error {
	if cmd.err == nil {
		cmd.err = <-cmd.done
	}
	return cmd.err
}

type cmd = Command // type alias to avoid exporting anonymous struct fields

// LogoutCommand is a LOGOUT command.
type LogoutCommand struct {
	cmd
	closer io.Closer
}

func (cmd *LogoutCommand) Wait() error {
	if err := cmd.cmd.Wait(); err != nil {
		return err
	}
	return cmd.closer.Close()
}
