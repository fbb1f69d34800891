package imapclient_test

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sandmail/goimap"
	"github.com/sandmail/goimap/imapclient"
	"github.com/sandmail/goimap/internal/imapwire"
)

// readTaggedCommand reads one client command line of the form
// "<tag> <name>[ <rest>]\r\n" up to and including the name, and returns its
// tag and name. The remainder of the line is left unread (see skipLine).
func readTaggedCommand(t *testing.T, dec *imapwire.Decoder) (tag, name string) {
	t.Helper()
	if !dec.ExpectAtom(&tag) || !dec.ExpectSP() || !dec.ExpectAtom(&name) {
		t.Fatalf("error reading command: %v", dec.Err())
	}
	return tag, name
}

// skipLine discards the remainder of the current line, including its CRLF.
func skipLine(t *testing.T, dec *imapwire.Decoder) {
	t.Helper()
	dec.Skip('\r')
	if !dec.ExpectCRLF() {
		t.Fatalf("error skipping line: %v", dec.Err())
	}
}

// TestScenarioLoginSelect implements scenario S1: login then select, checking
// the resulting mailbox snapshot.
func TestScenarioLoginSelect(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	client := imapclient.New(clientConn, nil)
	defer client.Close()
	defer serverConn.Close()

	errCh := make(chan error, 1)
	go func() {
		if _, err := serverConn.Write([]byte("* OK IMAP4rev1 Service Ready\r\n")); err != nil {
			errCh <- err
			return
		}

		dec := imapwire.NewDecoder(bufio.NewReader(serverConn))

		tag, name := readTaggedCommand(t, dec)
		if name != "LOGIN" {
			errCh <- fmt.Errorf("got command %q, want LOGIN", name)
			return
		}
		if !dec.ExpectSP() {
			errCh <- dec.Err()
			return
		}
		skipLine(t, dec)
		if _, err := serverConn.Write([]byte(tag + " OK LOGIN completed\r\n")); err != nil {
			errCh <- err
			return
		}

		tag, name = readTaggedCommand(t, dec)
		if name != "SELECT" {
			errCh <- fmt.Errorf("got command %q, want SELECT", name)
			return
		}
		if !dec.ExpectSP() {
			errCh <- dec.Err()
			return
		}
		skipLine(t, dec)

		resp := "* 172 EXISTS\r\n" +
			"* 1 RECENT\r\n" +
			"* OK [UIDVALIDITY 3857529045] UIDs valid\r\n" +
			"* FLAGS (\\Answered \\Seen)\r\n" +
			"* OK [UIDNEXT 4392] Predicted next UID\r\n" +
			tag + " OK [READ-WRITE] SELECT completed\r\n"
		if _, err := serverConn.Write([]byte(resp)); err != nil {
			errCh <- err
			return
		}

		errCh <- nil
	}()

	if err := client.WaitGreeting(); err != nil {
		t.Fatalf("WaitGreeting: %v", err)
	}
	if err := client.Login("me", "pw").Wait(); err != nil {
		t.Fatalf("Login: %v", err)
	}

	data, err := client.Select("INBOX", nil).Wait()
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("server: %v", err)
	}

	if data.NumMessages != 172 {
		t.Errorf("NumMessages = %v, want 172", data.NumMessages)
	}
	if data.UIDValidity != 3857529045 {
		t.Errorf("UIDValidity = %v, want 3857529045", data.UIDValidity)
	}
	if data.UIDNext != 4392 {
		t.Errorf("UIDNext = %v, want 4392", data.UIDNext)
	}
	wantFlags := []imap.Flag{imap.FlagAnswered, imap.FlagSeen}
	if len(data.Flags) != len(wantFlags) || data.Flags[0] != wantFlags[0] || data.Flags[1] != wantFlags[1] {
		t.Errorf("Flags = %v, want %v", data.Flags, wantFlags)
	}
}

// TestScenarioFetchLiteral implements scenario S2: a FETCH RFC822 response
// carrying the message body as a literal.
func TestScenarioFetchLiteral(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	client := imapclient.New(clientConn, nil)
	defer client.Close()
	defer serverConn.Close()

	errCh := make(chan error, 1)
	go func() {
		if _, err := serverConn.Write([]byte("* OK IMAP4rev1 Service Ready\r\n")); err != nil {
			errCh <- err
			return
		}

		dec := imapwire.NewDecoder(bufio.NewReader(serverConn))
		tag, name := readTaggedCommand(t, dec)
		if name != "FETCH" {
			errCh <- fmt.Errorf("got command %q, want FETCH", name)
			return
		}
		skipLine(t, dec)

		resp := "* 1 FETCH (RFC822 {11}\r\nHello\r\nworld)\r\n" + tag + " OK FETCH completed\r\n"
		if _, err := serverConn.Write([]byte(resp)); err != nil {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	if err := client.WaitGreeting(); err != nil {
		t.Fatalf("WaitGreeting: %v", err)
	}

	var seqSet imap.SeqSet
	seqSet.AddNum(1)
	fetchCmd := client.Fetch(seqSet, []imapclient.FetchItem{imapclient.FetchItemKeyword("RFC822")})

	msg := fetchCmd.Next()
	if msg == nil {
		t.Fatal("Fetch: no message returned")
	}
	var body []byte
	for {
		item := msg.Next()
		if item == nil {
			break
		}
		if section, ok := item.(imapclient.FetchItemDataBodySection); ok {
			b, err := io.ReadAll(section.Literal)
			if err != nil {
				t.Fatalf("reading literal: %v", err)
			}
			body = b
		}
	}
	if err := fetchCmd.Close(); err != nil {
		t.Fatalf("Fetch.Close: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("server: %v", err)
	}

	if string(body) != "Hello\r\nworld" {
		t.Errorf("body = %q, want %q", body, "Hello\r\nworld")
	}
}

// TestScenarioUnsolicitedDuringNoop implements scenario S3: unsolicited
// EXPUNGE/EXISTS responses arriving while a NOOP is in flight must be
// captured, in order, and never dropped.
func TestScenarioUnsolicitedDuringNoop(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	client := imapclient.New(clientConn, nil)
	defer client.Close()
	defer serverConn.Close()

	errCh := make(chan error, 1)
	go func() {
		if _, err := serverConn.Write([]byte("* OK IMAP4rev1 Service Ready\r\n")); err != nil {
			errCh <- err
			return
		}

		dec := imapwire.NewDecoder(bufio.NewReader(serverConn))
		tag, name := readTaggedCommand(t, dec)
		if name != "NOOP" {
			errCh <- fmt.Errorf("got command %q, want NOOP", name)
			return
		}
		skipLine(t, dec)

		resp := "* 4 EXPUNGE\r\n* 3 EXISTS\r\n" + tag + " OK NOOP done\r\n"
		if _, err := serverConn.Write([]byte(resp)); err != nil {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	if err := client.WaitGreeting(); err != nil {
		t.Fatalf("WaitGreeting: %v", err)
	}
	if err := client.Noop().Wait(); err != nil {
		t.Fatalf("Noop: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("server: %v", err)
	}

	first := <-client.UnsolicitedData()
	expunge, ok := first.(imapclient.UnilateralDataExpunge)
	if !ok || expunge.SeqNum != 4 {
		t.Fatalf("first unsolicited item = %#v, want UnilateralDataExpunge{SeqNum: 4}", first)
	}

	second := <-client.UnsolicitedData()
	mailbox, ok := second.(*imapclient.UnilateralDataMailbox)
	if !ok || mailbox.NumMessages == nil || *mailbox.NumMessages != 3 {
		t.Fatalf("second unsolicited item = %#v, want UnilateralDataMailbox{NumMessages: 3}", second)
	}
}

// TestScenarioIdleWakeOnExists implements scenario S4: the caller closes an
// IDLE command in response to unilateral EXISTS data, and the client sends
// DONE exactly once.
func TestScenarioIdleWakeOnExists(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	client := imapclient.New(clientConn, nil)
	defer client.Close()
	defer serverConn.Close()

	errCh := make(chan error, 1)
	sawExists := make(chan struct{})
	go func() {
		if _, err := serverConn.Write([]byte("* OK IMAP4rev1 Service Ready\r\n")); err != nil {
			errCh <- err
			return
		}

		dec := imapwire.NewDecoder(bufio.NewReader(serverConn))
		tag, name := readTaggedCommand(t, dec)
		if name != "IDLE" {
			errCh <- fmt.Errorf("got command %q, want IDLE", name)
			return
		}
		skipLine(t, dec)

		if _, err := serverConn.Write([]byte("+ idling\r\n")); err != nil {
			errCh <- err
			return
		}
		if _, err := serverConn.Write([]byte("* 5 EXISTS\r\n")); err != nil {
			errCh <- err
			return
		}
		close(sawExists)

		var line string
		if !dec.ExpectAtom(&line) {
			errCh <- fmt.Errorf("reading DONE: %v", dec.Err())
			return
		}
		if line != "DONE" {
			errCh <- fmt.Errorf("got %q, want DONE", line)
			return
		}
		skipLine(t, dec)

		if _, err := serverConn.Write([]byte(tag + " OK IDLE terminated\r\n")); err != nil {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	if err := client.WaitGreeting(); err != nil {
		t.Fatalf("WaitGreeting: %v", err)
	}

	idleCmd, err := client.Idle()
	if err != nil {
		t.Fatalf("Idle: %v", err)
	}

	select {
	case <-sawExists:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for EXISTS")
	}
	// Give the read loop a moment to dispatch the EXISTS before closing.
	time.Sleep(10 * time.Millisecond)

	if err := idleCmd.Close(); err != nil {
		t.Fatalf("IdleCommand.Close: %v", err)
	}
	if err := idleCmd.Wait(); err != nil {
		t.Fatalf("IdleCommand.Wait: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("server: %v", err)
	}

	select {
	case data := <-client.UnsolicitedData():
		mailbox, ok := data.(*imapclient.UnilateralDataMailbox)
		if !ok || mailbox.NumMessages == nil || *mailbox.NumMessages != 5 {
			t.Fatalf("unsolicited data = %#v, want UnilateralDataMailbox{NumMessages: 5}", data)
		}
	default:
		t.Fatal("no unsolicited EXISTS data queued")
	}
}

// TestScenarioLoginFailureRecoverable implements scenario S5: a failed LOGIN
// leaves the connection usable for a subsequent, successful LOGIN.
func TestScenarioLoginFailureRecoverable(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	client := imapclient.New(clientConn, nil)
	defer client.Close()
	defer serverConn.Close()

	errCh := make(chan error, 1)
	go func() {
		if _, err := serverConn.Write([]byte("* OK IMAP4rev1 Service Ready\r\n")); err != nil {
			errCh <- err
			return
		}

		dec := imapwire.NewDecoder(bufio.NewReader(serverConn))

		tag, name := readTaggedCommand(t, dec)
		if name != "LOGIN" {
			errCh <- fmt.Errorf("got command %q, want LOGIN", name)
			return
		}
		skipLine(t, dec)
		resp := tag + " NO [AUTHENTICATIONFAILED] Invalid credentials\r\n"
		if _, err := serverConn.Write([]byte(resp)); err != nil {
			errCh <- err
			return
		}

		tag, name = readTaggedCommand(t, dec)
		if name != "LOGIN" {
			errCh <- fmt.Errorf("got command %q, want second LOGIN", name)
			return
		}
		skipLine(t, dec)
		if _, err := serverConn.Write([]byte(tag + " OK LOGIN completed\r\n")); err != nil {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	if err := client.WaitGreeting(); err != nil {
		t.Fatalf("WaitGreeting: %v", err)
	}

	if err := client.Login("me", "wrongpw").Wait(); err == nil {
		t.Fatal("first Login succeeded, want AUTHENTICATIONFAILED error")
	}
	if client.State() == imap.ConnStateLogout {
		t.Fatal("connection marked closed after a recoverable LOGIN failure")
	}

	if err := client.Login("me", "pw").Wait(); err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("server: %v", err)
	}
}
