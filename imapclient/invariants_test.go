package imapclient_test

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/sandmail/goimap"
	"github.com/sandmail/goimap/imapclient"
	"github.com/sandmail/goimap/internal/imapwire"
)

// runSplitScript starts a fresh client/server net.Pipe() pair, has the fake
// server read one command (skipping its arguments) then reply with resp
// written out in chunks of chunkSize bytes, and invokes exercise to issue
// the command and inspect the result. The placeholder tag "A1" of the tagged
// completion in resp is replaced by the tag the client actually sent.
func runSplitScript(t *testing.T, wantCmd, resp string, chunkSize int, exercise func(*imapclient.Client) error) {
	t.Helper()

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
		if name != wantCmd {
			errCh <- fmt.Errorf("got command %q, want %q", name, wantCmd)
			return
		}
		skipLine(t, dec)

		out := strings.ReplaceAll(resp, "A1 OK", tag+" OK")
		for i := 0; i < len(out); i += chunkSize {
			end := i + chunkSize
			if end > len(out) {
				end = len(out)
			}
			if _, err := serverConn.Write([]byte(out[i:end])); err != nil {
				errCh <- err
				return
			}
		}
		errCh <- nil
	}()

	if err := client.WaitGreeting(); err != nil {
		t.Fatalf("WaitGreeting: %v", err)
	}
	if err := exercise(client); err != nil {
		t.Fatalf("exercise: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("server: %v", err)
	}
}

// TestParserDeterminismUnderSplitting is universal invariant 1: parsing a
// response gives the same result no matter how the underlying transport
// splits it into reads. It replays a handful of representative responses
// (a FETCH with a literal, a tagged OK with a response code, an untagged
// EXISTS) at chunk sizes of 1, 2, 3, 7 and 16 bytes and as a single write.
func TestParserDeterminismUnderSplitting(t *testing.T) {
	tests := []struct {
		name     string
		cmd      string
		resp     string
		exercise func(t *testing.T, client *imapclient.Client) error
	}{
		{
			name: "fetch literal",
			cmd:  "FETCH",
			resp: "* 1 FETCH (RFC822 {11}\r\nHello\r\nworld)\r\nA1 OK FETCH completed\r\n",
			exercise: func(t *testing.T, client *imapclient.Client) error {
				var seqSet imap.SeqSet
				seqSet.AddNum(1)
				cmd := client.Fetch(seqSet, []imapclient.FetchItem{imapclient.FetchItemKeyword("RFC822")})
				msg := cmd.Next()
				if msg == nil {
					return fmt.Errorf("no message returned")
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
							return err
						}
						body = b
					}
				}
				if err := cmd.Close(); err != nil {
					return err
				}
				if string(body) != "Hello\r\nworld" {
					return fmt.Errorf("body = %q, want %q", body, "Hello\r\nworld")
				}
				return nil
			},
		},
		{
			name: "tagged OK with response code",
			cmd:  "SELECT",
			resp: "* 172 EXISTS\r\n* OK [UIDVALIDITY 3857529045] UIDs valid\r\nA1 OK [READ-WRITE] SELECT completed\r\n",
			exercise: func(t *testing.T, client *imapclient.Client) error {
				data, err := client.Select("INBOX", nil).Wait()
				if err != nil {
					return err
				}
				if data.NumMessages != 172 || data.UIDValidity != 3857529045 {
					return fmt.Errorf("got NumMessages=%v UIDValidity=%v, want 172/3857529045", data.NumMessages, data.UIDValidity)
				}
				return nil
			},
		},
		{
			name: "untagged EXISTS during NOOP",
			cmd:  "NOOP",
			resp: "* 9 EXISTS\r\nA1 OK NOOP completed\r\n",
			exercise: func(t *testing.T, client *imapclient.Client) error {
				if err := client.Noop().Wait(); err != nil {
					return err
				}
				data := <-client.UnsolicitedData()
				mailbox, ok := data.(*imapclient.UnilateralDataMailbox)
				if !ok || mailbox.NumMessages == nil || *mailbox.NumMessages != 9 {
					return fmt.Errorf("unsolicited data = %#v, want NumMessages=9", data)
				}
				return nil
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for _, chunkSize := range []int{1, 2, 3, 7, 16, len(tc.resp)} {
				chunkSize := chunkSize
				t.Run(fmt.Sprintf("chunk=%d", chunkSize), func(t *testing.T) {
					runSplitScript(t, tc.cmd, tc.resp, chunkSize, func(client *imapclient.Client) error {
						return tc.exercise(t, client)
					})
				})
			}
		})
	}
}

// TestLiteralRoundTrip is universal invariant 2: a literal written by the
// client and echoed back unmodified by the server decodes to the same bytes,
// including embedded CR, LF and NUL bytes that a quoted string couldn't
// carry.
func TestLiteralRoundTrip(t *testing.T) {
	body := "line one\r\nline two\x00binary\r\n\r\nend"

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

		resp := fmt.Sprintf("* 1 FETCH (RFC822 {%d}\r\n%s)\r\n%s OK FETCH completed\r\n", len(body), body, tag)
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
	cmd := client.Fetch(seqSet, []imapclient.FetchItem{imapclient.FetchItemKeyword("RFC822")})
	msg := cmd.Next()
	if msg == nil {
		t.Fatal("Fetch: no message returned")
	}
	var got []byte
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
			got = b
		}
	}
	if err := cmd.Close(); err != nil {
		t.Fatalf("Fetch.Close: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("server: %v", err)
	}

	if string(got) != body {
		t.Errorf("round-tripped literal = %q, want %q", got, body)
	}
}

// TestBoundaryEmptyFetchSet is boundary behavior: FETCH against an empty
// sequence set sends the request but yields no messages and no error.
func TestBoundaryEmptyFetchSet(t *testing.T) {
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
		if _, err := serverConn.Write([]byte(tag + " OK FETCH completed\r\n")); err != nil {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	if err := client.WaitGreeting(); err != nil {
		t.Fatalf("WaitGreeting: %v", err)
	}

	var seqSet imap.SeqSet // empty
	cmd := client.Fetch(seqSet, []imapclient.FetchItem{imapclient.FetchItemFlags})
	msgs, err := cmd.Collect()
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages, want 0", len(msgs))
	}
	if err := <-errCh; err != nil {
		t.Fatalf("server: %v", err)
	}
}

// TestBoundaryNilEnvelope is boundary behavior: NIL fields inside an
// ENVELOPE response decode to zero values instead of erroring.
func TestBoundaryNilEnvelope(t *testing.T) {
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

		resp := "* 1 FETCH (ENVELOPE (NIL NIL NIL NIL NIL NIL NIL NIL NIL NIL))\r\n" + tag + " OK FETCH completed\r\n"
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
	cmd := client.Fetch(seqSet, []imapclient.FetchItem{imapclient.FetchItemEnvelope})
	msg := cmd.Next()
	if msg == nil {
		t.Fatal("Fetch: no message returned")
	}
	var envelope *imapclient.Envelope
	for {
		item := msg.Next()
		if item == nil {
			break
		}
		if data, ok := item.(imapclient.FetchItemDataEnvelope); ok {
			envelope = data.Envelope
		}
	}
	if err := cmd.Close(); err != nil {
		t.Fatalf("Fetch.Close: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("server: %v", err)
	}

	if envelope == nil {
		t.Fatal("no ENVELOPE data returned")
	}
	if envelope.Date != "" || envelope.Subject != "" || envelope.InReplyTo != "" || envelope.MessageID != "" {
		t.Errorf("envelope = %#v, want all-empty string fields", envelope)
	}
	if envelope.From != nil || envelope.To != nil {
		t.Errorf("envelope address lists = %#v, want nil", envelope)
	}
}

// TestBoundaryZeroLengthLiteral is boundary behavior: a zero-length literal
// decodes to an empty, non-nil read with no error.
func TestBoundaryZeroLengthLiteral(t *testing.T) {
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

		resp := "* 1 FETCH (RFC822 {0}\r\n)\r\n" + tag + " OK FETCH completed\r\n"
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
	cmd := client.Fetch(seqSet, []imapclient.FetchItem{imapclient.FetchItemKeyword("RFC822")})
	msg := cmd.Next()
	if msg == nil {
		t.Fatal("Fetch: no message returned")
	}
	var size int64 = -1
	for {
		item := msg.Next()
		if item == nil {
			break
		}
		if section, ok := item.(imapclient.FetchItemDataBodySection); ok {
			size = section.Literal.Size()
		}
	}
	if err := cmd.Close(); err != nil {
		t.Fatalf("Fetch.Close: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("server: %v", err)
	}

	if size != 0 {
		t.Errorf("literal size = %d, want 0", size)
	}
}

// TestBoundaryLargeLiteral is boundary behavior: a literal at and above the
// 65536-octet mark round-trips correctly, exercising buffering across many
// underlying reads.
func TestBoundaryLargeLiteral(t *testing.T) {
	body := strings.Repeat("x", 70000)

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

		if _, err := serverConn.Write([]byte(fmt.Sprintf("* 1 FETCH (RFC822 {%d}\r\n", len(body)))); err != nil {
			errCh <- err
			return
		}
		if _, err := serverConn.Write([]byte(body)); err != nil {
			errCh <- err
			return
		}
		if _, err := serverConn.Write([]byte(")\r\n" + tag + " OK FETCH completed\r\n")); err != nil {
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
	cmd := client.Fetch(seqSet, []imapclient.FetchItem{imapclient.FetchItemKeyword("RFC822")})
	msg := cmd.Next()
	if msg == nil {
		t.Fatal("Fetch: no message returned")
	}
	var got []byte
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
			got = b
		}
	}
	if err := cmd.Close(); err != nil {
		t.Fatalf("Fetch.Close: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("server: %v", err)
	}

	if len(got) != len(body) || string(got) != body {
		t.Errorf("round-tripped literal length = %d, want %d", len(got), len(body))
	}
}
