package imapclient_test

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/sandmail/goimap/imapclient"
	"github.com/sandmail/goimap/internal/imapwire"
)

// TestLogoutIdempotent asserts the idempotent-logout invariant: once the
// connection has seen the server's BYE, a second command fails fast with
// ErrConnectionClosed and never reaches the wire.
func TestLogoutIdempotent(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	client := imapclient.New(clientConn, nil)
	defer client.Close()
	defer serverConn.Close()

	serverErrChan := make(chan error, 1)
	go func() {
		if _, err := serverConn.Write([]byte("* OK IMAP4rev1 Service Ready\r\n")); err != nil {
			serverErrChan <- fmt.Errorf("write greeting: %v", err)
			return
		}

		srvDec := imapwire.NewDecoder(bufio.NewReader(serverConn))

		var tag, cmdName string
		if !srvDec.ExpectAtom(&tag) || !srvDec.ExpectSP() || !srvDec.ExpectAtom(&cmdName) || !srvDec.ExpectCRLF() {
			serverErrChan <- fmt.Errorf("error reading cmd: %v", srvDec.Err())
			return
		}
		if cmdName != "LOGOUT" {
			serverErrChan <- fmt.Errorf("unexpected cmd: %v", cmdName)
			return
		}

		_, err := serverConn.Write([]byte(fmt.Sprintf("* BYE logging out\r\n%v OK LOGOUT completed\r\n", tag)))
		serverErrChan <- err
	}()

	if err := client.WaitGreeting(); err != nil {
		t.Fatalf("WaitGreeting: %v", err)
	}

	if err := client.Logout().Wait(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := <-serverErrChan; err != nil {
		t.Fatalf("server: %v", err)
	}

	// A second command must fail fast with ErrConnectionClosed, without
	// writing anything further to the connection.
	if err := client.Noop().Wait(); !errors.Is(err, imapclient.ErrConnectionClosed) {
		t.Fatalf("Noop after LOGOUT = %v, want ErrConnectionClosed", err)
	}
}
