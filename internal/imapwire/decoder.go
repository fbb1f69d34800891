package imapwire

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/sandmail/goimap"
	"github.com/sandmail/goimap/internal/imapnum"
	"github.com/sandmail/goimap/internal/utf7"
)

type Decoder struct {
	r   *bufio.Reader
	err error
}

func NewDecoder(r *bufio.Reader) *Decoder {
	return &Decoder{r: r}
}

func (dec *Decoder) mustUnreadByte() {
	if err := dec.r.UnreadByte(); err != nil {
		panic(fmt.Errorf("imapwire: failed to unread byte: %v", err))
	}
}

func (dec *Decoder) Err() error {
	return dec.err
}

func (dec *Decoder) returnErr(err error) bool {
	if err == nil {
		return true
	}
	if dec.err == nil {
		dec.err = err
	}
	return false
}

func (dec *Decoder) readByte() (byte, bool) {
	b, err := dec.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return b, dec.returnErr(err)
	}
	return b, true
}

func (dec *Decoder) peekByte() (byte, bool) {
	b, err := dec.r.Peek(1)
	if err != nil {
		return 0, false
	}
	return b[0], true
}

func (dec *Decoder) acceptByte(want byte) bool {
	got, ok := dec.readByte()
	if !ok {
		return false
	} else if got != want {
		dec.mustUnreadByte()
		return false
	}
	return true
}

func (dec *Decoder) EOF() bool {
	_, err := dec.r.ReadByte()
	if err == io.EOF {
		return true
	} else if err != nil {
		return dec.returnErr(err)
	}
	dec.mustUnreadByte()
	return false
}

func (dec *Decoder) Expect(ok bool, name string) bool {
	if !ok {
		err := fmt.Errorf("expected %v", name)
		if dec.r.Buffered() > 0 {
			b, _ := dec.r.Peek(1)
			err = fmt.Errorf("%v, got '%v'", err, string(b))
		}
		return dec.returnErr(err)
	}
	return true
}

func (dec *Decoder) SP() bool {
	return dec.acceptByte(' ')
}

func (dec *Decoder) ExpectSP() bool {
	return dec.Expect(dec.SP(), "SP")
}

func (dec *Decoder) CRLF() bool {
	return dec.acceptByte('\r') && dec.acceptByte('\n')
}

func (dec *Decoder) ExpectCRLF() bool {
	return dec.Expect(dec.CRLF(), "CRLF")
}

// IsAtomChar reports whether ch can appear in an atom.
func IsAtomChar(ch byte) bool {
	switch ch {
	case '(', ')', '{', ' ', '%', '*', '"', '\\', ']':
		return false
	default:
		return !unicode.IsControl(rune(ch))
	}
}

func (dec *Decoder) Atom(ptr *string) bool {
	var sb strings.Builder
	for {
		b, ok := dec.readByte()
		if !ok {
			return false
		}

		if !IsAtomChar(b) {
			dec.mustUnreadByte()
			break
		}

		sb.WriteByte(b)
	}
	if sb.Len() == 0 {
		return false
	}
	*ptr = sb.String()
	return true
}

func (dec *Decoder) ExpectAtom(ptr *string) bool {
	return dec.Expect(dec.Atom(ptr), "atom")
}

// Func reads a run of bytes accepted by valid, stopping at the first
// rejected byte. It fails if no byte was consumed.
func (dec *Decoder) Func(ptr *string, valid func(ch byte) bool) bool {
	var sb strings.Builder
	for {
		b, ok := dec.readByte()
		if !ok {
			break
		}
		if !valid(b) {
			dec.mustUnreadByte()
			break
		}
		sb.WriteByte(b)
	}
	if sb.Len() == 0 {
		return false
	}
	*ptr = sb.String()
	return true
}

func (dec *Decoder) Special(b byte) bool {
	return dec.acceptByte(b)
}

func (dec *Decoder) ExpectSpecial(b byte) bool {
	return dec.Expect(dec.Special(b), fmt.Sprintf("'%v'", string(b)))
}

func (dec *Decoder) Text(ptr *string) bool {
	var sb strings.Builder
	for {
		b, ok := dec.readByte()
		if !ok {
			return false
		} else if b == '\r' || b == '\n' {
			dec.mustUnreadByte()
			break
		}
		sb.WriteByte(b)
	}
	if sb.Len() == 0 {
		return false
	}
	*ptr = sb.String()
	return true
}

func (dec *Decoder) ExpectText(ptr *string) bool {
	return dec.Expect(dec.Text(ptr), "text")
}

func (dec *Decoder) Skip(untilCh byte) {
	for {
		ch, ok := dec.readByte()
		if !ok {
			return
		} else if ch == untilCh {
			dec.mustUnreadByte()
			return
		}
	}
}

func (dec *Decoder) Number64() (v int64, ok bool) {
	var sb strings.Builder
	for {
		ch, ok := dec.readByte()
		if !ok {
			return 0, false
		} else if ch < '0' || ch > '9' {
			dec.mustUnreadByte()
			break
		}
		sb.WriteByte(ch)
	}
	if sb.Len() == 0 {
		return 0, false
	}
	v, err := strconv.ParseInt(sb.String(), 10, 64)
	if err != nil {
		panic(err) // unreachable
	}
	return v, true
}

func (dec *Decoder) ExpectNumber64(ptr *int64) bool {
	v, ok := dec.Number64()
	if !dec.Expect(ok, "number64") {
		return false
	}
	*ptr = v
	return true
}

// Number parses a 32-bit unsigned decimal number.
func (dec *Decoder) Number(ptr *uint32) bool {
	v, ok := dec.Number64()
	if !ok {
		return false
	}
	if v < 0 || v > math.MaxUint32 {
		return dec.returnErr(fmt.Errorf("imapwire: number out of range: %v", v))
	}
	*ptr = uint32(v)
	return true
}

func (dec *Decoder) ExpectNumber(ptr *uint32) bool {
	return dec.Expect(dec.Number(ptr), "number")
}

// ExpectUID parses a message UID.
func (dec *Decoder) ExpectUID(ptr *imap.UID) bool {
	var v uint32
	if !dec.ExpectNumber(&v) {
		return false
	}
	*ptr = imap.UID(v)
	return true
}

// ExpectModSeq parses a mod-sequence-value, a 63-bit unsigned decimal number.
func (dec *Decoder) ExpectModSeq(ptr *uint64) bool {
	var sb strings.Builder
	for {
		b, ok := dec.readByte()
		if !ok {
			break
		}
		if b < '0' || b > '9' {
			dec.mustUnreadByte()
			break
		}
		sb.WriteByte(b)
	}
	if !dec.Expect(sb.Len() > 0, "mod-sequence-value") {
		return false
	}
	v, err := strconv.ParseUint(sb.String(), 10, 64)
	if err != nil {
		return dec.returnErr(err)
	}
	*ptr = v
	return true
}

func isSeqSetChar(ch byte) bool {
	return (ch >= '0' && ch <= '9') || ch == ':' || ch == ',' || ch == '*'
}

// ExpectSeqSet parses a sequence-set of message sequence numbers.
func (dec *Decoder) ExpectSeqSet(ptr *imap.SeqSet) bool {
	var s string
	if !dec.Expect(dec.Func(&s, isSeqSetChar), "sequence-set") {
		return false
	}
	set, err := imapnum.ParseSet[uint32](s)
	if err != nil {
		return dec.returnErr(err)
	}
	*ptr = imap.SeqSet(set)
	return true
}

// ExpectUIDSet parses a sequence-set of UIDs.
func (dec *Decoder) ExpectUIDSet(ptr *imap.UIDSet) bool {
	var s string
	if !dec.Expect(dec.Func(&s, isSeqSetChar), "sequence-set") {
		return false
	}
	set, err := imapnum.ParseSet[imap.UID](s)
	if err != nil {
		return dec.returnErr(err)
	}
	*ptr = imap.UIDSet(set)
	return true
}

// NIL parses the atom "NIL".
func (dec *Decoder) NIL() bool {
	return dec.acceptByte('N') && dec.acceptByte('I') && dec.acceptByte('L')
}

func (dec *Decoder) ExpectNIL() bool {
	return dec.Expect(dec.NIL(), "NIL")
}

// Quoted parses a quoted string.
func (dec *Decoder) Quoted(ptr *string) bool {
	if !dec.acceptByte('"') {
		return false
	}

	var sb strings.Builder
	for {
		b, ok := dec.readByte()
		if !ok {
			return false
		}
		if b == '"' {
			break
		}
		if b == '\\' {
			b, ok = dec.readByte()
			if !ok {
				return false
			}
			if b != '"' && b != '\\' {
				return dec.returnErr(fmt.Errorf("imapwire: invalid quoted-specials escape"))
			}
		} else if b == '\r' || b == '\n' {
			dec.mustUnreadByte()
			return dec.returnErr(fmt.Errorf("imapwire: unexpected CR/LF in quoted string"))
		}
		sb.WriteByte(b)
	}
	*ptr = sb.String()
	return true
}

// literalHeader parses "{" number ["+"] "}" CRLF, the literal header that
// follows the opening '{', already consumed by the caller.
func (dec *Decoder) literalHeader() (size int64, ok bool) {
	size, numOK := dec.Number64()
	if !dec.Expect(numOK, "literal size") {
		return 0, false
	}
	dec.acceptByte('+') // LITERAL+ non-synchronizing marker, if present
	if !dec.Expect(dec.acceptByte('}'), "'}'") || !dec.ExpectCRLF() {
		return 0, false
	}
	return size, true
}

// Literal parses a literal and reads its contents into memory.
func (dec *Decoder) Literal(ptr *string) bool {
	if !dec.acceptByte('{') {
		return false
	}
	size, ok := dec.literalHeader()
	if !ok {
		return false
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(dec.r, b); err != nil {
		dec.returnErr(err)
		return false
	}
	*ptr = string(b)
	return true
}

// String parses an IMAP string (quoted string or literal).
func (dec *Decoder) String(ptr *string) bool {
	if dec.Quoted(ptr) {
		return true
	}
	return dec.Literal(ptr)
}

func (dec *Decoder) ExpectString(ptr *string) bool {
	return dec.Expect(dec.String(ptr), "string")
}

// NString parses an IMAP nstring: either NIL or a string.
func (dec *Decoder) NString(ptr *string) bool {
	if b, ok := dec.peekByte(); ok && b == 'N' {
		if !dec.ExpectNIL() {
			return false
		}
		*ptr = ""
		return true
	}
	return dec.String(ptr)
}

func (dec *Decoder) ExpectNString(ptr *string) bool {
	return dec.Expect(dec.NString(ptr), "nstring")
}

func isAStringChar(ch byte) bool {
	return IsAtomChar(ch) || ch == ']'
}

// AString parses an IMAP astring: either an atom (plus resp-specials) or a
// string.
func (dec *Decoder) AString(ptr *string) bool {
	if b, ok := dec.peekByte(); ok && (b == '"' || b == '{') {
		return dec.String(ptr)
	}
	return dec.Func(ptr, isAStringChar)
}

func (dec *Decoder) ExpectAString(ptr *string) bool {
	return dec.Expect(dec.AString(ptr), "astring")
}

// Mailbox parses a mailbox name, decoding it from modified UTF-7 unless it's
// the case-insensitive name "INBOX".
func (dec *Decoder) Mailbox(ptr *string) bool {
	var name string
	if !dec.AString(&name) {
		return false
	}
	if strings.EqualFold(name, "INBOX") {
		*ptr = "INBOX"
		return true
	}
	decoded, err := utf7.Encoding.NewDecoder().String(name)
	if err != nil {
		return dec.returnErr(fmt.Errorf("imapwire: invalid mailbox name: %w", err))
	}
	*ptr = decoded
	return true
}

func (dec *Decoder) ExpectMailbox(ptr *string) bool {
	return dec.Expect(dec.Mailbox(ptr), "mailbox")
}

// List parses a parenthesized list, calling f for each item. If the next
// token isn't a list, List returns ok = false without consuming any input.
func (dec *Decoder) List(f func() error) (ok bool, err error) {
	if !dec.Special('(') {
		return false, nil
	}
	if dec.Special(')') {
		return true, nil
	}
	for {
		if err := f(); err != nil {
			return true, err
		}
		if !dec.SP() {
			break
		}
	}
	if !dec.ExpectSpecial(')') {
		return true, dec.Err()
	}
	return true, nil
}

func (dec *Decoder) ExpectList(f func() error) error {
	ok, err := dec.List(f)
	if err != nil {
		return err
	}
	if !dec.Expect(ok, "list") {
		return dec.Err()
	}
	return nil
}

// ExpectNList parses either NIL or a parenthesized list.
func (dec *Decoder) ExpectNList(f func() error) error {
	if b, ok := dec.peekByte(); ok && b == 'N' {
		if !dec.ExpectNIL() {
			return dec.Err()
		}
		return nil
	}
	return dec.ExpectList(f)
}

// LiteralReader is a streaming reader for a literal's contents.
type LiteralReader struct {
	r    io.Reader
	size int64
}

func (lit *LiteralReader) Read(b []byte) (int, error) {
	return lit.r.Read(b)
}

func (lit *LiteralReader) Size() int64 {
	return lit.size
}

// ExpectNStringReader parses an nstring, returning a reader for the string's
// content instead of buffering it into memory. It returns a nil reader if
// the value is NIL. The second return value reports whether the literal used
// the literal8 syntax (RFC 3516 section 2).
func (dec *Decoder) ExpectNStringReader() (lit *LiteralReader, eight bool, ok bool) {
	if b, peeked := dec.peekByte(); peeked && b == 'N' {
		if !dec.ExpectNIL() {
			return nil, false, false
		}
		return nil, false, true
	}

	if b, peeked := dec.peekByte(); peeked && b == '~' {
		eight = true
		dec.readByte()
	}

	if dec.Special('{') {
		size, ok := dec.literalHeader()
		if !ok {
			return nil, eight, false
		}
		return &LiteralReader{r: io.LimitReader(dec.r, size), size: size}, eight, true
	}

	var s string
	if !dec.Expect(dec.Quoted(&s), "string") {
		return nil, eight, false
	}
	return &LiteralReader{r: strings.NewReader(s), size: int64(len(s))}, eight, true
}

// DiscardValue skips an arbitrary value: a list, a string, a literal, an
// atom, or NIL. It's used to skip over extension data this client doesn't
// understand.
func (dec *Decoder) DiscardValue() bool {
	isList, err := dec.List(func() error {
		if !dec.DiscardValue() {
			return dec.Err()
		}
		return nil
	})
	if err != nil {
		return false
	}
	if isList {
		return true
	}

	b, ok := dec.peekByte()
	if !ok {
		return false
	}
	switch b {
	case '"', '{':
		var s string
		return dec.String(&s)
	case 'N':
		return dec.NIL()
	default:
		var s string
		return dec.Atom(&s)
	}
}
