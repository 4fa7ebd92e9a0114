package relay

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
)

// LineConn is one client connection seen as a stream of text lines. ReadLine
// and WriteLine may be called from different goroutines, but each from only
// one.
type LineConn interface {
	ReadLine() (string, error)
	WriteLine(text string) error
	RemoteAddr() string
	Close() error
}

// MaxLineLength bounds one inbound line, terminator excluded. A longer line
// fails the read with ErrLineTooLong and ends the connection.
const MaxLineLength = 64 * 1024

type tcpConn struct {
	conn      net.Conn
	reader    *bufio.Reader
	closeOnce sync.Once
}

// NewTCPConn wraps a stream connection carrying newline terminated text.
func NewTCPConn(conn net.Conn) LineConn {
	// room for the line and a \r\n terminator
	return &tcpConn{conn: conn, reader: bufio.NewReaderSize(conn, MaxLineLength+2)}
}

// ReadLine returns the next line without its terminator. A final line with no
// newline is returned as is; the call after it reports io.EOF.
func (c *tcpConn) ReadLine() (string, error) {
	data, err := c.reader.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return "", ErrLineTooLong
		}
		if err == io.EOF && len(data) > 0 {
			return trimLine(data), nil
		}
		return "", err
	}
	line := trimLine(data)
	if len(line) > MaxLineLength {
		return "", ErrLineTooLong
	}
	return line, nil
}

func trimLine(data []byte) string {
	return strings.TrimRight(string(data), "\r\n")
}

func (c *tcpConn) WriteLine(text string) error {
	_, err := io.WriteString(c.conn, text+"\n")
	return err
}

func (c *tcpConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

func (c *tcpConn) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.conn.Close() })
	return err
}
