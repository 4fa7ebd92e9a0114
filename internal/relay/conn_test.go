package relay

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPConn_ReadLine(t *testing.T) {
	local, remote := net.Pipe()
	c := NewTCPConn(local)
	defer c.Close()

	go func() {
		remote.Write([]byte("alice\r\nmove A3-A5\nlast"))
		remote.Close()
	}()

	for _, want := range []string{"alice", "move A3-A5", "last"} {
		line, err := c.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}
	_, err := c.ReadLine()
	assert.Error(t, err)
}

func TestTCPConn_LineTooLong(t *testing.T) {
	local, remote := net.Pipe()
	c := NewTCPConn(local)
	defer remote.Close()

	go remote.Write([]byte(strings.Repeat("x", MaxLineLength*2) + "\n"))

	_, err := c.ReadLine()
	assert.ErrorIs(t, err, ErrLineTooLong)
	c.Close()
}
