package metrics

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", formatTags(nil))
	assert.Equal(t, "", formatTags(map[string]string{" ": "ignored"}))
	assert.Equal(t, "|#result:ok,source:q", formatTags(map[string]string{
		"source": "q",
		"result": " ok ",
	}))
}

func TestClientEmitsDatagrams(t *testing.T) {
	t.Parallel()

	server, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer server.Close()

	client, err := New(Config{Address: server.LocalAddr().String(), Prefix: "batchrelay."})
	require.NoError(t, err)
	defer client.Close()

	client.Count("batches.ended", 2, map[string]string{"source": "q"})

	require.NoError(t, server.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 512)
	n, _, err := server.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "batchrelay.batches.ended:2|c|#source:q", string(buf[:n]))
}

func TestClientDisabledWithoutAddress(t *testing.T) {
	t.Parallel()

	client, err := New(Config{})
	require.NoError(t, err)

	// No connection: writes are dropped silently.
	client.Count("batches.ended", 1, nil)
	client.Timing("pass.duration", time.Second, nil)
	require.NoError(t, client.Close())
}

func TestNopSink(t *testing.T) {
	t.Parallel()

	var sink Sink = Nop{}
	sink.Count("x", 1, nil)
	sink.Timing("x", time.Second, nil)
}
