package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleMessage(body string) []byte {
	full := "8=FIX.4.4\x019=" + itoa(len(body)) + "\x01" + body
	sum := 0
	for _, b := range []byte(full) {
		sum += int(b)
	}
	return []byte(full + "10=" + pad3(sum%256) + "\x01")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func pad3(n int) string {
	s := itoa(n)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

func TestFramedConnDeliversOneMessageAtATime(t *testing.T) {
	client, server := NewPipe()
	defer client.Close()
	defer server.Close()

	msg1 := sampleMessage("35=0\x01")
	msg2 := sampleMessage("35=1\x01112=abc\x01")

	go func() {
		_ = server.WriteMessage(append(append([]byte{}, msg1...), msg2...))
	}()

	got1, err := client.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, msg1, got1)

	got2, err := client.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, msg2, got2)
}

func TestFramedConnReadReturnsEOFOnClose(t *testing.T) {
	client, server := NewPipe()
	defer client.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		server.Close()
	}()

	_, err := client.ReadMessage()
	require.Error(t, err)
}
