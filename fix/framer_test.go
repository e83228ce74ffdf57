package fix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramerSplitsAcrossReads(t *testing.T) {
	a := Encode("8", []Field{F(11, "c1"), F(37, "o1"), F(39, "0")})
	b := Encode("0", []Field{F(34, "7")})
	stream := append(append([]byte{}, a...), b...)

	var f Framer
	var frames [][]byte
	for i := 0; i < len(stream); i += 5 {
		end := i + 5
		if end > len(stream) {
			end = len(stream)
		}
		frames = append(frames, f.Push(stream[i:end])...)
	}
	require.Len(t, frames, 2)
	assert.Equal(t, a, frames[0])
	assert.Equal(t, b, frames[1])
	assert.Zero(t, f.Buffered())
}

func TestFramerDropsLeadingGarbage(t *testing.T) {
	msg := Encode("0", []Field{F(34, "1")})
	var f Framer
	frames := f.Push(append([]byte("junk"), msg...))
	require.Len(t, frames, 1)
	assert.Equal(t, msg, frames[0])
}

func TestFramerKeepsPartialHeader(t *testing.T) {
	msg := Encode("0", []Field{F(34, "1")})
	var f Framer
	assert.Empty(t, f.Push(msg[:4]))
	frames := f.Push(msg[4:])
	require.Len(t, frames, 1)
	assert.Equal(t, msg, frames[0])
}
