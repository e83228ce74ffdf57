package fix

import (
	"bytes"
	"strconv"
)

// trailerLen 为 "10=ddd<SOH>" 的长度。
const trailerLen = 7

var headerBytes = []byte(header)

// Framer 按 BodyLength 从 TCP 字节流中切出完整报文，不完整的尾部留到下一次。
type Framer struct {
	buf []byte
}

// Push 追加新读到的字节，返回当前可用的完整报文。
func (f *Framer) Push(p []byte) [][]byte {
	f.buf = append(f.buf, p...)
	var frames [][]byte
	for {
		idx := bytes.Index(f.buf, headerBytes)
		if idx < 0 {
			// 可能只收到了半个头部
			if keep := len(headerBytes) - 1; len(f.buf) > keep {
				f.buf = append(f.buf[:0], f.buf[len(f.buf)-keep:]...)
			}
			return frames
		}
		if idx > 0 {
			f.buf = f.buf[idx:]
		}
		rest := f.buf[len(headerBytes):]
		if len(rest) < 2 {
			return frames
		}
		if !bytes.HasPrefix(rest, []byte("9=")) {
			f.buf = f.buf[1:]
			continue
		}
		end := bytes.IndexByte(rest, SOH[0])
		if end < 0 {
			return frames
		}
		n, err := strconv.Atoi(string(rest[2:end]))
		if err != nil || n < 0 {
			f.buf = f.buf[1:]
			continue
		}
		total := len(headerBytes) + end + 1 + n + trailerLen
		if len(f.buf) < total {
			return frames
		}
		frame := make([]byte, total)
		copy(frame, f.buf[:total])
		frames = append(frames, frame)
		f.buf = f.buf[total:]
	}
}

// Buffered 返回尚未成帧的字节数。
func (f *Framer) Buffered() int {
	return len(f.buf)
}
