package client

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/hongjun500/chat-relay/internal/transport"
)

const peekPreview = 80

// Peek 打印收到的每一帧的原始内容，直到连接关闭
func Peek(r io.Reader, out io.Writer, maxFrameSize int) error {
	fc := transport.NewFrameCodec(transport.WithMaxFrameSize(maxFrameSize))
	for i := 1; ; i++ {
		data, err := fc.ReadFrame(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		_, _ = fmt.Fprintf(out, "Frame #%d (%d bytes):\n", i, len(data))
		switch {
		case len(data) == 0:
			_, _ = fmt.Fprintf(out, "  data: <empty>\n")
		case utf8.Valid(data):
			_, _ = fmt.Fprintf(out, "  data(text): %q\n", string(data))
		default:
			s := base64.StdEncoding.EncodeToString(data)
			if len(s) > peekPreview {
				s = s[:peekPreview] + "..."
			}
			_, _ = fmt.Fprintf(out, "  data(base64): %s\n", s)
		}
	}
}
