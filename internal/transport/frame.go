package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"unicode/utf8"
)

const (
	// HeaderSize 帧头长度：4 字节大端无符号整数
	HeaderSize = 4
	// MaxPayloadSize 帧头能表示的最大负载
	MaxPayloadSize = math.MaxUint32

	// 预分配上限，超过后随数据到达增长，避免按声明长度一次性分配
	preallocLimit = 64 * 1024
)

// EncodeFrame 把一条文本消息编码为 [4 字节长度][内容] 的帧
func EncodeFrame(msg string) ([]byte, error) {
	if uint64(len(msg)) > MaxPayloadSize {
		return nil, ErrFrameTooLarge.wrap(fmt.Sprintf("%d bytes", len(msg)), nil)
	}
	buf := make([]byte, HeaderSize+len(msg))
	binary.BigEndian.PutUint32(buf, uint32(len(msg)))
	copy(buf[HeaderSize:], msg)
	return buf, nil
}

// FrameCodec 数据包的编解码器，使用长度前缀帧格式
type FrameCodec struct {
	writeMu sync.Mutex // 写锁，保证一帧一次性写出
	maxSize uint32     // 0 表示只受帧头范围限制
}

// FrameOption configures a FrameCodec.
type FrameOption func(*FrameCodec)

// WithMaxFrameSize 限制可接收的负载大小；n <= 0 表示不限制
func WithMaxFrameSize(n int) FrameOption {
	return func(c *FrameCodec) {
		if n > 0 && uint64(n) <= MaxPayloadSize {
			c.maxSize = uint32(n)
		}
	}
}

func NewFrameCodec(opts ...FrameOption) *FrameCodec {
	c := &FrameCodec{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxFrameSize 返回配置的负载上限，0 表示不限制
func (c *FrameCodec) MaxFrameSize() int { return int(c.maxSize) }

// WriteFrame 写入一个帧，帧头和内容合并成一次 Write
func (c *FrameCodec) WriteFrame(w io.Writer, payload []byte) error {
	if c == nil || w == nil {
		return fmt.Errorf("framecodec or writer is nil")
	}
	if uint64(len(payload)) > MaxPayloadSize {
		return ErrFrameTooLarge.wrap(fmt.Sprintf("%d bytes", len(payload)), nil)
	}
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[HeaderSize:], payload)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := w.Write(buf); err != nil {
		return ErrConnection.wrap("write frame", err)
	}
	return nil
}

// WriteMessage 把文本消息写为一帧
func (c *FrameCodec) WriteMessage(w io.Writer, msg string) error {
	return c.WriteFrame(w, []byte(msg))
}

// ReadFrame 读取一个帧
//
// 对端在帧之间正常关闭时返回 io.EOF；帧头或负载读到一半连接关闭返回 ErrProtocol；
// 其余读错误（reset、超时）包装为 ErrConnection。永远不会返回半个帧。
func (c *FrameCodec) ReadFrame(r io.Reader) ([]byte, error) {
	if c == nil || r == nil {
		return nil, fmt.Errorf("framecodec or reader is nil")
	}
	var header [HeaderSize]byte
	n, err := io.ReadFull(r, header[:])
	if err != nil {
		switch {
		case n == 0 && errors.Is(err, io.EOF):
			return nil, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, ErrProtocol.wrap(fmt.Sprintf("truncated header: %d of %d bytes", n, HeaderSize), err)
		default:
			return nil, ErrConnection.wrap("read header", err)
		}
	}

	length := binary.BigEndian.Uint32(header[:])
	if c.maxSize > 0 && length > c.maxSize {
		return nil, ErrFrameTooLarge.wrap(fmt.Sprintf("%d > %d", length, c.maxSize), nil)
	}
	if length == 0 {
		return []byte{}, nil
	}

	var buf bytes.Buffer
	buf.Grow(int(min(length, preallocLimit)))
	copied, err := io.CopyN(&buf, r, int64(length))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrProtocol.wrap(fmt.Sprintf("truncated payload: %d of %d bytes", copied, length), io.ErrUnexpectedEOF)
		}
		return nil, ErrConnection.wrap("read payload", err)
	}
	return buf.Bytes(), nil
}

// DecodeMessage 读取一帧并校验为 UTF-8 文本
func (c *FrameCodec) DecodeMessage(r io.Reader) (string, error) {
	payload, err := c.ReadFrame(r)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(payload) {
		return "", ErrProtocol.wrap("payload is not valid utf-8", nil)
	}
	return string(payload), nil
}

var defaultCodec = NewFrameCodec()

// DecodeMessage 使用不限制帧大小的默认编解码器读取一条消息
func DecodeMessage(r io.Reader) (string, error) { return defaultCodec.DecodeMessage(r) }
