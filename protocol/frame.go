package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// HeaderSize 帧头长度：2 字节大端无符号长度
	HeaderSize = 2
	// MaxPayload 单帧载荷上限
	MaxPayload = math.MaxUint16
)

// ErrFrameTooLarge 载荷超过 16 位长度可表示的范围
var ErrFrameTooLarge = errors.New("protocol: frame payload exceeds 65535 bytes")

// Encode 为载荷加上长度前缀，生成 2+len(payload) 字节的完整帧
func Encode(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: got %d", ErrFrameTooLarge, len(payload))
	}
	frame := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint16(frame[:HeaderSize], uint16(len(payload)))
	copy(frame[HeaderSize:], payload)
	return frame, nil
}

// NextFrame 从 buf 头部切出一帧；字节不足时 ok=false，buf 保持不动。
// 返回的 payload 与 buf 共享底层数组。
func NextFrame(buf []byte) (payload []byte, n int, ok bool) {
	if len(buf) < HeaderSize {
		return nil, 0, false
	}
	size := int(binary.BigEndian.Uint16(buf[:HeaderSize]))
	if len(buf) < HeaderSize+size {
		return nil, 0, false
	}
	return buf[HeaderSize : HeaderSize+size], HeaderSize + size, true
}

// DecodeFrames 增量解码：尽可能多地提取完整帧，返回帧列表与已消费字节数。
// 剩余的不完整尾部留给下一次调用。
func DecodeFrames(buf []byte) ([][]byte, int) {
	var frames [][]byte
	consumed := 0
	for {
		payload, n, ok := NextFrame(buf[consumed:])
		if !ok {
			return frames, consumed
		}
		frames = append(frames, payload)
		consumed += n
	}
}

// ReadFrame 阻塞读取一帧（客户端与测试使用，服务端走 transport.Channel）
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	payload := make([]byte, binary.BigEndian.Uint16(header[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload (%d bytes): %w", len(payload), err)
	}
	return payload, nil
}

// WriteFrame 编码并一次性写出一帧
func WriteFrame(w io.Writer, payload []byte) error {
	frame, err := Encode(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
