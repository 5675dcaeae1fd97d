package danmaku

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Mode is the comment's display mode.
type Mode int

const (
	ModeScroll Mode = iota
	ModeBottom
	ModeTop
)

// Comment is one decoded comment.
type Comment struct {
	Time     time.Duration
	Text     string
	Mode     Mode
	FontSize int
	Color    uint32
}

const recordHeaderSize = 4 + 4 + 4 + 4 + 4 // time_ms, mode, font_size, color, text_len

// Decode parses the remote's binary comment stream into an ordered list of
// Comments. The wire format is a flat sequence of fixed-size records (big
// endian uint32 fields) followed by a UTF-8 text payload, matching the
// layout the remote's .so comment endpoint serves.
func Decode(data []byte) ([]Comment, error) {
	var out []Comment
	offset := 0
	for offset < len(data) {
		if offset+recordHeaderSize > len(data) {
			return nil, fmt.Errorf("danmaku: truncated record header at offset %d", offset)
		}
		timeMS := binary.BigEndian.Uint32(data[offset:])
		mode := binary.BigEndian.Uint32(data[offset+4:])
		fontSize := binary.BigEndian.Uint32(data[offset+8:])
		color := binary.BigEndian.Uint32(data[offset+12:])
		textLen := binary.BigEndian.Uint32(data[offset+16:])
		offset += recordHeaderSize

		if offset+int(textLen) > len(data) {
			return nil, fmt.Errorf("danmaku: truncated text payload at offset %d", offset)
		}
		text := string(data[offset : offset+int(textLen)])
		offset += int(textLen)

		out = append(out, Comment{
			Time:     time.Duration(timeMS) * time.Millisecond,
			Text:     text,
			Mode:     modeFromRemote(mode),
			FontSize: int(fontSize),
			Color:    color,
		})
	}
	return out, nil
}

func modeFromRemote(m uint32) Mode {
	switch m {
	case 4:
		return ModeBottom
	case 5:
		return ModeTop
	default:
		return ModeScroll
	}
}
