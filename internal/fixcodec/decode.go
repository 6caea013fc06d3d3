package fixcodec

import (
	"bytes"
	"errors"
	"strconv"
)

// Framing errors, per spec §4.1/§7: both are drop-message, not fatal.
var (
	ErrChecksumMismatch   = errors.New("fixcodec: checksum mismatch")
	ErrBodyLengthMismatch = errors.New("fixcodec: body length mismatch")
	ErrMalformed          = errors.New("fixcodec: malformed message")
)

// Parse validates framing (body length, checksum) and decodes one complete
// raw FIX message (including the leading "8=" and trailing "10=xxx" SOH)
// into a ParsedMessage. Duplicated tags keep the last value seen in Values,
// but Raw preserves every occurrence in wire order for repeating-group
// reconstruction.
func Parse(raw []byte) (*ParsedMessage, error) {
	fields, err := WalkTags(raw)
	if err != nil {
		return nil, err
	}
	if len(fields) < 3 {
		return nil, ErrMalformed
	}
	if fields[0].Tag != TagBeginString {
		return nil, ErrMalformed
	}
	if fields[1].Tag != TagBodyLength {
		return nil, ErrMalformed
	}
	declaredLen, err := strconv.Atoi(fields[1].Value)
	if err != nil {
		return nil, ErrMalformed
	}

	last := fields[len(fields)-1]
	if last.Tag != TagCheckSum {
		return nil, ErrMalformed
	}

	bodyStart := bytes.IndexByte(raw, SOH)
	if bodyStart < 0 {
		return nil, ErrMalformed
	}
	bodyStart++
	secondSOH := bytes.IndexByte(raw[bodyStart:], SOH)
	if secondSOH < 0 {
		return nil, ErrMalformed
	}
	bodyStart += secondSOH + 1

	checksumTagStart := bytes.LastIndex(raw, []byte("10="))
	if checksumTagStart < 0 || checksumTagStart < bodyStart {
		return nil, ErrMalformed
	}

	actualLen := checksumTagStart - bodyStart
	if actualLen != declaredLen {
		return nil, ErrBodyLengthMismatch
	}

	expectedChecksum := Checksum(raw[:checksumTagStart])
	if expectedChecksum != last.Value {
		return nil, ErrChecksumMismatch
	}

	values := make(map[Tag]string, len(fields))
	for _, f := range fields {
		values[f.Tag] = f.Value
	}

	return &ParsedMessage{
		MsgType: values[TagMsgType],
		Values:  values,
		Raw:     fields,
	}, nil
}

// WalkTags splits raw SOH-delimited FIX bytes into ordered tag=value pairs,
// preserving every occurrence (including repeated tags such as 269). This is
// the foundation repeating-group reconstruction is built on: callers must
// not rely on a flattened map because tags legitimately repeat (spec §4.2,
// §9).
func WalkTags(raw []byte) ([]Field, error) {
	var out []Field
	segments := bytes.Split(raw, []byte{SOH})
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		eq := bytes.IndexByte(seg, '=')
		if eq < 0 {
			return nil, ErrMalformed
		}
		tagNum, err := strconv.Atoi(string(seg[:eq]))
		if err != nil {
			return nil, ErrMalformed
		}
		out = append(out, Field{Tag: Tag(tagNum), Value: string(seg[eq+1:])})
	}
	return out, nil
}

// ExtractMessages scans a rolling inbound byte buffer for complete FIX
// messages. A complete message starts at "8=" and ends after the SOH
// following the first "10=xxx" triple found after that start, per spec
// §4.1. Returns the complete messages found (in order) and the remaining,
// not-yet-complete tail of buf. Partial messages are never returned.
func ExtractMessages(buf []byte) (messages [][]byte, rest []byte) {
	for {
		start := bytes.Index(buf, []byte("8="))
		if start < 0 {
			return messages, buf
		}
		buf = buf[start:]

		end := findChecksumEnd(buf)
		if end < 0 {
			return messages, buf
		}

		msg := make([]byte, end)
		copy(msg, buf[:end])
		messages = append(messages, msg)
		buf = buf[end:]
	}
}

// findChecksumEnd returns the index just past the SOH terminating the first
// "10=xxx" field in buf, or -1 if no complete checksum field is present yet.
func findChecksumEnd(buf []byte) int {
	idx := 0
	for {
		rel := bytes.Index(buf[idx:], []byte{SOH, '1', '0', '='})
		if rel < 0 {
			// handle the case where "10=" is the very first field (shouldn't
			// happen in practice since 8= always precedes it, but guards
			// against pathological input).
			return -1
		}
		tagStart := idx + rel + 1 // position of '1' in "10="
		valStart := tagStart + 3
		soh := bytes.IndexByte(buf[valStart:], SOH)
		if soh < 0 {
			return -1
		}
		return valStart + soh + 1
	}
}
