package fixcodec

import (
	"bytes"
	"fmt"
	"strconv"
)

// Header carries the session-level fields every outbound message needs.
// SendingTime must already be formatted per FixTimeFormat.
type Header struct {
	MsgType      string
	SenderCompID string
	TargetCompID string
	MsgSeqNum    int
	SendingTime  string
}

// Encode serializes one FIX message bit-exact to spec §4.1/§6:
//
//	8=FIXT.1.1 SOH 9=<bodyLength> SOH <body> 10=<checksum> SOH
//
// Header fields are emitted in the fixed order 35,49,56,34,52; known body
// fields next in the fixed order documented in fields.go; then any
// remaining fields in insertion order. Tags 8, 9, 10 are synthesized here
// and must never appear in body. Tag 1137 is appended only for Logon.
func Encode(hdr Header, body *Fields) ([]byte, error) {
	return EncodeWithRawGroup(hdr, body, nil)
}

// EncodeWithRawGroup behaves like Encode but appends rawGroup — already
// framed as SOH-terminated tag=value segments — after the known/remaining
// body fields and before the checksum. This is the escape hatch true
// repeating groups need: a Fields set cannot hold the same tag twice (e.g.
// two 269 MDEntryType entries for a MarketDataRequest), so callers that must
// emit physical duplicate tags build that segment directly and pass it here.
func EncodeWithRawGroup(hdr Header, body *Fields, rawGroup []byte) ([]byte, error) {
	if body.Has(TagBeginString) || body.Has(TagBodyLength) || body.Has(TagCheckSum) {
		return nil, fmt.Errorf("fixcodec: body must not set tags 8/9/10")
	}

	var buf bytes.Buffer

	writeField(&buf, TagMsgType, hdr.MsgType)
	writeField(&buf, TagSenderCompID, hdr.SenderCompID)
	writeField(&buf, TagTargetCompID, hdr.TargetCompID)
	writeField(&buf, TagMsgSeqNum, strconv.Itoa(hdr.MsgSeqNum))
	writeField(&buf, TagSendingTime, hdr.SendingTime)

	emitted := map[Tag]bool{
		TagMsgType: true, TagSenderCompID: true, TagTargetCompID: true,
		TagMsgSeqNum: true, TagSendingTime: true,
	}

	for _, t := range knownBodyOrder {
		if v, ok := body.Get(t); ok {
			writeField(&buf, t, v)
			emitted[t] = true
		}
	}

	for _, f := range body.Ordered() {
		if emitted[f.Tag] {
			continue
		}
		writeField(&buf, f.Tag, f.Value)
		emitted[f.Tag] = true
	}

	if hdr.MsgType == MsgTypeLogon {
		writeField(&buf, TagDefaultApplVerID, DefaultApplVerID)
	}

	if len(rawGroup) > 0 {
		buf.Write(rawGroup)
	}

	bodyBytes := buf.Bytes()
	bodyLength := len(bodyBytes)

	var out bytes.Buffer
	writeField(&out, TagBeginString, BeginString)
	writeField(&out, TagBodyLength, strconv.Itoa(bodyLength))
	out.Write(bodyBytes)

	checksum := Checksum(out.Bytes())
	writeField(&out, TagCheckSum, checksum)

	return out.Bytes(), nil
}

// writeField appends "tag=value" + SOH to buf.
func writeField(buf *bytes.Buffer, tag Tag, value string) {
	buf.WriteString(strconv.Itoa(int(tag)))
	buf.WriteByte('=')
	buf.WriteString(value)
	buf.WriteByte(SOH)
}

// Checksum sums every byte in data modulo 256 and zero-pads to 3 digits,
// per spec §4.1/§6/§8.
func Checksum(data []byte) string {
	var sum int
	for _, b := range data {
		sum += int(b)
	}
	return fmt.Sprintf("%03d", sum%256)
}

// BodyLength returns the byte count between (exclusive) the SOH after tag 9
// and (exclusive) the SOH before tag 10 — i.e. len(body) as encoded above.
func BodyLength(body []byte) int {
	return len(body)
}
