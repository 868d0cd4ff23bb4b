package proto

// Text-safe payload codec. Every 3 payload bytes map to 4 symbols from a
// 64-symbol alphabet; '=' pads the final group when the input length is
// not a multiple of 3. PUBLISH/MSG payloads cross the wire in this form;
// the frame codecs themselves treat payload bytes as opaque.

const encodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

const padSymbol = '='

var decodeTable = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(encodeAlphabet); i++ {
		t[encodeAlphabet[i]] = int8(i)
	}
	return t
}()

// EncodePayload encodes src into the text-safe form. It is total: any
// input, including empty, encodes without error.
func EncodePayload(src []byte) []byte {
	if len(src) == 0 {
		return []byte{}
	}
	dst := make([]byte, 0, (len(src)+2)/3*4)
	i := 0
	for ; i+3 <= len(src); i += 3 {
		n := uint32(src[i])<<16 | uint32(src[i+1])<<8 | uint32(src[i+2])
		dst = append(dst,
			encodeAlphabet[n>>18&0x3f],
			encodeAlphabet[n>>12&0x3f],
			encodeAlphabet[n>>6&0x3f],
			encodeAlphabet[n&0x3f],
		)
	}
	switch len(src) - i {
	case 1:
		n := uint32(src[i]) << 16
		dst = append(dst,
			encodeAlphabet[n>>18&0x3f],
			encodeAlphabet[n>>12&0x3f],
			padSymbol,
			padSymbol,
		)
	case 2:
		n := uint32(src[i])<<16 | uint32(src[i+1])<<8
		dst = append(dst,
			encodeAlphabet[n>>18&0x3f],
			encodeAlphabet[n>>12&0x3f],
			encodeAlphabet[n>>6&0x3f],
			padSymbol,
		)
	}
	return dst
}

// DecodePayload reverses EncodePayload. It fails with a *DecodeError when
// the input length is not a multiple of 4, when a symbol falls outside
// the alphabet, or when a pad symbol appears anywhere but the last one or
// two positions of the final group.
func DecodePayload(src []byte) ([]byte, error) {
	if len(src)%4 != 0 {
		return nil, &DecodeError{Pos: -1, Reason: "length not a multiple of 4"}
	}
	if len(src) == 0 {
		return []byte{}, nil
	}
	dst := make([]byte, 0, len(src)/4*3)
	for i := 0; i < len(src); i += 4 {
		final := i+4 == len(src)
		var vals [4]uint32
		pads := 0
		for j := 0; j < 4; j++ {
			c := src[i+j]
			if c == padSymbol {
				// Only the final group may be padded, and only in its
				// last two positions, and never with a symbol after it.
				if !final || j < 2 {
					return nil, &DecodeError{Pos: i + j, Reason: "unexpected pad symbol"}
				}
				pads++
				continue
			}
			if pads > 0 {
				return nil, &DecodeError{Pos: i + j, Reason: "symbol after pad"}
			}
			v := decodeTable[c]
			if v < 0 {
				return nil, &DecodeError{Pos: i + j, Reason: "symbol outside alphabet"}
			}
			vals[j] = uint32(v)
		}
		n := vals[0]<<18 | vals[1]<<12 | vals[2]<<6 | vals[3]
		dst = append(dst, byte(n>>16))
		if pads < 2 {
			dst = append(dst, byte(n>>8))
		}
		if pads < 1 {
			dst = append(dst, byte(n))
		}
	}
	return dst, nil
}
