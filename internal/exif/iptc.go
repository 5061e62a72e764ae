package exif

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// IPTC holds the IIM application record fields the pipeline keeps.
type IPTC struct {
	Title    string
	Caption  string
	Keywords []string
}

// KeywordList returns the keywords joined with ",".
func (i IPTC) KeywordList() string {
	return strings.Join(i.Keywords, ",")
}

// Empty reports whether no field was found.
func (i IPTC) Empty() bool {
	return i.Title == "" && i.Caption == "" && len(i.Keywords) == 0
}

const (
	markerSOS   = 0xDA
	markerEOI   = 0xD9
	markerAPP13 = 0xED

	resourceIPTC = 0x0404

	iimRecordApplication = 2
	iimObjectName        = 5
	iimKeywords          = 25
	iimCaption           = 120
)

var (
	photoshopSignature = []byte("Photoshop 3.0\x00")
	resourceSignature  = []byte("8BIM")

	errNotJPEG = errors.New("not a JPEG file")
)

// ReadIPTC extracts title, caption and keywords from the IPTC block of a
// JPEG file. Files without IPTC data, non-JPEG files and malformed blocks
// all give an empty result.
func ReadIPTC(path string) IPTC {
	f, err := os.Open(path)
	if err != nil {
		log.Debug("IPTC: %v", err)
		return IPTC{}
	}
	defer f.Close()

	block, err := findIPTCBlock(bufio.NewReader(f))
	if err != nil {
		if !errors.Is(err, errNotJPEG) && !errors.Is(err, io.EOF) {
			log.Debug("IPTC: %s: %v", path, err)
		}
		return IPTC{}
	}
	if block == nil {
		return IPTC{}
	}
	return parseIIM(block)
}

// findIPTCBlock walks the JPEG marker segments up to the start of scan and
// returns the IIM payload of the first Photoshop IPTC resource.
func findIPTCBlock(r *bufio.Reader) ([]byte, error) {
	var soi [2]byte
	if _, err := io.ReadFull(r, soi[:]); err != nil || soi[0] != 0xFF || soi[1] != 0xD8 {
		return nil, errNotJPEG
	}

	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != 0xFF {
			return nil, fmt.Errorf("expected marker, got 0x%02x", b)
		}
		marker, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		// fill bytes
		for marker == 0xFF {
			if marker, err = r.ReadByte(); err != nil {
				return nil, err
			}
		}

		switch {
		case marker == markerSOS || marker == markerEOI:
			return nil, nil
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			continue
		}

		var lenBuf [2]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, err
		}
		size := int(binary.BigEndian.Uint16(lenBuf[:])) - 2
		if size < 0 {
			return nil, fmt.Errorf("segment 0x%02x has invalid length", marker)
		}

		if marker != markerAPP13 {
			if _, err := r.Discard(size); err != nil {
				return nil, err
			}
			continue
		}

		segment := make([]byte, size)
		if _, err := io.ReadFull(r, segment); err != nil {
			return nil, err
		}
		if block := photoshopIPTC(segment); block != nil {
			return block, nil
		}
	}
}

// photoshopIPTC scans the image resource blocks of an APP13 segment.
func photoshopIPTC(segment []byte) []byte {
	if !bytes.HasPrefix(segment, photoshopSignature) {
		return nil
	}
	p := segment[len(photoshopSignature):]

	for len(p) >= 12 && bytes.Equal(p[:4], resourceSignature) {
		id := binary.BigEndian.Uint16(p[4:6])
		p = p[6:]

		// Pascal name, padded so length byte + name is even.
		nameLen := int(p[0])
		skip := 1 + nameLen
		if skip%2 != 0 {
			skip++
		}
		if len(p) < skip+4 {
			return nil
		}
		p = p[skip:]

		dataLen := int(binary.BigEndian.Uint32(p[:4]))
		p = p[4:]
		if dataLen < 0 || dataLen > len(p) {
			return nil
		}
		if id == resourceIPTC {
			return p[:dataLen]
		}
		if dataLen%2 != 0 {
			dataLen++
		}
		if dataLen > len(p) {
			return nil
		}
		p = p[dataLen:]
	}
	return nil
}

// parseIIM reads record 2 datasets from an IIM stream.
func parseIIM(block []byte) IPTC {
	var out IPTC
	p := block
	for len(p) >= 5 && p[0] == 0x1C {
		record, dataset := p[1], p[2]
		size := int(binary.BigEndian.Uint16(p[3:5]))
		p = p[5:]

		// Extended dataset: the low 15 bits give the byte count of the length.
		if size&0x8000 != 0 {
			n := size & 0x7FFF
			if n > 4 || n > len(p) {
				return out
			}
			size = 0
			for _, b := range p[:n] {
				size = size<<8 | int(b)
			}
			p = p[n:]
		}
		if size > len(p) {
			log.Debug("IPTC dataset %d:%d truncated", record, dataset)
			return out
		}
		value := decodeIIMString(p[:size])
		p = p[size:]

		if record != iimRecordApplication {
			continue
		}
		switch dataset {
		case iimObjectName:
			out.Title = value
		case iimCaption:
			out.Caption = value
		case iimKeywords:
			if value != "" {
				out.Keywords = append(out.Keywords, value)
			}
		}
	}
	return out
}

// decodeIIMString returns UTF-8 text as is and treats anything else as
// Latin-1, the IIM default character set.
func decodeIIMString(b []byte) string {
	b = bytes.TrimRight(b, "\x00")
	if utf8.Valid(b) {
		return strings.TrimSpace(string(b))
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(decoded))
}
