package table

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

var ErrMalformedDBF = errors.New("malformed dbf")

const (
	dbfHeaderSize     = 32
	dbfFieldSize      = 32
	dbfFieldEnd       = 0x0D
	dbfEOF            = 0x1A
	dbfDeleted        = '*'
	julianUnixEpoch   = 2440588
	dbfTimestampStyle = "2006-01-02 15:04:05"
)

type dbfField struct {
	Name     string
	Type     byte
	Length   int
	Decimals int
}

// ReadDBF decodes a dBase III / FoxPro table. Deleted records are skipped and
// character data is decoded from Windows-1252. Memo, general and picture fields
// reference an external file and come back empty.
func ReadDBF(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)

	header := make([]byte, dbfHeaderSize)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedDBF, err)
	}
	recordCount := int(binary.LittleEndian.Uint32(header[4:8]))
	headerLen := int(binary.LittleEndian.Uint16(header[8:10]))
	recordLen := int(binary.LittleEndian.Uint16(header[10:12]))
	if headerLen < dbfHeaderSize+1 || recordLen < 1 {
		return nil, fmt.Errorf("%w: header length %d record length %d", ErrMalformedDBF, headerLen, recordLen)
	}

	var fields []dbfField
	consumed := dbfHeaderSize
	width := 1
	for {
		b, err := br.Peek(1)
		if err != nil {
			return nil, fmt.Errorf("%w: field descriptors: %v", ErrMalformedDBF, err)
		}
		if b[0] == dbfFieldEnd {
			break
		}
		desc := make([]byte, dbfFieldSize)
		if _, err := io.ReadFull(br, desc); err != nil {
			return nil, fmt.Errorf("%w: field descriptor: %v", ErrMalformedDBF, err)
		}
		consumed += dbfFieldSize
		name := desc[:11]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}
		f := dbfField{
			Name:     strings.TrimSpace(string(name)),
			Type:     desc[11],
			Length:   int(desc[16]),
			Decimals: int(desc[17]),
		}
		// Character fields longer than 255 spill the high byte into the decimal count.
		if f.Type == 'C' {
			f.Length = int(binary.LittleEndian.Uint16(desc[16:18]))
			f.Decimals = 0
		}
		width += f.Length
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrMalformedDBF)
	}
	if width > recordLen {
		return nil, fmt.Errorf("%w: fields span %d bytes, record is %d", ErrMalformedDBF, width, recordLen)
	}
	// Skip the terminator plus any Visual FoxPro backlink area.
	if headerLen < consumed {
		return nil, fmt.Errorf("%w: header length %d shorter than descriptors", ErrMalformedDBF, headerLen)
	}
	if _, err := br.Discard(headerLen - consumed); err != nil {
		return nil, fmt.Errorf("%w: header padding: %v", ErrMalformedDBF, err)
	}

	t := &Table{Columns: make([]string, len(fields))}
	for i, f := range fields {
		t.Columns[i] = f.Name
	}

	record := make([]byte, recordLen)
	for n := 0; n < recordCount; n++ {
		if _, err := io.ReadFull(br, record[:1]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformedDBF, n, err)
		}
		if record[0] == dbfEOF {
			break
		}
		if _, err := io.ReadFull(br, record[1:]); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformedDBF, n, err)
		}
		if record[0] == dbfDeleted {
			continue
		}
		row := make([]string, len(fields))
		offset := 1
		for i, f := range fields {
			row[i] = decodeDBFValue(f, record[offset:offset+f.Length])
			offset += f.Length
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func decodeDBFValue(f dbfField, raw []byte) string {
	switch f.Type {
	case 'C':
		return decodeText(bytes.TrimRight(raw, " \x00"))
	case 'N', 'F', 'D':
		return strings.TrimSpace(string(raw))
	case 'L':
		switch strings.TrimSpace(string(raw)) {
		case "T", "t", "Y", "y":
			return "true"
		case "F", "f", "N", "n":
			return "false"
		default:
			return ""
		}
	case 'I':
		if len(raw) < 4 {
			return ""
		}
		return strconv.FormatInt(int64(int32(binary.LittleEndian.Uint32(raw))), 10)
	case 'Y':
		if len(raw) < 8 {
			return ""
		}
		return decimal.New(int64(binary.LittleEndian.Uint64(raw)), -4).String()
	case 'B':
		if len(raw) < 8 {
			return ""
		}
		v := math.Float64frombits(binary.LittleEndian.Uint64(raw))
		return strconv.FormatFloat(v, 'f', -1, 64)
	case 'T', '@':
		if len(raw) < 8 {
			return ""
		}
		return decodeDBFTimestamp(raw)
	case 'M', 'G', 'P':
		return ""
	default:
		return strings.TrimSpace(decodeText(raw))
	}
}

func decodeDBFTimestamp(raw []byte) string {
	day := int64(binary.LittleEndian.Uint32(raw[0:4]))
	ms := int64(binary.LittleEndian.Uint32(raw[4:8]))
	if day == 0 {
		return ""
	}
	t := time.Unix((day-julianUnixEpoch)*86400, 0).UTC().Add(time.Duration(ms) * time.Millisecond)
	return t.Format(dbfTimestampStyle)
}

func decodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	s, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(s)
}
