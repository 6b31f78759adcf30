// Package container implements the versioned bytecode file format
// written by `dust compile -o` and used by internal/cache to store
// compiled chunks:
// a "DUST" magic header, a format version, a chunk count, and each
// chunk's constant pools, instruction array, recursive prototype
// list, and optional source map. Encoding is
// deterministic field-by-field with no maps, so the same *bytecode.
// Chunk always serializes to the same bytes every time.
package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/dust-lang/dust/internal/bytecode"
	"github.com/dust-lang/dust/internal/types"
)

// Magic is the container's 4-byte header.
const Magic = "DUST"

// FormatVersion is bumped whenever the on-disk layout changes
// incompatibly. It is independent of config.Version, which names the
// toolchain, not the file format.
const FormatVersion = 1

// Encode serializes a set of top-level chunks (a single `dust compile`
// invocation always produces exactly one, but the format allows more
// so a future `dust archive` could bundle several programs).
func Encode(chunks []*bytecode.Chunk) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(Magic)
	writeU32(&buf, FormatVersion)
	writeU32(&buf, uint32(len(chunks)))
	for _, c := range chunks {
		if err := encodeChunk(&buf, c); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Decode parses a container produced by Encode.
func Decode(data []byte) ([]*bytecode.Chunk, error) {
	r := bytes.NewReader(data)
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != Magic {
		return nil, fmt.Errorf("container: bad magic (not a Dust bytecode file)")
	}
	version, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("container: reading version: %w", err)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("container: unsupported format version %d (want %d)", version, FormatVersion)
	}
	count, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("container: reading chunk count: %w", err)
	}
	chunks := make([]*bytecode.Chunk, count)
	for i := range chunks {
		c, err := decodeChunk(r)
		if err != nil {
			return nil, fmt.Errorf("container: decoding chunk %d: %w", i, err)
		}
		chunks[i] = c
	}
	return chunks, nil
}

func encodeChunk(buf *bytes.Buffer, c *bytecode.Chunk) error {
	writeString(buf, c.Name)
	writeU32(buf, uint32(c.RegisterCount))

	writeU32(buf, uint32(len(c.ParamTypes)))
	for _, t := range c.ParamTypes {
		encodeType(buf, t)
	}
	encodeType(buf, c.ReturnType)

	writeU32(buf, uint32(len(c.Constants.Ints)))
	for _, v := range c.Constants.Ints {
		writeU64(buf, uint64(v))
	}
	writeU32(buf, uint32(len(c.Constants.Floats)))
	for _, v := range c.Constants.Floats {
		writeU64(buf, math.Float64bits(v))
	}
	writeU32(buf, uint32(len(c.Constants.Strs)))
	for _, v := range c.Constants.Strs {
		writeString(buf, v)
	}
	writeU32(buf, uint32(len(c.Constants.Chars)))
	for _, v := range c.Constants.Chars {
		writeU32(buf, uint32(v))
	}
	writeU32(buf, uint32(len(c.Constants.Bytes)))
	buf.Write(c.Constants.Bytes)

	writeU32(buf, uint32(len(c.Code)))
	for _, instr := range c.Code {
		writeU64(buf, uint64(instr))
	}

	writeU32(buf, uint32(len(c.SourceMap)))
	for _, span := range c.SourceMap {
		writeU32(buf, uint32(span.Line))
		writeU32(buf, uint32(span.Col))
	}

	writeU32(buf, uint32(len(c.Prototypes)))
	for _, proto := range c.Prototypes {
		if err := encodeChunk(buf, proto); err != nil {
			return err
		}
	}
	return nil
}

func decodeChunk(r *bytes.Reader) (*bytecode.Chunk, error) {
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	regCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c := bytecode.NewChunk(name)
	c.RegisterCount = int(regCount)

	nParams, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.ParamTypes = make([]types.Type, nParams)
	for i := range c.ParamTypes {
		t, err := decodeType(r)
		if err != nil {
			return nil, err
		}
		c.ParamTypes[i] = t
	}
	c.ReturnType, err = decodeType(r)
	if err != nil {
		return nil, err
	}

	nInts, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.Constants.Ints = make([]int64, nInts)
	for i := range c.Constants.Ints {
		v, err := readU64(r)
		if err != nil {
			return nil, err
		}
		c.Constants.Ints[i] = int64(v)
	}

	nFloats, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.Constants.Floats = make([]float64, nFloats)
	for i := range c.Constants.Floats {
		bits, err := readU64(r)
		if err != nil {
			return nil, err
		}
		c.Constants.Floats[i] = math.Float64frombits(bits)
	}

	nStrs, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.Constants.Strs = make([]string, nStrs)
	for i := range c.Constants.Strs {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		c.Constants.Strs[i] = s
	}

	nChars, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.Constants.Chars = make([]rune, nChars)
	for i := range c.Constants.Chars {
		v, err := readU32(r)
		if err != nil {
			return nil, err
		}
		c.Constants.Chars[i] = rune(v)
	}

	nBytes, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.Constants.Bytes = make([]byte, nBytes)
	if nBytes > 0 {
		if _, err := io.ReadFull(r, c.Constants.Bytes); err != nil {
			return nil, err
		}
	}

	nCode, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.Code = make([]bytecode.Instruction, nCode)
	for i := range c.Code {
		v, err := readU64(r)
		if err != nil {
			return nil, err
		}
		c.Code[i] = bytecode.Instruction(v)
	}

	nSpans, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.SourceMap = make([]bytecode.SourceSpan, nSpans)
	for i := range c.SourceMap {
		line, err := readU32(r)
		if err != nil {
			return nil, err
		}
		col, err := readU32(r)
		if err != nil {
			return nil, err
		}
		c.SourceMap[i] = bytecode.SourceSpan{Line: int(line), Col: int(col)}
	}

	nProtos, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.Prototypes = make([]*bytecode.Chunk, nProtos)
	for i := range c.Prototypes {
		proto, err := decodeChunk(r)
		if err != nil {
			return nil, err
		}
		c.Prototypes[i] = proto
	}

	return c, nil
}

// Type tags, encoded as a single byte ahead of any recursive payload.
const (
	typeTagBool byte = iota
	typeTagByte
	typeTagChar
	typeTagFloat
	typeTagInt
	typeTagStr
	typeTagNone
	typeTagList
	typeTagFunction
)

func encodeType(buf *bytes.Buffer, t types.Type) {
	switch v := t.(type) {
	case types.List:
		buf.WriteByte(typeTagList)
		encodeType(buf, v.Elem)
	case types.Function:
		buf.WriteByte(typeTagFunction)
		writeU32(buf, uint32(len(v.Params)))
		for _, p := range v.Params {
			encodeType(buf, p)
		}
		encodeType(buf, v.Return)
	default:
		buf.WriteByte(primitiveTag(t))
	}
}

func primitiveTag(t types.Type) byte {
	switch {
	case t.Equal(types.Bool):
		return typeTagBool
	case t.Equal(types.Byte):
		return typeTagByte
	case t.Equal(types.Char):
		return typeTagChar
	case t.Equal(types.Float):
		return typeTagFloat
	case t.Equal(types.Int):
		return typeTagInt
	case t.Equal(types.Str):
		return typeTagStr
	default:
		return typeTagNone
	}
}

func decodeType(r *bytes.Reader) (types.Type, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case typeTagBool:
		return types.Bool, nil
	case typeTagByte:
		return types.Byte, nil
	case typeTagChar:
		return types.Char, nil
	case typeTagFloat:
		return types.Float, nil
	case typeTagInt:
		return types.Int, nil
	case typeTagStr:
		return types.Str, nil
	case typeTagNone:
		return types.None, nil
	case typeTagList:
		elem, err := decodeType(r)
		if err != nil {
			return nil, err
		}
		return types.List{Elem: elem}, nil
	case typeTagFunction:
		n, err := readU32(r)
		if err != nil {
			return nil, err
		}
		params := make([]types.Type, n)
		for i := range params {
			p, err := decodeType(r)
			if err != nil {
				return nil, err
			}
			params[i] = p
		}
		ret, err := decodeType(r)
		if err != nil {
			return nil, err
		}
		return types.Function{Params: params, Return: ret}, nil
	default:
		return nil, fmt.Errorf("container: unknown type tag %d", tag)
	}
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, b); err != nil {
			return "", err
		}
	}
	return string(b), nil
}
