package flat

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	magic   = "PIDX"
	version = uint32(1)

	headerSize = 16
	// maxValues bounds count*dimension so a corrupt header cannot force a huge allocation.
	maxValues = 1 << 28
)

type header struct {
	Version   uint32
	Dimension uint32
	Count     uint32
}

// WriteTo encodes the index: magic, version, dimension, count, then
// count*dimension little-endian float32 values.
func (x *Index) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	if _, err := bw.WriteString(magic); err != nil {
		return n, err
	}
	n += int64(len(magic))
	h := header{Version: version, Dimension: uint32(x.dimension), Count: uint32(x.Len())}
	if err := binary.Write(bw, binary.LittleEndian, h); err != nil {
		return n, err
	}
	n += int64(binary.Size(h))
	buf := make([]byte, 4)
	for _, f := range x.data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
		if _, err := bw.Write(buf); err != nil {
			return n, err
		}
		n += 4
	}
	return n, bw.Flush()
}

// Read decodes an index written by WriteTo.
func Read(r io.Reader) (*Index, error) {
	return read(r, -1)
}

// read decodes an index. When size is non-negative the header must describe
// exactly size bytes.
func read(r io.Reader, size int64) (*Index, error) {
	br := bufio.NewReader(r)
	m := make([]byte, len(magic))
	if _, err := io.ReadFull(br, m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	if string(m) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptIndex, m)
	}
	var h header
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorruptIndex, err)
	}
	if h.Version != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, h.Version)
	}
	if h.Dimension == 0 {
		return nil, fmt.Errorf("%w: zero dimension", ErrCorruptIndex)
	}
	values := uint64(h.Dimension) * uint64(h.Count)
	if values > maxValues {
		return nil, fmt.Errorf("%w: header claims %d x %d values", ErrCorruptIndex, h.Count, h.Dimension)
	}
	if size >= 0 && int64(headerSize+4*values) != size {
		return nil, fmt.Errorf("%w: header claims %d x %d values, file has %d bytes", ErrCorruptIndex, h.Count, h.Dimension, size)
	}
	total := int(values)
	data := make([]float32, total)
	buf := make([]byte, 4)
	for i := range data {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("%w: vector data: %v", ErrCorruptIndex, err)
		}
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf))
	}
	if _, err := br.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data", ErrCorruptIndex)
	}
	return &Index{dimension: int(h.Dimension), data: data}, nil
}

// Load reads an index file from path.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return read(f, info.Size())
}
