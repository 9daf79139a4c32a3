package lsms

import (
	"bytes"
	"encoding/binary"

	. "github.com/janelia-flyem/go/gocheck"
)

func labelBytes(n int) []byte {
	b := make([]byte, n*8)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(b[i*8:], uint64(i/17+1))
	}
	return b
}

func (suite *DataSuite) TestSerializeData(c *C) {
	data := labelBytes(4096)
	for _, compression := range []Compression{Uncompressed, Snappy, LZ4, Zstd} {
		for _, checksum := range []Checksum{NoChecksum, CRC32} {
			s, err := SerializeData(data, compression, checksum)
			c.Assert(err, IsNil)
			if compression != Uncompressed && len(s) >= len(data) {
				c.Errorf("%s did not shrink repetitive label data: %d bytes", compression, len(s))
			}

			out, gotCompression, err := DeserializeData(s, true)
			c.Assert(err, IsNil)
			c.Assert(gotCompression, Equals, compression)
			c.Assert(bytes.Equal(out, data), Equals, true)

			if checksum != NoChecksum {
				s[len(s)-1] ^= 0x04 // Flip a bit
				_, _, err = DeserializeData(s, true)
				c.Assert(err, NotNil)
			}
		}
	}
}

func (suite *DataSuite) TestSerializeEmpty(c *C) {
	for _, compression := range []Compression{Uncompressed, Snappy, LZ4, Zstd} {
		s, err := SerializeData(nil, compression, CRC32)
		c.Assert(err, IsNil)
		out, _, err := DeserializeData(s, true)
		c.Assert(err, IsNil)
		c.Assert(len(out), Equals, 0)
	}
	_, _, err := DeserializeData(nil, true)
	c.Assert(err, NotNil)
}

func (suite *DataSuite) TestParseCompression(c *C) {
	for str, expected := range map[string]Compression{
		"":       Uncompressed,
		"none":   Uncompressed,
		"Snappy": Snappy,
		"lz4":    LZ4,
		"zstd":   Zstd,
	} {
		got, err := ParseCompression(str)
		c.Assert(err, IsNil)
		c.Assert(got, Equals, expected)
	}
	_, err := ParseCompression("gzip9000")
	c.Assert(err, NotNil)
}

func (suite *DataSuite) TestSerializationFormat(c *C) {
	for _, compression := range []Compression{Uncompressed, Snappy, LZ4, Zstd} {
		for _, checksum := range []Checksum{NoChecksum, CRC32} {
			f := EncodeSerializationFormat(compression, checksum)
			gotCompression, gotChecksum := DecodeSerializationFormat(f)
			c.Assert(gotCompression, Equals, compression)
			c.Assert(gotChecksum, Equals, checksum)
		}
	}
}
