package convert

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

// headerSize is enough for both BOM and binary type detection.
const headerSize = 8192

type srcEncoding int

const (
	encUnknown srcEncoding = iota
	encUTF8
	encUTF16BigEndian
	encUTF16LittleEndian
	encUTF32BigEndian
	encUTF32LittleEndian
)

func (e srcEncoding) String() string {
	switch e {
	case encUnknown:
		return "unknown"
	case encUTF8:
		return "utf-8"
	case encUTF16BigEndian:
		return "utf-16be"
	case encUTF16LittleEndian:
		return "utf-16le"
	case encUTF32BigEndian:
		return "utf-32be"
	case encUTF32LittleEndian:
		return "utf-32le"
	}
	return fmt.Sprintf("srcEncoding(%d)", int(e))
}

func isUTF8BOM3(buf []byte) bool {
	return len(buf) >= 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF
}

func isUTF16BigEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFE && buf[1] == 0xFF
}

func isUTF16LittleEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFF && buf[1] == 0xFE
}

func isUTF32BigEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0x00 && buf[1] == 0x00 && buf[2] == 0xFE && buf[3] == 0xFF
}

func isUTF32LittleEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0xFF && buf[1] == 0xFE && buf[2] == 0x00 && buf[3] == 0x00
}

// detectUTF looks for byte order mark. UTF-32LE must be checked before
// UTF-16LE since they share first two bytes.
func detectUTF(buf []byte) srcEncoding {
	switch {
	case isUTF8BOM3(buf):
		return encUTF8
	case isUTF32BigEndianBOM4(buf):
		return encUTF32BigEndian
	case isUTF32LittleEndianBOM4(buf):
		return encUTF32LittleEndian
	case isUTF16BigEndianBOM2(buf):
		return encUTF16BigEndian
	case isUTF16LittleEndianBOM2(buf):
		return encUTF16LittleEndian
	}
	return encUnknown
}

// selectReader returns reader producing UTF-8 text with BOM removed. When
// source has no BOM and forced encoding is specified text is converted from
// it, otherwise source is expected to be UTF-8 already.
func selectReader(r io.Reader, enc srcEncoding, forced encoding.Encoding) io.Reader {
	switch enc {
	case encUnknown:
		if forced != nil {
			return transform.NewReader(r, forced.NewDecoder())
		}
		return r
	case encUTF8:
		return transform.NewReader(r, unicode.UTF8BOM.NewDecoder())
	case encUTF16BigEndian:
		return transform.NewReader(r, unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder())
	case encUTF16LittleEndian:
		return transform.NewReader(r, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())
	case encUTF32BigEndian:
		return transform.NewReader(r, utf32.UTF32(utf32.BigEndian, utf32.ExpectBOM).NewDecoder())
	case encUTF32LittleEndian:
		return transform.NewReader(r, utf32.UTF32(utf32.LittleEndian, utf32.ExpectBOM).NewDecoder())
	}
	// this should never happen
	panic(fmt.Sprintf("unexpected source encoding %d", enc))
}

// isArchiveFile checks if file has zip extension and zip content.
func isArchiveFile(path string) (bool, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return false, nil
	}
	kind, err := filetype.MatchFile(path)
	if err != nil {
		return false, err
	}
	return kind == matchers.TypeZip, nil
}

// isStylesheetFile checks if file could be nested stylesheet: name has proper
// extension and content is not recognized as some binary format.
func isStylesheetFile(path, ext string) (bool, srcEncoding, error) {
	if !hasExt(path, ext) {
		return false, encUnknown, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return false, encUnknown, err
	}
	defer f.Close()
	return checkHeader(f)
}

// isStylesheetInArchive does the same as isStylesheetFile for archive entry.
func isStylesheetInArchive(f *zip.File, ext string) (bool, srcEncoding, error) {
	if !hasExt(f.Name, ext) {
		return false, encUnknown, nil
	}
	r, err := f.Open()
	if err != nil {
		return false, encUnknown, err
	}
	defer r.Close()
	return checkHeader(r)
}

func checkHeader(r io.Reader) (bool, srcEncoding, error) {
	buf := make([]byte, headerSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, encUnknown, err
	}
	buf = buf[:n]
	if n == 0 {
		return true, encUnknown, nil
	}

	kind, err := filetype.Match(buf)
	if err != nil {
		return false, encUnknown, err
	}
	if kind != filetype.Unknown {
		return false, encUnknown, nil
	}
	if enc := detectUTF(buf); enc != encUnknown {
		return true, enc, nil
	}
	// text should not have zeroes unless it is wide encoding with BOM
	return bytes.IndexByte(buf, 0) < 0, encUnknown, nil
}

// hasExt checks extension of the last element of name, which could be file
// path or slash separated archive entry name. Extension alone is not a name.
func hasExt(name, ext string) bool {
	base := name[strings.LastIndexAny(name, "/"+string(filepath.Separator))+1:]
	return len(base) > len(ext) && strings.EqualFold(base[len(base)-len(ext):], ext)
}
