package pgn

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
)

// EntryName is the name of the game file inside archive n's zip.
func EntryName(archive int) string {
	return fmt.Sprintf("twic%d.pgn", archive)
}

// OpenArchive opens the game file of a downloaded archive zip. When the
// expected entry name is missing the first .pgn entry is used.
func OpenArchive(zipBytes []byte, archive int) (io.ReadCloser, error) {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return nil, fmt.Errorf("open archive %d zip: %w", archive, err)
	}

	want := EntryName(archive)
	var fallback *zip.File
	for _, f := range zr.File {
		name := path.Base(f.Name)
		if strings.EqualFold(name, want) {
			return f.Open()
		}
		if fallback == nil && strings.EqualFold(path.Ext(name), ".pgn") {
			fallback = f
		}
	}
	if fallback == nil {
		return nil, fmt.Errorf("archive %d zip: no .pgn entry found", archive)
	}
	return fallback.Open()
}
