package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"

	"github.com/fleveque/promo-composer/internal/model"
)

// Entry is one encoded raster destined for a bundle.
type Entry struct {
	Format   model.Format
	Encoding Encoding
	Data     []byte
}

// Name is the entry's file name inside the bundle.
func (e Entry) Name() string {
	return FileName(e.Format, e.Encoding)
}

// FileName is the deterministic file name for one format and encoding,
// e.g. promotional-image-900x1600.png.
func FileName(format model.Format, enc Encoding) string {
	return fmt.Sprintf("promotional-image-%s.%s", format, enc.Ext())
}

// Bundle writes entries into a single zip archive, in the given order.
// Any failure fails the whole archive; no partial bundle is returned.
func Bundle(entries []Entry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("bundle has no entries")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	seen := make(map[string]bool, len(entries))

	for _, e := range entries {
		name := e.Name()
		if seen[name] {
			return nil, fmt.Errorf("duplicate bundle entry %s", name)
		}
		seen[name] = true

		if len(e.Data) == 0 {
			return nil, &model.EncodeError{Encoding: string(e.Encoding), Err: fmt.Errorf("%s is empty", name)}
		}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Store,
			Modified: time.Now().UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("adding %s: %w", name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, fmt.Errorf("writing %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing bundle: %w", err)
	}
	return buf.Bytes(), nil
}
