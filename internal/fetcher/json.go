package fetcher

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/buger/jsonparser"
	"github.com/klauspost/compress/gzip"
	"github.com/rotisserie/eris"

	"github.com/rhermens/s3-dedupe/internal/record"
)

var gzipMagic = []byte{0x1f, 0x8b}

// DecodeDocument turns one downloaded blob into records. A root array
// contributes each of its elements; a root object contributes itself. Any
// other root, or malformed JSON, is an error the caller should treat as a
// skipped document. Gzip-compressed blobs are inflated first.
func DecodeDocument(data []byte) ([]record.Value, error) {
	if bytes.HasPrefix(data, gzipMagic) {
		inflated, err := gunzip(data)
		if err != nil {
			return nil, err
		}
		data = inflated
	}

	_, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, eris.Wrap(err, "json: read root")
	}

	switch dataType {
	case jsonparser.Array:
		var items []record.Value
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, eris.Wrap(err, "json: decode array")
		}
		return items, nil
	case jsonparser.Object:
		var obj record.Value
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, eris.Wrap(err, "json: decode object")
		}
		return []record.Value{obj}, nil
	default:
		return nil, eris.Errorf("json: unexpected root %s, want array or object", dataType)
	}
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "json: open gzip")
	}
	defer zr.Close() //nolint:errcheck

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, eris.Wrap(err, "json: inflate gzip")
	}
	return out, nil
}
