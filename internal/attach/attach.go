// Package attach turns uploaded file content into self-contained attachment
// references (RFC 2397 data URLs) that can be stored alongside a task.
package attach

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxSize bounds a single upload. Data URLs are stored inline with the task.
const MaxSize = 5 << 20

var ErrTooLarge = errors.New("attachment exceeds size limit")

type Upload struct {
	Name        string
	ContentType string
	Content     io.Reader
}

type Encoded struct {
	Type string
	URL  string
}

// DataURLEncoder reads an upload and returns it as a base64 data URL. When
// the upload carries no content type, the type is sniffed from the bytes.
type DataURLEncoder struct {
	MaxSize int64
}

func (e DataURLEncoder) Encode(ctx context.Context, u Upload) (Encoded, error) {
	if err := ctx.Err(); err != nil {
		return Encoded{}, err
	}
	if strings.TrimSpace(u.Name) == "" {
		return Encoded{}, errors.New("attachment name is required")
	}
	if u.Content == nil {
		return Encoded{}, fmt.Errorf("attachment %s has no content", u.Name)
	}
	limit := e.MaxSize
	if limit <= 0 {
		limit = MaxSize
	}
	data, err := io.ReadAll(io.LimitReader(u.Content, limit+1))
	if err != nil {
		return Encoded{}, fmt.Errorf("read %s: %w", u.Name, err)
	}
	if int64(len(data)) > limit {
		return Encoded{}, fmt.Errorf("%s: %w", u.Name, ErrTooLarge)
	}
	if err := ctx.Err(); err != nil {
		return Encoded{}, err
	}
	ct := strings.TrimSpace(u.ContentType)
	if ct == "" {
		ct = mimetype.Detect(data).String()
	}
	return Encoded{
		Type: ct,
		URL:  DataURL(ct, data),
	}, nil
}

func DataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a base64 data URL back into its content type and bytes.
func DecodeDataURL(url string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", nil, errors.New("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("malformed data url")
	}
	ct, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return ct, []byte(payload), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data url: %w", err)
	}
	return ct, data, nil
}
