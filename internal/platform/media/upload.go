package media

import (
	"fmt"
	"io"
	"mime/multipart"
)

// FromMultipart reads an uploaded file. At most one byte past MaxImageSize
// is read so oversized uploads are detected without buffering them whole.
func FromMultipart(fh *multipart.FileHeader) (Image, error) {
	f, err := fh.Open()
	if err != nil {
		return Image{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageSize+1))
	if err != nil {
		return Image{}, fmt.Errorf("read upload: %w", err)
	}
	return Image{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
