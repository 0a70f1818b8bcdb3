package codec

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/xerrors"
)

type jpegService struct {
	quality int
}

func NewJPEG(quality int) IService {
	if quality < 1 || quality > 100 {
		quality = 80
	}
	return &jpegService{
		quality: quality,
	}
}

func (svc *jpegService) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(svc.quality)); err != nil {
		return nil, xerrors.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (svc *jpegService) Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, xerrors.Errorf("jpeg decode: %w", err)
	}
	return img, nil
}
