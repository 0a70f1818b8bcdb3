package codec

import "image"

type IService interface {
	Encode(img image.Image) ([]byte, error)
	Decode(data []byte) (image.Image, error)
}
