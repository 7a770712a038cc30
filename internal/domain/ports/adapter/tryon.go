package adapter

import "context"

// Image is raw bytes plus MIME type.
type Image struct {
	Data     []byte
	MIMEType string
}

// TryOnRequest carries decoded input images for one generation.
type TryOnRequest struct {
	Mode     string // top|full
	Person   Image
	Clothing Image
	Bottom   *Image
}

// TryOnGenerator is the port for the image generation model.
type TryOnGenerator interface {
	Generate(ctx context.Context, req TryOnRequest) (Image, error)
}
