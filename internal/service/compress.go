package service

import (
	"bytes"
	"image"
	"image/jpeg"
	"io"
	"math"

	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// 图片压缩默认参数
const (
	DefaultMaxImageWidth  = 1920
	DefaultMaxImageHeight = 1920
	DefaultJPEGQuality    = 80
)

// CompressImage 等比缩小图片并重编码为JPEG
//
// 两边都不超过给定上限，比例保持不变；尺寸已在上限内时不放大，
// 只做重编码。解码失败返回ErrEncodeFailed，绝不退回原始数据。
func CompressImage(r io.Reader, maxWidth, maxHeight, quality int) ([]byte, error) {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxImageWidth
	}
	if maxHeight <= 0 {
		maxHeight = DefaultMaxImageHeight
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	img, _, err := image.Decode(r)
	if err != nil {
		return nil, NewError(ErrEncodeFailed, "failed to decode image", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	scale := math.Min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	if scale < 1 {
		newW := clampInt(int(math.Round(float64(w)*scale)), 1, maxWidth)
		newH := clampInt(int(math.Round(float64(h)*scale)), 1, maxHeight)

		dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, NewError(ErrEncodeFailed, "failed to encode image", err)
	}
	return buf.Bytes(), nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
