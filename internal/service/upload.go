package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// 上传大小上限
const maxUploadSize = 50 << 20 // 50MB

// UploadService 媒体上传管线：图片先压缩再上传，其他媒体原样上传
type UploadService struct {
	storage ObjectStorage
	retry   *Retry
	logger  *Logger
}

// NewUploadService 创建上传服务实例
func NewUploadService(storage ObjectStorage, logger *Logger) *UploadService {
	return &UploadService{
		storage: storage,
		// 失败后恰好重试一次，无退避，之后交给调用方决定
		retry:  NewRetry(&RetryConfig{MaxAttempts: 2}, logger),
		logger: logger,
	}
}

// UploadToR2 上传二进制到对象存储
//
// 存储键为<folder>/<name><ext>，name缺省为时间戳加随机后缀。
// 传输失败重试一次后仍失败时返回ErrTransferFailed；
// 上下文已取消时不再发起重试。
func (s *UploadService) UploadToR2(ctx context.Context, data []byte, folder, name, ext, contentType string) (string, error) {
	if name == "" {
		name = fmt.Sprintf("%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	}
	key := strings.Trim(folder, "/") + "/" + name + ext

	var url string
	err := s.retry.Do(ctx, key, func() error {
		u, putErr := s.storage.Put(ctx, key, contentType, bytes.NewReader(data))
		if putErr != nil {
			return putErr
		}
		url = u
		return nil
	})
	if err != nil {
		return "", NewError(ErrTransferFailed,
			fmt.Sprintf("upload of %s failed after retry, please try again", key), err)
	}
	return url, nil
}

// UploadMedia 上传用户选择的媒体文件，目录按用户隔离为<folder>/<userID>
func (s *UploadService) UploadMedia(ctx context.Context, file *multipart.FileHeader, folder string, userID uint) (string, error) {
	if file.Size > maxUploadSize {
		return "", NewError(ErrInvalidInput, "file exceeds the maximum upload size", nil)
	}

	src, err := file.Open()
	if err != nil {
		return "", NewError(ErrEncodeFailed, "failed to open uploaded file", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return "", NewError(ErrEncodeFailed, "failed to read uploaded file", err)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}

	if strings.HasPrefix(contentType, "image/") {
		compressed, err := CompressImage(bytes.NewReader(data),
			DefaultMaxImageWidth, DefaultMaxImageHeight, DefaultJPEGQuality)
		if err != nil {
			return "", err
		}
		data = compressed
		ext = ".jpg"
		contentType = "image/jpeg"
	}

	dest := fmt.Sprintf("%s/%d", strings.Trim(folder, "/"), userID)
	return s.UploadToR2(ctx, data, dest, "", ext, contentType)
}
