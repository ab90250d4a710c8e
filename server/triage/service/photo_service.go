package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	cmnlog "triage_server/server/common/log"
	"triage_server/server/triage/domain"
)

const (
	thumbnailSize   = 320
	defaultPresign  = 15 * time.Minute
	thumbnailSuffix = "_thumb.jpg"
)

var allowedPhotoExt = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".heic": {}, ".webp": {},
}

// PhotoService stores report photos in object storage and hands out presigned URLs.
type PhotoService struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewPhotoService(client *minio.Client, bucket string, expiry time.Duration) *PhotoService {
	if expiry <= 0 {
		expiry = defaultPresign
	}
	return &PhotoService{client: client, bucket: bucket, expiry: expiry}
}

func (s *PhotoService) PresignUpload(ctx context.Context, fileName string) (domain.PhotoUpload, error) {
	key, err := newPhotoKey(fileName)
	if err != nil {
		return domain.PhotoUpload{}, err
	}
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, s.expiry)
	if err != nil {
		return domain.PhotoUpload{}, fmt.Errorf("presign upload: %w", err)
	}
	return domain.PhotoUpload{ObjectKey: key, URL: u.String()}, nil
}

func (s *PhotoService) PresignDownload(ctx context.Context, objectKey string) (string, error) {
	if !domain.IsPhotoObjectKey(objectKey) {
		return "", domain.NewValidationError("objectKey", "must be a photo object key")
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, s.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return u.String(), nil
}

// RegisterPhoto confirms an uploaded object exists and, for images, writes a JPEG thumbnail.
// A thumbnail failure is logged and leaves ThumbnailKey empty.
func (s *PhotoService) RegisterPhoto(ctx context.Context, objectKey, contentType string) (domain.PhotoObject, error) {
	if !domain.IsPhotoObjectKey(objectKey) {
		return domain.PhotoObject{}, domain.NewValidationError("objectKey", "must be a photo object key")
	}
	info, err := s.client.StatObject(ctx, s.bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return domain.PhotoObject{}, &domain.NotFoundError{Entity: "photo", ID: objectKey}
		}
		return domain.PhotoObject{}, err
	}
	if contentType == "" {
		contentType = info.ContentType
	}

	item := domain.PhotoObject{ObjectKey: objectKey, ContentType: contentType}
	if strings.HasPrefix(contentType, "image/") {
		thumbKey, err := s.makeThumbnail(ctx, objectKey)
		if err != nil {
			cmnlog.Warnf("thumbnail object_key=%s: %v", objectKey, err)
		} else {
			item.ThumbnailKey = thumbKey
		}
	}
	return item, nil
}

func (s *PhotoService) makeThumbnail(ctx context.Context, objectKey string) (string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return "", err
	}
	defer obj.Close()

	img, _, err := image.Decode(obj)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	data, err := renderThumbnail(img)
	if err != nil {
		return "", err
	}

	thumbKey := thumbnailKey(objectKey)
	reader := bytes.NewReader(data)
	_, err = s.client.PutObject(ctx, s.bucket, thumbKey, reader, int64(reader.Len()), minio.PutObjectOptions{ContentType: "image/jpeg"})
	if err != nil {
		return "", fmt.Errorf("upload thumbnail: %w", err)
	}
	return thumbKey, nil
}

func renderThumbnail(img image.Image) ([]byte, error) {
	thumb := imaging.Thumbnail(img, thumbnailSize, thumbnailSize, imaging.Lanczos)
	buf := bytes.NewBuffer(nil)
	if err := imaging.Encode(buf, thumb, imaging.JPEG); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func newPhotoKey(fileName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(fileName)))
	if ext == "" {
		ext = ".jpg"
	}
	if _, ok := allowedPhotoExt[ext]; !ok {
		return "", domain.NewValidationError("fileName", "must be a jpg, png, gif, heic or webp image")
	}
	return domain.PhotoKeyPrefix + uuid.NewString() + ext, nil
}

func thumbnailKey(objectKey string) string {
	return strings.TrimSuffix(objectKey, filepath.Ext(objectKey)) + thumbnailSuffix
}
