package domain

import (
	"net/url"
	"strings"
)

// PhotoKeyPrefix namespaces report photos inside the object-storage bucket.
const PhotoKeyPrefix = "emergencies/photos/"

type PhotoUpload struct {
	ObjectKey string `json:"objectKey"`
	URL       string `json:"url"`
}

type PhotoObject struct {
	ObjectKey    string `json:"objectKey"`
	ContentType  string `json:"contentType"`
	ThumbnailKey string `json:"thumbnailKey,omitempty"`
}

func IsPhotoObjectKey(ref string) bool {
	return strings.HasPrefix(ref, PhotoKeyPrefix) && len(ref) > len(PhotoKeyPrefix) && !strings.Contains(ref, "..")
}

// ValidPhotoRef accepts an absolute http(s) URL or a photo object key.
func ValidPhotoRef(ref string) bool {
	if IsPhotoObjectKey(ref) {
		return true
	}
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
