package media

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ehr/portal/internal/platform/blobstore"
)

// Bucket uploads images to a storage bucket and keeps the public URL.
type Bucket struct {
	objects blobstore.Store
	name    string
	urls    blobstore.URLs
}

func NewBucket(objects blobstore.Store, name string, urls blobstore.URLs) *Bucket {
	return &Bucket{objects: objects, name: name, urls: urls}
}

func (b *Bucket) Store(ctx context.Context, folder, id string, img Image) (string, error) {
	if err := CheckBucketImage(img); err != nil {
		return "", err
	}
	key := ObjectKey(folder, id, img.Ext())
	if _, err := b.objects.Put(ctx, b.name, key, img.BucketMIME(), bytes.NewReader(img.Data)); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return b.urls.Public(b.name, key), nil
}

// Release removes the object behind a URL this bucket produced.
func (b *Bucket) Release(ctx context.Context, stored string) error {
	bucket, key, ok := b.urls.Parse(stored)
	if !ok || bucket != b.name {
		return nil
	}
	if err := b.objects.Remove(ctx, bucket, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
