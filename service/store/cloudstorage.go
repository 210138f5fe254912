package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/iconduit/go-iconduit/util"
)

// ErrObjectNotExist is returned by fetchers when no object lives at the key.
var ErrObjectNotExist = errors.New("store: object does not exist")

// Object is a fetched blob with its validators.
type Object struct {
	Body []byte
	ETag string
	Size int64
}

// FetchResult is the outcome of a conditional fetch. Exactly one of Object,
// NotModified, or neither (a miss, signalled by ErrObjectNotExist) applies.
type FetchResult struct {
	Object      *Object
	NotModified bool
	ETag        string
}

// Fetcher reads objects from a backing object store.
type Fetcher interface {
	Fetch(ctx context.Context, key string, ifNoneMatch string) (FetchResult, error)
}

// BucketStorer reads icon blobs out of a GCS bucket.
type BucketStorer struct {
	b *storage.BucketHandle
}

func NewBucketStorer(c *storage.Client, bucketName string) BucketStorer {
	return BucketStorer{c.Bucket(bucketName)}
}

// NewStorageClient builds a GCS client, optionally from a credentials file.
func NewStorageClient(ctx context.Context, credFile string) *storage.Client {
	var opts []option.ClientOption
	if credFile != "" {
		opts = append(opts, option.WithCredentialsFile(credFile))
	}
	c, err := storage.NewClient(ctx, opts...)
	if err != nil {
		panic(fmt.Sprintf("error creating storage client: %v", err))
	}
	return c
}

func (s BucketStorer) Fetch(ctx context.Context, key string, ifNoneMatch string) (FetchResult, error) {
	o := s.b.Object(key)

	attrs, err := o.Attrs(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return FetchResult{}, ErrObjectNotExist
		}
		return FetchResult{}, err
	}

	if ifNoneMatch != "" && attrs.Etag == ifNoneMatch {
		return FetchResult{NotModified: true, ETag: attrs.Etag}, nil
	}

	r, err := o.NewReader(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return FetchResult{}, ErrObjectNotExist
		}
		return FetchResult{}, err
	}
	defer r.Close()

	body, err := io.ReadAll(io.LimitReader(r, util.MB))
	if err != nil {
		return FetchResult{}, err
	}

	return FetchResult{Object: &Object{Body: body, ETag: attrs.Etag, Size: int64(len(body))}}, nil
}

// LocalObjectServer fetches blobs from a plain HTTP file server. Used in
// development in place of the bucket binding.
type LocalObjectServer struct {
	BaseURL string
	Client  *http.Client
}

func NewLocalObjectServer(baseURL string) LocalObjectServer {
	return LocalObjectServer{BaseURL: baseURL, Client: http.DefaultClient}
}

func (s LocalObjectServer) Fetch(ctx context.Context, key string, ifNoneMatch string) (FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", s.BaseURL, key), nil)
	if err != nil {
		return FetchResult{}, err
	}
	if ifNoneMatch != "" {
		req.Header.Set("If-None-Match", ifNoneMatch)
	}

	res, err := s.Client.Do(req)
	if err != nil {
		return FetchResult{}, err
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotModified:
		return FetchResult{NotModified: true, ETag: res.Header.Get("ETag")}, nil
	case res.StatusCode == http.StatusNotFound:
		return FetchResult{}, ErrObjectNotExist
	case res.StatusCode != http.StatusOK:
		return FetchResult{}, fmt.Errorf("unexpected status %d fetching %s", res.StatusCode, key)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, util.MB))
	if err != nil {
		return FetchResult{}, err
	}

	return FetchResult{Object: &Object{Body: body, ETag: res.Header.Get("ETag"), Size: int64(len(body))}}, nil
}
