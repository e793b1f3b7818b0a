package storage

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruteri/event-signin/interfaces"
)

// StoreFactory creates attendance stores from location URIs and manages
// multi-store configurations for redundant storage.
type StoreFactory struct {
	log *slog.Logger
}

// NewStoreFactory creates a new factory instance.
func NewStoreFactory(logger *slog.Logger) *StoreFactory {
	return &StoreFactory{
		log: logger,
	}
}

// StoreFor creates an attendance store from a location.
//
// Supported schemes:
//   - file:// - Local filesystem storage
//   - s3:// - Amazon S3 or compatible object storage
//   - vault:// - HashiCorp Vault KV v2
//
// Returns an error if the scheme is unsupported.
func (sf *StoreFactory) StoreFor(location interfaces.StoreLocation) (interfaces.AttendanceStore, error) {
	switch location.Scheme {
	case "s3":
		return sf.createS3Store(location)
	case "vault":
		return sf.createVaultStore(location)
	case "file":
		return sf.createFileStore(location)
	default:
		return nil, fmt.Errorf("%w: unsupported store scheme %q", interfaces.ErrInvalidLocationURI, location.Scheme)
	}
}

// StoreForURI parses uri and creates the matching store.
func (sf *StoreFactory) StoreForURI(uri string) (interfaces.AttendanceStore, error) {
	location, err := interfaces.NewStoreLocation(uri)
	if err != nil {
		return nil, err
	}
	return sf.StoreFor(location)
}

// CreateMultiStore creates a multi-store from a list of locations.
// Every location must be valid; the first bad one fails the whole call.
func (sf *StoreFactory) CreateMultiStore(locations []interfaces.StoreLocation) (interfaces.AttendanceStore, error) {
	if len(locations) == 0 {
		return nil, fmt.Errorf("no store locations configured")
	}

	stores := make([]interfaces.AttendanceStore, 0, len(locations))
	for _, location := range locations {
		store, err := sf.StoreFor(location)
		if err != nil {
			return nil, fmt.Errorf("failed to create store for %s: %w", location.String(), err)
		}
		sf.log.Info("Configured attendance store",
			slog.String("store_name", store.Name()),
			slog.String("location", store.LocationURI()))
		stores = append(stores, store)
	}

	return NewMultiStore(stores, sf.log), nil
}

// createS3Store creates an S3 or S3-compatible store.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/prefix/?region=us-west-2&endpoint=custom.s3.com&path_style=true
func (sf *StoreFactory) createS3Store(location interfaces.StoreLocation) (interfaces.AttendanceStore, error) {
	sf.log.Debug("Creating S3 store", slog.String("bucket", location.Host))

	opts := S3Options{
		Bucket:    location.Host,
		Prefix:    strings.TrimPrefix(location.Path, "/"),
		Region:    location.GetParam("region"),
		Endpoint:  location.GetParam("endpoint"),
		PathStyle: location.GetParamBool("path_style"),
	}

	if location.Auth != "" {
		accessKey, secretKey, _ := strings.Cut(location.Auth, ":")
		opts.AccessKey = accessKey
		opts.SecretKey = secretKey
	}

	return NewS3Store(opts, sf.log)
}

// createVaultStore creates a Vault KV v2 store.
// URI format: vault://host:port/mount/path?token=...&tls=false
// The first path element is the KV mount, the rest is the path inside it.
func (sf *StoreFactory) createVaultStore(location interfaces.StoreLocation) (interfaces.AttendanceStore, error) {
	sf.log.Debug("Creating Vault store", slog.String("host", location.Host))

	if location.Host == "" {
		return nil, fmt.Errorf("%w: vault location needs a host", interfaces.ErrInvalidLocationURI)
	}

	mountPath, dataPath, _ := strings.Cut(strings.TrimPrefix(location.Path, "/"), "/")
	if mountPath == "" {
		return nil, fmt.Errorf("%w: vault location needs a mount path", interfaces.ErrInvalidLocationURI)
	}

	scheme := "https"
	if location.GetParam("tls") == "false" {
		scheme = "http"
	}
	address := fmt.Sprintf("%s://%s", scheme, location.Host)

	return NewVaultStore(address, mountPath, dataPath, location.GetParam("token"), sf.log)
}

// createFileStore creates a file system store.
// URI format: file:///absolute/path/ or file://./relative/path/
func (sf *StoreFactory) createFileStore(location interfaces.StoreLocation) (interfaces.AttendanceStore, error) {
	path := location.Path
	if location.Host != "" {
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}

	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI %s", interfaces.ErrInvalidLocationURI, location.String())
	}

	sf.log.Debug("Creating file store", slog.String("path", path))
	return NewFileStore(path, sf.log)
}
