package fetcher

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rotisserie/eris"
)

// ConfigError is an invalid location or pattern. It is reported before any
// document is fetched.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// SourceOptions carries the per-kind settings used to build a Source.
type SourceOptions struct {
	S3   S3Options
	FTP  FTPOptions
	HTTP HTTPOptions

	// S3Client is used instead of building a client from S3 when set.
	S3Client S3API
}

// Open resolves a location URI to a Source. Supported schemes are s3, file,
// ftp, http and https. The S3 client is built here, once, and shared by
// every download of the returned source.
func Open(ctx context.Context, location string, pattern Pattern, opts SourceOptions) (Source, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, &ConfigError{Field: "location", Value: location, Reason: err.Error()}
	}

	switch u.Scheme {
	case "s3":
		if u.Host == "" {
			return nil, &ConfigError{Field: "location", Value: location, Reason: "missing bucket"}
		}
		client := opts.S3Client
		if client == nil {
			c, err := NewS3Client(ctx, opts.S3)
			if err != nil {
				return nil, eris.Wrap(err, "fetcher: build s3 client")
			}
			client = c
		}
		return NewS3Source(client, u, pattern), nil
	case "file":
		return NewFileSource(u, pattern), nil
	case "ftp":
		src, err := NewFTPSource(u, pattern, opts.FTP)
		if err != nil {
			return nil, err
		}
		return src, nil
	case "http", "https":
		if u.Host == "" {
			return nil, &ConfigError{Field: "location", Value: location, Reason: "missing host"}
		}
		return NewHTTPSource(u, pattern, NewHTTPClient(opts.HTTP)), nil
	default:
		return nil, &ConfigError{Field: "location", Value: location, Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
}
