// Package s3 provides an S3 implementation of the blobstore.Store interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("snapshots/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	err = vlogdb.Snapshot(ctx, table, store, "nightly")
//
// # Features
//
//   - Multipart uploads for large logs
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
