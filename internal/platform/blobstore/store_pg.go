package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore keeps objects in the storage_objects table.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const objectCols = `bucket, path, content_type, size, hash, created_at`

func (s *PGStore) Put(ctx context.Context, bucket, path, contentType string, content io.Reader) (*Object, error) {
	if err := ValidateKey(bucket, path); err != nil {
		return nil, err
	}
	data, hash, err := readLimited(content)
	if err != nil {
		return nil, err
	}

	var o Object
	err = s.pool.QueryRow(ctx, `
		INSERT INTO storage_objects (bucket, path, content_type, size, hash, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+objectCols,
		bucket, path, contentType, int64(len(data)), hash, data,
	).Scan(&o.Bucket, &o.Path, &o.ContentType, &o.Size, &o.Hash, &o.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrObjectExists
		}
		return nil, fmt.Errorf("insert object %s/%s: %w", bucket, path, err)
	}
	return &o, nil
}

func (s *PGStore) Get(ctx context.Context, bucket, path string) (io.ReadCloser, *Object, error) {
	var o Object
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT `+objectCols+`, data FROM storage_objects WHERE bucket = $1 AND path = $2`,
		bucket, path,
	).Scan(&o.Bucket, &o.Path, &o.ContentType, &o.Size, &o.Hash, &o.CreatedAt, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, fmt.Errorf("get object %s/%s: %w", bucket, path, err)
	}
	return io.NopCloser(bytes.NewReader(data)), &o, nil
}

func (s *PGStore) Stat(ctx context.Context, bucket, path string) (*Object, error) {
	var o Object
	err := s.pool.QueryRow(ctx,
		`SELECT `+objectCols+` FROM storage_objects WHERE bucket = $1 AND path = $2`,
		bucket, path,
	).Scan(&o.Bucket, &o.Path, &o.ContentType, &o.Size, &o.Hash, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat object %s/%s: %w", bucket, path, err)
	}
	return &o, nil
}

func (s *PGStore) Remove(ctx context.Context, bucket string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM storage_objects WHERE bucket = $1 AND path = ANY($2)`, bucket, paths)
	if err != nil {
		return fmt.Errorf("remove objects from %s: %w", bucket, err)
	}
	return nil
}

func (s *PGStore) List(ctx context.Context, bucket, prefix string, limit, offset int) ([]*Object, int, error) {
	if limit <= 0 {
		limit = 100
	}
	pattern := escapeLike(prefix) + "%"

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM storage_objects WHERE bucket = $1 AND path LIKE $2`,
		bucket, pattern,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count objects in %s: %w", bucket, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+objectCols+` FROM storage_objects WHERE bucket = $1 AND path LIKE $2
		 ORDER BY path LIMIT $3 OFFSET $4`,
		bucket, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list objects in %s: %w", bucket, err)
	}
	defer rows.Close()

	var out []*Object
	for rows.Next() {
		var o Object
		if err := rows.Scan(&o.Bucket, &o.Path, &o.ContentType, &o.Size, &o.Hash, &o.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &o)
	}
	return out, total, rows.Err()
}

func escapeLike(s string) string {
	r := bytes.NewBuffer(nil)
	for _, c := range s {
		if c == '%' || c == '_' || c == '\\' {
			r.WriteByte('\\')
		}
		r.WriteRune(c)
	}
	return r.String()
}
