package policy

import "strings"

// Kind identifies the database engine behind a backup target.
type Kind string

const (
	KindPostgres Kind = "postgres"
	KindMySQL    Kind = "mysql"
	KindMariaDB  Kind = "mariadb"
	KindMongoDB  Kind = "mongodb"
	KindRedis    Kind = "redis"
	KindSQLite   Kind = "sqlite"
)

// NormalizeKind maps a raw type label to its canonical Kind. Aliases
// "postgresql" and "mongo" collapse to their canonical names.
func NormalizeKind(raw string) (Kind, bool) {
	switch strings.ToLower(raw) {
	case "postgres", "postgresql":
		return KindPostgres, true
	case "mysql":
		return KindMySQL, true
	case "mariadb":
		return KindMariaDB, true
	case "mongodb", "mongo":
		return KindMongoDB, true
	case "redis":
		return KindRedis, true
	case "sqlite":
		return KindSQLite, true
	default:
		return "", false
	}
}

// DefaultPort returns the conventional server port for the kind, or 0 when
// the kind has none (sqlite is a file, not a server).
func (k Kind) DefaultPort() int {
	switch k {
	case KindPostgres:
		return 5432
	case KindMySQL, KindMariaDB:
		return 3306
	case KindMongoDB:
		return 27017
	case KindRedis:
		return 6379
	default:
		return 0
	}
}

func (k Kind) String() string {
	return string(k)
}

// Compression selects how the dump artifact is compressed.
type Compression string

const (
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionNone Compression = "none"
)

// ParseCompression maps a raw compression label to its canonical value.
// An empty label means gzip.
func ParseCompression(raw string) (Compression, bool) {
	switch strings.ToLower(raw) {
	case "", "gzip":
		return CompressionGzip, true
	case "zstd":
		return CompressionZstd, true
	case "none":
		return CompressionNone, true
	default:
		return "", false
	}
}

func (c Compression) String() string {
	return string(c)
}
